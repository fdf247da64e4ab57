package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError represents a non-2xx response from the Zendesk API. The raw
// body and headers are kept so higher layers can decode the error envelope
// and the rate-limit window.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	JSON       any
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("httpx: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Retryable reports whether the response is worth retrying: the 429 rate
// limit, request timeouts and server-side failures. Other 4xx statuses are
// validation outcomes and final.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500 && e.StatusCode <= 599:
		return true
	}
	return false
}

// RetryAfter returns the rate-limit window Zendesk publishes on 429
// responses, or zero when the header is absent or malformed. Zendesk sends
// integer seconds, so HTTP-date forms of the header are not parsed.
func (e *HTTPError) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	raw := strings.TrimSpace(e.Header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// decodeJSONBody parses the body bytes into a generic JSON payload.
func decodeJSONBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}
