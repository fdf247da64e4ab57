// Package zendeskapi decodes the JSON envelopes used by the Zendesk v2 API:
// error bodies, record-level validation details and cursor pagination
// metadata. It sits below the typed clients so they only deal with decoded
// payloads.
package zendeskapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mercuryfield/zenorm_go/internal/httpx"
)

// uniqueNameDescription is the prose Zendesk returns when a record name
// collides under a unique name field. There is no machine-readable code for
// this condition.
const uniqueNameDescription = "Name already exists. Try another one."

// APIError is a decoded Zendesk error body.
type APIError struct {
	StatusCode  int
	Title       string
	Description string
	Details     []string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := []string{fmt.Sprintf("zendesk: status=%d", e.StatusCode)}
	if e.Title != "" {
		parts = append(parts, e.Title)
	}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, ": ")
}

// errorBody covers the two error shapes the API produces: a top-level
// error/description pair and a per-record details map with base entries.
type errorBody struct {
	Error       json.RawMessage `json:"error"`
	Description string          `json:"description"`
	Details     map[string][]struct {
		Description string `json:"description"`
		Error       string `json:"error"`
	} `json:"details"`
}

// ParseError converts an httpx error into an *APIError when the response
// carries a Zendesk error body. Other errors pass through unchanged.
func ParseError(err error) error {
	if err == nil {
		return nil
	}
	var httpErr *httpx.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}

	apiErr := &APIError{StatusCode: httpErr.StatusCode}
	var body errorBody
	if jsonErr := json.Unmarshal(httpErr.Body, &body); jsonErr == nil {
		apiErr.Description = body.Description
		if len(body.Error) > 0 {
			// "error" is either a plain string or an object with title/message.
			var title string
			if json.Unmarshal(body.Error, &title) == nil {
				apiErr.Title = title
			} else {
				var obj struct {
					Title   string `json:"title"`
					Message string `json:"message"`
				}
				if json.Unmarshal(body.Error, &obj) == nil {
					apiErr.Title = obj.Title
					if apiErr.Description == "" {
						apiErr.Description = obj.Message
					}
				}
			}
		}
		for _, entries := range body.Details {
			for _, entry := range entries {
				if entry.Description != "" {
					apiErr.Details = append(apiErr.Details, entry.Description)
				}
			}
		}
	}
	return apiErr
}

// IsUniqueNameViolation reports whether the error describes a duplicate
// record name rejected by a unique name field.
func IsUniqueNameViolation(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, detail := range apiErr.Details {
		if detail == uniqueNameDescription {
			return true
		}
	}
	return strings.Contains(apiErr.Description, uniqueNameDescription)
}

// StatusCode extracts the HTTP status from an API or transport error,
// returning 0 when the error carries none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// PageMeta carries the cursor pagination state of a list response.
type PageMeta struct {
	HasMore     bool   `json:"has_more"`
	AfterCursor string `json:"after_cursor"`
}

// PageLinks carries the pagination links of a list response.
type PageLinks struct {
	Next string `json:"next"`
	Prev string `json:"prev"`
}
