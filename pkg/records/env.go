package records

import (
	"fmt"
	"os"
	"strings"

	"github.com/mercuryfield/zenorm_go/internal/devseed"
	"github.com/mercuryfield/zenorm_go/internal/httpx"
	"github.com/mercuryfield/zenorm_go/pkg/schema"
)

const (
	envMode       = "ZENORM_RUNTIME_MODE"
	envSubdomain  = "ZENDESK_SUBDOMAIN"
	envBaseURL    = "ZENDESK_BASE_URL"
	envEmail      = "ZENDESK_EMAIL"
	envAPIToken   = "ZENDESK_API_TOKEN"
	envOAuthToken = "ZENDESK_OAUTH_TOKEN"
	envMockSeed   = "ZENORM_MOCK_SEED"

	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"
)

// NewFromEnv initialises a Client from Zendesk environment variables and
// returns the resolved mode ("http" or "mock"). HTTP mode needs
// ZENDESK_SUBDOMAIN (or ZENDESK_BASE_URL) plus either ZENDESK_EMAIL and
// ZENDESK_API_TOKEN or ZENDESK_OAUTH_TOKEN; mock mode optionally loads
// ZENORM_MOCK_SEED.
func NewFromEnv() (client *Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	baseURL := BaseURLFromEnv()

	switch mode {
	case "", modeAuto:
		if baseURL != "" {
			return newHTTPClient(baseURL)
		}
		return newMockClient()
	case modeHTTP:
		if baseURL == "" {
			return nil, "", fmt.Errorf("records: HTTP mode requires %s or %s", envSubdomain, envBaseURL)
		}
		return newHTTPClient(baseURL)
	case modeMock:
		return newMockClient()
	default:
		return nil, "", fmt.Errorf("records: unsupported %s value %q", envMode, mode)
	}
}

// BaseURLFromEnv resolves the API base URL: an explicit ZENDESK_BASE_URL
// wins, otherwise ZENDESK_SUBDOMAIN expands to the standard endpoint.
func BaseURLFromEnv() string {
	if base := strings.TrimSpace(os.Getenv(envBaseURL)); base != "" {
		return base
	}
	if sub := strings.TrimSpace(os.Getenv(envSubdomain)); sub != "" {
		return fmt.Sprintf("https://%s.zendesk.com/api/v2", sub)
	}
	return ""
}

// AuthFromEnv builds the credential option from the environment. API token
// auth takes precedence over OAuth.
func AuthFromEnv() (httpx.Option, error) {
	email := strings.TrimSpace(os.Getenv(envEmail))
	apiToken := strings.TrimSpace(os.Getenv(envAPIToken))
	if email != "" && apiToken != "" {
		return httpx.WithBasicAuth(email, apiToken), nil
	}
	if token := strings.TrimSpace(os.Getenv(envOAuthToken)); token != "" {
		return httpx.WithOAuthToken(token), nil
	}
	return nil, fmt.Errorf("set %s and %s, or %s", envEmail, envAPIToken, envOAuthToken)
}

func newHTTPClient(baseURL string) (*Client, string, error) {
	auth, err := AuthFromEnv()
	if err != nil {
		return nil, "", fmt.Errorf("records: missing credentials: %w", err)
	}
	client, err := New(baseURL, auth)
	if err != nil {
		return nil, "", fmt.Errorf("records: init HTTP client: %w", err)
	}
	return client, modeHTTP, nil
}

func newMockClient() (*Client, string, error) {
	backend := NewMockBackend()
	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		seed, err := devseed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("records: load mock seed: %w", err)
		}
		for _, obj := range seed.Objects {
			def, err := schema.DefinitionFromSeed(obj)
			if err != nil {
				return nil, "", fmt.Errorf("records: mock seed object %q: %w", obj.Key, err)
			}
			backend.RegisterObject(def)
		}
		if err := backend.Seed(seed.Records); err != nil {
			return nil, "", fmt.Errorf("records: apply mock seed: %w", err)
		}
	}
	return NewWithBackend(backend), modeMock, nil
}
