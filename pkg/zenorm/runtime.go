package zenorm

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mercuryfield/zenorm_go/internal/devseed"
	"github.com/mercuryfield/zenorm_go/internal/httpx"
	"github.com/mercuryfield/zenorm_go/pkg/files"
	"github.com/mercuryfield/zenorm_go/pkg/records"
	"github.com/mercuryfield/zenorm_go/pkg/schema"
)

const (
	envMode     = "ZENORM_RUNTIME_MODE"
	envMockSeed = "ZENORM_MOCK_SEED"

	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"
)

// Clients bundles the three service clients over one transport.
type Clients struct {
	Schema  *schema.Client
	Records *records.Client
	Files   *files.Client
	// Mode is the resolved runtime mode, "http" or "mock".
	Mode string
}

// Option configures NewFromEnv.
type Option func(*config)

type config struct {
	logger *zap.Logger
}

// WithLogger attaches a logger to the HTTP transport.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// NewFromEnv wires schema, records and files clients from Zendesk
// environment variables. In HTTP mode all three share one authenticated
// transport; in mock mode the in-memory backends are cross-wired so custom
// objects created through the schema client are visible to the records
// client.
func NewFromEnv(opts ...Option) (*Clients, error) {
	cfg := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	mode := strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	baseURL := records.BaseURLFromEnv()

	switch mode {
	case "", modeAuto:
		if baseURL != "" {
			return newHTTPClients(baseURL, cfg)
		}
		return newMockClients()
	case modeHTTP:
		if baseURL == "" {
			return nil, fmt.Errorf("zenorm: HTTP mode requires ZENDESK_SUBDOMAIN or ZENDESK_BASE_URL")
		}
		return newHTTPClients(baseURL, cfg)
	case modeMock:
		return newMockClients()
	default:
		return nil, fmt.Errorf("zenorm: unsupported %s value %q", envMode, mode)
	}
}

func newHTTPClients(baseURL string, cfg *config) (*Clients, error) {
	auth, err := records.AuthFromEnv()
	if err != nil {
		return nil, fmt.Errorf("zenorm: missing credentials: %w", err)
	}
	transport, err := httpx.NewClient(baseURL, auth, httpx.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("zenorm: init HTTP transport: %w", err)
	}
	return &Clients{
		Schema:  schema.NewWithHTTPClient(transport),
		Records: records.NewWithHTTPClient(transport),
		Files:   files.NewWithHTTPClient(transport),
		Mode:    modeHTTP,
	}, nil
}

func newMockClients() (*Clients, error) {
	recordsMock := records.NewMockBackend()
	schemaMock := schema.NewMockBackend(schema.WithDefinitionObserver(recordsMock.RegisterObject))

	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		seed, err := devseed.Load(path)
		if err != nil {
			return nil, fmt.Errorf("zenorm: load mock seed: %w", err)
		}
		if err := schemaMock.SeedObjects(seed.Objects); err != nil {
			return nil, fmt.Errorf("zenorm: apply object seed: %w", err)
		}
		if err := recordsMock.Seed(seed.Records); err != nil {
			return nil, fmt.Errorf("zenorm: apply record seed: %w", err)
		}
	}

	return &Clients{
		Schema:  schema.NewWithBackend(schemaMock),
		Records: records.NewWithBackend(recordsMock),
		Files:   files.NewWithBackend(files.NewMockBackend()),
		Mode:    modeMock,
	}, nil
}
