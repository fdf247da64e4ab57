package zenorm_test

import (
	"context"
	"testing"

	"github.com/mercuryfield/zenorm_go/pkg/records"
	"github.com/mercuryfield/zenorm_go/pkg/zenorm"
)

type asset struct {
	records.Model
	Serial string `zendesk:"serial"`
	Status string `zendesk:"status,type=dropdown,choices=In Use|Retired"`
}

func TestNewFromEnvMockCrossWiring(t *testing.T) {
	t.Setenv("ZENORM_RUNTIME_MODE", "mock")
	t.Setenv("ZENORM_MOCK_SEED", "")

	clients, err := zenorm.NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if clients.Mode != "mock" {
		t.Fatalf("want mock mode, got %q", clients.Mode)
	}

	ctx := context.Background()
	if _, _, err := clients.Schema.EnsureFromModel(ctx, &asset{}); err != nil {
		t.Fatalf("EnsureFromModel: %v", err)
	}

	// The records mock picked up the definition, so validation applies.
	col, err := records.NewCollection[asset](clients.Records)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	a := &asset{Serial: "SN-1", Status: "in_use"}
	if err := col.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("record id not assigned")
	}

	if _, err := clients.Records.Create(ctx, "asset", &records.RecordPayload{
		Fields: map[string]any{"status": "melted"},
	}); err == nil {
		t.Fatal("want validation error for unknown choice")
	}
}

func TestNewFromEnvHTTPNeedsCredentials(t *testing.T) {
	t.Setenv("ZENORM_RUNTIME_MODE", "http")
	t.Setenv("ZENDESK_SUBDOMAIN", "acme")
	t.Setenv("ZENDESK_BASE_URL", "")
	t.Setenv("ZENDESK_EMAIL", "")
	t.Setenv("ZENDESK_API_TOKEN", "")
	t.Setenv("ZENDESK_OAUTH_TOKEN", "")

	if _, err := zenorm.NewFromEnv(); err == nil {
		t.Fatal("want missing-credentials error")
	}

	t.Setenv("ZENDESK_OAUTH_TOKEN", "bearer-token")
	clients, err := zenorm.NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if clients.Mode != "http" || clients.Schema == nil || clients.Records == nil || clients.Files == nil {
		t.Fatalf("unexpected clients %+v", clients)
	}
}
