package records_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mercuryfield/zenorm_go/pkg/records"
)

func TestClientCreateAndGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/custom_objects/ticket/records":
			defer r.Body.Close()
			var envelope struct {
				CustomObjectRecord struct {
					Name       string         `json:"name"`
					ExternalID string         `json:"external_id"`
					Fields     map[string]any `json:"custom_object_fields"`
				} `json:"custom_object_record"`
			}
			if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if envelope.CustomObjectRecord.Name != "outage" {
				t.Errorf("unexpected name %q", envelope.CustomObjectRecord.Name)
			}
			if envelope.CustomObjectRecord.Fields["code"] != "INC-1" {
				t.Errorf("unexpected fields %v", envelope.CustomObjectRecord.Fields)
			}
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"custom_object_record":{"id":"rec-1","name":"outage","custom_object_fields":{"code":"INC-1"}}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/custom_objects/ticket/records/rec-1":
			io.WriteString(w, `{"custom_object_record":{"id":"rec-1","name":"outage","custom_object_fields":{"code":"INC-1"}}}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	name := "outage"
	created, err := client.Create(context.Background(), "ticket", &records.RecordPayload{
		Name:   &name,
		Fields: map[string]any{"code": "INC-1"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "rec-1" {
		t.Fatalf("unexpected id %q", created.ID)
	}

	got, err := client.Get(context.Background(), "ticket", "rec-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Fields["code"] != "INC-1" {
		t.Fatalf("unexpected fields %v", got.Fields)
	}
}

func TestClientGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"RecordNotFound","description":"Not found"}`)
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Get(context.Background(), "ticket", "missing"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClientCreateUniqueNameConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":"RecordInvalid","description":"Record validation errors","details":{"base":[{"description":"Name already exists. Try another one.","error":"DuplicateValue"}]}}`)
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name := "dup"
	_, err = client.Create(context.Background(), "ticket", &records.RecordPayload{Name: &name})
	if !errors.Is(err, records.ErrUniqueName) {
		t.Fatalf("want ErrUniqueName, got %v", err)
	}
}

func TestClientListPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/custom_objects/ticket/records" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("sort") != "-updated_at" {
			t.Errorf("unexpected sort %q", q.Get("sort"))
		}
		if q.Get("page[size]") != "2" {
			t.Errorf("unexpected page size %q", q.Get("page[size]"))
		}
		w.Header().Set("Content-Type", "application/json")
		if q.Get("page[after]") == "" {
			io.WriteString(w, `{"custom_object_records":[{"id":"a"},{"id":"b"}],"meta":{"has_more":true,"after_cursor":"cur-1"}}`)
			return
		}
		if q.Get("page[after]") != "cur-1" {
			t.Errorf("unexpected cursor %q", q.Get("page[after]"))
		}
		io.WriteString(w, `{"custom_object_records":[{"id":"c"}],"meta":{"has_more":false}}`)
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts := &records.ListOptions{Sort: "-updated_at", PageSize: 2}
	page, err := client.List(context.Background(), "ticket", opts)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Records) != 2 || !page.HasMore || page.AfterCursor != "cur-1" {
		t.Fatalf("unexpected first page %+v", page)
	}

	opts.Cursor = page.AfterCursor
	page, err = client.List(context.Background(), "ticket", opts)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page.Records) != 1 || page.HasMore {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func TestClientFilterSendsComparisonBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/custom_objects/ticket/records/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		defer r.Body.Close()
		var body struct {
			Filter map[string]map[string]any `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Filter["custom_object_fields.status"]["$eq"] != "open" {
			t.Errorf("unexpected status criterion %v", body.Filter)
		}
		if body.Filter["name"]["$eq"] != "outage" {
			t.Errorf("system attribute must stay unprefixed, got %v", body.Filter)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"custom_object_records":[{"id":"a","name":"outage"}],"meta":{"has_more":false}}`)
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := client.Filter(context.Background(), "ticket", records.Filter{"status": "open", "name": "outage"}, nil)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClientCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/custom_objects/ticket/records/count" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"count":{"value":7,"refreshed_at":"2025-06-01T00:00:00Z"}}`)
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n, err := client.Count(context.Background(), "ticket")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Fatalf("want 7, got %d", n)
	}
}

func TestClientDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/custom_objects/ticket/records/rec-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Delete(context.Background(), "ticket", "rec-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestClientDeleteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/custom_objects/ticket/records/missing" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"RecordNotFound","description":"Not found"}`)
	}))
	defer srv.Close()

	client, err := records.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Delete(context.Background(), "ticket", "missing"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
