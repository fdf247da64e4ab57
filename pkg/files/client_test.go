package files_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mercuryfield/zenorm_go/pkg/files"
)

func TestClientUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/uploads.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("filename") != "report.csv" {
			t.Errorf("unexpected filename %q", r.URL.Query().Get("filename"))
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "a,b\n1,2\n" {
			t.Errorf("unexpected body %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"upload":{"token":"tok-1","attachment":{"id":9,"file_name":"report.csv","size":8}}}`)
	}))
	defer srv.Close()

	client, err := files.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	up, err := client.Upload(context.Background(), bytes.NewReader([]byte("a,b\n1,2\n")), &files.UploadOptions{Filename: "report.csv"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if up.Token != "tok-1" || up.Attachment == nil || up.Attachment.ID != 9 {
		t.Fatalf("unexpected upload %+v", up)
	}
}

func TestClientUploadGeneratesFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filename") == "" {
			t.Error("filename query parameter missing")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"upload":{"token":"tok-2"}}`)
	}))
	defer srv.Close()

	client, err := files.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Upload(context.Background(), strings.NewReader("x"), nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func TestClientAttachToTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/tickets/42.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		defer r.Body.Close()
		var payload struct {
			Ticket struct {
				Comment struct {
					Body    string   `json:"body"`
					Uploads []string `json:"uploads"`
				} `json:"comment"`
			} `json:"ticket"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if payload.Ticket.Comment.Body != "Attachment added." {
			t.Errorf("unexpected comment %q", payload.Ticket.Comment.Body)
		}
		if len(payload.Ticket.Comment.Uploads) != 1 || payload.Ticket.Comment.Uploads[0] != "tok-1" {
			t.Errorf("unexpected uploads %v", payload.Ticket.Comment.Uploads)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ticket":{"id":42}}`)
	}))
	defer srv.Close()

	client, err := files.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.AttachToTicket(context.Background(), 42, []string{"tok-1"}, nil); err != nil {
		t.Fatalf("AttachToTicket: %v", err)
	}
}

func TestClientGetAttachmentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"RecordNotFound","description":"Not found"}`)
	}))
	defer srv.Close()

	client, err := files.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.GetAttachment(context.Background(), 404); !errors.Is(err, files.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMockUploadAndAttach(t *testing.T) {
	backend := files.NewMockBackend()
	client := files.NewWithBackend(backend)
	ctx := context.Background()

	up, err := client.Upload(ctx, strings.NewReader("hello"), &files.UploadOptions{Filename: "note.txt"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if up.Attachment == nil || up.Attachment.Size != 5 {
		t.Fatalf("unexpected upload %+v", up)
	}

	data, ok := backend.AttachmentData(up.Attachment.ID)
	if !ok || string(data) != "hello" {
		t.Fatalf("unexpected stored data %q", data)
	}

	if err := client.AttachToTicket(ctx, 7, []string{up.Token}, &files.AttachOptions{Comment: "see attached"}); err != nil {
		t.Fatalf("AttachToTicket: %v", err)
	}
	comments := backend.TicketComments(7)
	if len(comments) != 1 || comments[0].Body != "see attached" || len(comments[0].Attachments) != 1 {
		t.Fatalf("unexpected comments %+v", comments)
	}

	// The token is consumed by the attach.
	if err := client.AttachToTicket(ctx, 7, []string{up.Token}, nil); !errors.Is(err, files.ErrNotFound) {
		t.Fatalf("want ErrNotFound for consumed token, got %v", err)
	}
}
