package files

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/mercuryfield/zenorm_go/internal/httpx"
	"github.com/mercuryfield/zenorm_go/internal/zendeskapi"
)

// defaultAttachComment is the ticket comment used when AttachToTicket is
// called without one.
const defaultAttachComment = "Attachment added."

// Backend is the raw operation set behind the files client.
type Backend interface {
	Upload(ctx context.Context, filename, contentType, token string, data []byte) (*Upload, error)
	DeleteUpload(ctx context.Context, token string) error
	GetAttachment(ctx context.Context, id int64) (*Attachment, error)
	AttachToTicket(ctx context.Context, ticketID int64, comment string, public *bool, tokens []string) error
}

// Client uploads files and attaches them to tickets.
type Client struct {
	backend Backend
}

// New constructs an HTTP-backed client.
func New(baseURL string, opts ...httpx.Option) (*Client, error) {
	cl, err := httpx.NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithHTTPClient(cl), nil
}

// NewWithHTTPClient wraps an existing httpx.Client.
func NewWithHTTPClient(httpClient *httpx.Client) *Client {
	return &Client{backend: &httpBackend{client: httpClient}}
}

// NewWithBackend allows callers to provide a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// Upload pushes data to /uploads.json and returns the upload token plus the
// stored attachment. Without an explicit filename a random one is generated;
// the content type derives from the filename extension.
func (c *Client) Upload(ctx context.Context, data io.Reader, opts *UploadOptions) (*Upload, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	if data == nil {
		return nil, fmt.Errorf("files: upload data is required")
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("files: read upload payload: %w", err)
	}

	filename := ""
	contentType := ""
	token := ""
	if opts != nil {
		filename = strings.TrimSpace(opts.Filename)
		contentType = opts.ContentType
		token = opts.Token
	}
	if filename == "" {
		filename = uuid.NewString()
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.backend.Upload(ctx, filename, contentType, token, payload)
}

// DeleteUpload discards a not-yet-attached upload batch by token.
func (c *Client) DeleteUpload(ctx context.Context, token string) error {
	if c == nil || c.backend == nil {
		return fmt.Errorf("files: client is nil")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("files: upload token is required")
	}
	return c.backend.DeleteUpload(ctx, token)
}

// GetAttachment fetches attachment metadata by id.
func (c *Client) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("files: client is nil")
	}
	if id <= 0 {
		return nil, fmt.Errorf("files: attachment id is required")
	}
	return c.backend.GetAttachment(ctx, id)
}

// AttachToTicket adds uploaded files to a ticket through a comment.
func (c *Client) AttachToTicket(ctx context.Context, ticketID int64, tokens []string, opts *AttachOptions) error {
	if c == nil || c.backend == nil {
		return fmt.Errorf("files: client is nil")
	}
	if ticketID <= 0 {
		return fmt.Errorf("files: ticket id is required")
	}
	if len(tokens) == 0 {
		return fmt.Errorf("files: at least one upload token is required")
	}
	comment := defaultAttachComment
	var public *bool
	if opts != nil {
		if strings.TrimSpace(opts.Comment) != "" {
			comment = opts.Comment
		}
		public = opts.Public
	}
	return c.backend.AttachToTicket(ctx, ticketID, comment, public, tokens)
}

type httpBackend struct {
	client *httpx.Client
}

type wireUploadEnvelope struct {
	Upload *Upload `json:"upload"`
}

type wireAttachmentEnvelope struct {
	Attachment *Attachment `json:"attachment"`
}

func (b *httpBackend) Upload(ctx context.Context, filename, contentType, token string, data []byte) (*Upload, error) {
	q := url.Values{"filename": []string{filename}}
	if token != "" {
		q.Set("token", token)
	}
	req := &httpx.Request{
		Method: http.MethodPost,
		Path:   "/uploads.json",
		Query:  q,
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   bytes.NewReader(data),
		GetBody: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, mapError(zendeskapi.ParseError(err))
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read upload response")
	}
	var envelope wireUploadEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, pkgerrors.Wrap(err, "decode upload response")
	}
	if envelope.Upload == nil || envelope.Upload.Token == "" {
		return nil, fmt.Errorf("files: upload response missing token")
	}
	return envelope.Upload, nil
}

func (b *httpBackend) DeleteUpload(ctx context.Context, token string) error {
	req := &httpx.Request{
		Method: http.MethodDelete,
		Path:   "/uploads/" + url.PathEscape(token) + ".json",
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return mapError(zendeskapi.ParseError(err))
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func (b *httpBackend) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	req := &httpx.Request{
		Method: http.MethodGet,
		Path:   "/attachments/" + strconv.FormatInt(id, 10) + ".json",
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, mapError(zendeskapi.ParseError(err))
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read attachment response")
	}
	var envelope wireAttachmentEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, pkgerrors.Wrap(err, "decode attachment response")
	}
	if envelope.Attachment == nil {
		return nil, fmt.Errorf("%w: attachment %d", ErrNotFound, id)
	}
	return envelope.Attachment, nil
}

func (b *httpBackend) AttachToTicket(ctx context.Context, ticketID int64, comment string, public *bool, tokens []string) error {
	commentBody := map[string]any{
		"body":    comment,
		"uploads": tokens,
	}
	if public != nil {
		commentBody["public"] = *public
	}
	payload := map[string]any{
		"ticket": map[string]any{"comment": commentBody},
	}
	body, contentType, err := httpx.WithJSONBody(payload)
	if err != nil {
		return pkgerrors.Wrap(err, "encode ticket comment")
	}
	req := &httpx.Request{
		Method: http.MethodPut,
		Path:   "/tickets/" + strconv.FormatInt(ticketID, 10) + ".json",
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   body,
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return mapError(zendeskapi.ParseError(err))
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if zendeskapi.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
