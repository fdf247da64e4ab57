package records

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/mercuryfield/zenorm_go/internal/httpx"
	"github.com/mercuryfield/zenorm_go/internal/zendeskapi"
)

// systemFilterKeys are record attributes addressed without the
// custom_object_fields prefix in search filters.
var systemFilterKeys = map[string]bool{
	"name":               true,
	"external_id":        true,
	"created_at":         true,
	"updated_at":         true,
	"created_by_user_id": true,
	"updated_by_user_id": true,
}

// Backend is the raw operation set behind the records client. The HTTP
// implementation talks to Zendesk; mocks satisfy it in memory.
type Backend interface {
	CreateRecord(ctx context.Context, key string, payload *RecordPayload) (*Record, error)
	GetRecord(ctx context.Context, key, id string) (*Record, error)
	UpdateRecord(ctx context.Context, key, id string, payload *RecordPayload) (*Record, error)
	DeleteRecord(ctx context.Context, key, id string) error
	ListRecords(ctx context.Context, key string, opts *ListOptions) (*ListResult, error)
	SearchRecords(ctx context.Context, key, query string, filter Filter, opts *ListOptions) (*ListResult, error)
	CountRecords(ctx context.Context, key string) (int, error)
}

// Client provides CRUD and query access to custom object records.
type Client struct {
	backend Backend
}

// New constructs a Client bound to the provided base URL.
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

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// Create stores a new record under the custom object key.
func (c *Client) Create(ctx context.Context, key string, payload *RecordPayload) (*Record, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("records: payload is required")
	}
	return c.backend.CreateRecord(ctx, key, payload)
}

// Get fetches a record by id.
func (c *Client) Get(ctx context.Context, key, id string) (*Record, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("records: record id is required")
	}
	return c.backend.GetRecord(ctx, key, id)
}

// Update patches an existing record.
func (c *Client) Update(ctx context.Context, key, id string, payload *RecordPayload) (*Record, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("records: record id is required")
	}
	if payload == nil {
		return nil, fmt.Errorf("records: payload is required")
	}
	return c.backend.UpdateRecord(ctx, key, id, payload)
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, key, id string) error {
	if err := c.check(key); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("records: record id is required")
	}
	return c.backend.DeleteRecord(ctx, key, id)
}

// List returns one page of records.
func (c *Client) List(ctx context.Context, key string, opts *ListOptions) (*ListResult, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	return c.backend.ListRecords(ctx, key, opts)
}

// Search runs a free-text query against record names.
func (c *Client) Search(ctx context.Context, key, query string, opts *ListOptions) (*ListResult, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	return c.backend.SearchRecords(ctx, key, query, nil, opts)
}

// Filter returns records matching the given field criteria.
func (c *Client) Filter(ctx context.Context, key string, filter Filter, opts *ListOptions) (*ListResult, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return nil, fmt.Errorf("records: filter criteria are required")
	}
	return c.backend.SearchRecords(ctx, key, "", filter, opts)
}

// Count reports how many records the custom object holds.
func (c *Client) Count(ctx context.Context, key string) (int, error) {
	if err := c.check(key); err != nil {
		return 0, err
	}
	return c.backend.CountRecords(ctx, key)
}

// GetByExternalID fetches the record carrying the given external id.
func (c *Client) GetByExternalID(ctx context.Context, key, externalID string) (*Record, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("records: external id is required")
	}
	res, err := c.backend.ListRecords(ctx, key, &ListOptions{ExternalIDs: []string{externalID}})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: external id %q on %q", ErrNotFound, externalID, key)
	}
	rec := res.Records[0]
	return &rec, nil
}

// Last returns the most recently updated record, or ErrNotFound when the
// object has no records.
func (c *Client) Last(ctx context.Context, key string) (*Record, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	res, err := c.backend.ListRecords(ctx, key, &ListOptions{Sort: "-updated_at", PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: no records on %q", ErrNotFound, key)
	}
	rec := res.Records[0]
	return &rec, nil
}

func (c *Client) check(key string) error {
	if c == nil || c.backend == nil {
		return fmt.Errorf("records: client is nil")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("records: custom object key is required")
	}
	return nil
}

type httpBackend struct {
	client *httpx.Client
}

type wireRecordEnvelope struct {
	CustomObjectRecord *Record `json:"custom_object_record"`
}

type wireRecordList struct {
	CustomObjectRecords []Record             `json:"custom_object_records"`
	Meta                zendeskapi.PageMeta  `json:"meta"`
	Links               zendeskapi.PageLinks `json:"links"`
}

func recordBody(payload *RecordPayload) map[string]any {
	record := map[string]any{
		"custom_object_fields": payload.Fields,
	}
	if payload.Name != nil {
		record["name"] = *payload.Name
	}
	if payload.ExternalID != "" {
		record["external_id"] = payload.ExternalID
	}
	return map[string]any{"custom_object_record": record}
}

func (b *httpBackend) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("records: http backend not configured")
	}
	req := &httpx.Request{Method: method, Path: path, Query: query}
	if payload != nil {
		body, contentType, err := httpx.WithJSONBody(payload)
		if err != nil {
			return pkgerrors.Wrap(err, "encode request payload")
		}
		req.Body = body
		req.Header = http.Header{"Content-Type": []string{contentType}}
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return mapError(zendeskapi.ParseError(err))
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(err, "read response body")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}

// mapError translates Zendesk error responses into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if zendeskapi.IsUniqueNameViolation(err) {
		return fmt.Errorf("%w: %v", ErrUniqueName, err)
	}
	switch zendeskapi.StatusCode(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return err
}

func recordsPath(key string, extra ...string) string {
	parts := append([]string{"/custom_objects", url.PathEscape(key), "records"}, extra...)
	return strings.Join(parts, "/")
}

func listQuery(opts *ListOptions) url.Values {
	q := url.Values{}
	if opts == nil {
		return q
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.PageSize > 0 {
		q.Set("page[size]", strconv.Itoa(opts.PageSize))
	}
	if opts.Cursor != "" {
		q.Set("page[after]", opts.Cursor)
	}
	if len(opts.ExternalIDs) > 0 {
		q.Set("filter[external_ids]", strings.Join(opts.ExternalIDs, ","))
	}
	return q
}

func (b *httpBackend) CreateRecord(ctx context.Context, key string, payload *RecordPayload) (*Record, error) {
	var envelope wireRecordEnvelope
	if err := b.do(ctx, http.MethodPost, recordsPath(key), nil, recordBody(payload), &envelope); err != nil {
		return nil, err
	}
	if envelope.CustomObjectRecord == nil {
		return nil, fmt.Errorf("records: create response missing record")
	}
	return envelope.CustomObjectRecord, nil
}

func (b *httpBackend) GetRecord(ctx context.Context, key, id string) (*Record, error) {
	var envelope wireRecordEnvelope
	if err := b.do(ctx, http.MethodGet, recordsPath(key, url.PathEscape(id)), nil, nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.CustomObjectRecord == nil {
		return nil, fmt.Errorf("%w: record %q on %q", ErrNotFound, id, key)
	}
	return envelope.CustomObjectRecord, nil
}

func (b *httpBackend) UpdateRecord(ctx context.Context, key, id string, payload *RecordPayload) (*Record, error) {
	var envelope wireRecordEnvelope
	if err := b.do(ctx, http.MethodPatch, recordsPath(key, url.PathEscape(id)), nil, recordBody(payload), &envelope); err != nil {
		return nil, err
	}
	if envelope.CustomObjectRecord == nil {
		return nil, fmt.Errorf("records: update response missing record")
	}
	return envelope.CustomObjectRecord, nil
}

func (b *httpBackend) DeleteRecord(ctx context.Context, key, id string) error {
	return b.do(ctx, http.MethodDelete, recordsPath(key, url.PathEscape(id)), nil, nil, nil)
}

func (b *httpBackend) ListRecords(ctx context.Context, key string, opts *ListOptions) (*ListResult, error) {
	var list wireRecordList
	if err := b.do(ctx, http.MethodGet, recordsPath(key), listQuery(opts), nil, &list); err != nil {
		return nil, err
	}
	return &ListResult{
		Records:     list.CustomObjectRecords,
		AfterCursor: list.Meta.AfterCursor,
		HasMore:     list.Meta.HasMore,
	}, nil
}

func (b *httpBackend) SearchRecords(ctx context.Context, key, query string, filter Filter, opts *ListOptions) (*ListResult, error) {
	q := listQuery(opts)
	var list wireRecordList
	if len(filter) == 0 {
		if query != "" {
			q.Set("query", query)
		}
		if err := b.do(ctx, http.MethodGet, recordsPath(key, "search"), q, nil, &list); err != nil {
			return nil, err
		}
	} else {
		payload := map[string]any{"filter": filterBody(filter)}
		if err := b.do(ctx, http.MethodPost, recordsPath(key, "search"), q, payload, &list); err != nil {
			return nil, err
		}
	}
	return &ListResult{
		Records:     list.CustomObjectRecords,
		AfterCursor: list.Meta.AfterCursor,
		HasMore:     list.Meta.HasMore,
	}, nil
}

// filterBody expands criteria into the search filter syntax: plain values
// become $eq comparisons, map values pass through for other operators.
func filterBody(filter Filter) map[string]any {
	body := make(map[string]any, len(filter))
	for key, value := range filter {
		wireKey := key
		if !systemFilterKeys[key] && !strings.HasPrefix(key, "custom_object_fields.") {
			wireKey = "custom_object_fields." + key
		}
		if cmp, ok := value.(map[string]any); ok {
			body[wireKey] = cmp
			continue
		}
		body[wireKey] = map[string]any{"$eq": value}
	}
	return body
}

func (b *httpBackend) CountRecords(ctx context.Context, key string) (int, error) {
	var payload struct {
		Count json.RawMessage `json:"count"`
	}
	if err := b.do(ctx, http.MethodGet, recordsPath(key, "count"), nil, nil, &payload); err != nil {
		return 0, err
	}
	if len(payload.Count) == 0 {
		return 0, nil
	}
	// The count is either a bare number or {"value": n, "refreshed_at": ...}.
	var n int
	if err := json.Unmarshal(payload.Count, &n); err == nil {
		return n, nil
	}
	var wrapped struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(payload.Count, &wrapped); err != nil {
		return 0, pkgerrors.Wrap(err, "decode record count")
	}
	return wrapped.Value, nil
}
