package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/mercuryfield/zenorm_go/internal/httpx"
	"github.com/mercuryfield/zenorm_go/internal/zendeskapi"
)

// ErrNotFound is returned when a custom object or field does not exist.
var ErrNotFound = errors.New("schema: not found")

// Object is a custom object as reported by the API.
type Object struct {
	Key             string    `json:"key"`
	Title           string    `json:"title"`
	TitlePluralized string    `json:"title_pluralized"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Backend is the raw operation set behind the schema client. The HTTP
// implementation talks to Zendesk; mocks satisfy it in memory.
type Backend interface {
	ListObjects(ctx context.Context) ([]Object, error)
	GetObject(ctx context.Context, key string) (*Object, error)
	CreateObject(ctx context.Context, def *Definition) (*Object, error)
	DeleteObject(ctx context.Context, key string) error
	ListFields(ctx context.Context, key string) ([]Field, error)
	CreateField(ctx context.Context, key string, field Field) (*Field, error)
}

// Client manages custom object schemas.
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

// ListObjects returns every custom object on the account.
func (c *Client) ListObjects(ctx context.Context) ([]Object, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("schema: client is nil")
	}
	return c.backend.ListObjects(ctx)
}

// GetObject returns the custom object with the given key.
func (c *Client) GetObject(ctx context.Context, key string) (*Object, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("schema: client is nil")
	}
	return c.backend.GetObject(ctx, key)
}

// CreateObject creates the custom object described by def. Fields are not
// created here; use Ensure for the full reconciliation.
func (c *Client) CreateObject(ctx context.Context, def *Definition) (*Object, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("schema: client is nil")
	}
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrBadDefinition)
	}
	return c.backend.CreateObject(ctx, def)
}

// DeleteObject removes a custom object and all its records.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	if c == nil || c.backend == nil {
		return fmt.Errorf("schema: client is nil")
	}
	return c.backend.DeleteObject(ctx, key)
}

// ListFields returns the custom fields declared on an object.
func (c *Client) ListFields(ctx context.Context, key string) ([]Field, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("schema: client is nil")
	}
	return c.backend.ListFields(ctx, key)
}

// CreateField adds one field to an existing custom object. The reserved
// name field is rejected.
func (c *Client) CreateField(ctx context.Context, key string, field Field) (*Field, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("schema: client is nil")
	}
	if field.Key == "name" {
		return nil, fmt.Errorf("%w: field \"name\" cannot be created", ErrBadDefinition)
	}
	if !field.Type.Valid() {
		return nil, fmt.Errorf("%w: unsupported field type %q", ErrBadDefinition, field.Type)
	}
	return c.backend.CreateField(ctx, key, field)
}

// Ensure gets or creates the custom object, then creates any declared
// fields missing remotely. It reports whether the object itself was
// created. Ensure is idempotent.
func (c *Client) Ensure(ctx context.Context, def *Definition) (*Object, bool, error) {
	if c == nil || c.backend == nil {
		return nil, false, fmt.Errorf("schema: client is nil")
	}
	if def == nil {
		return nil, false, fmt.Errorf("%w: nil definition", ErrBadDefinition)
	}

	created := false
	obj, err := c.backend.GetObject(ctx, def.Key)
	if errors.Is(err, ErrNotFound) {
		obj, err = c.backend.CreateObject(ctx, def)
		created = true
	}
	if err != nil {
		return nil, false, err
	}

	existing, err := c.backend.ListFields(ctx, def.Key)
	if err != nil {
		return nil, created, err
	}
	have := make(map[string]bool, len(existing))
	for _, f := range existing {
		have[f.Key] = true
	}

	for _, f := range def.WireFields() {
		if f.Key == "name" || have[f.Key] {
			continue
		}
		if _, err := c.backend.CreateField(ctx, def.Key, f); err != nil {
			return nil, created, fmt.Errorf("schema: create field %q on %q: %w", f.Key, def.Key, err)
		}
	}
	return obj, created, nil
}

// EnsureFromModel derives the definition from a tagged struct and runs
// Ensure with it.
func (c *Client) EnsureFromModel(ctx context.Context, model any) (*Object, bool, error) {
	def, err := FromModel(model)
	if err != nil {
		return nil, false, err
	}
	return c.Ensure(ctx, def)
}

type httpBackend struct {
	client *httpx.Client
}

// Wire shapes for the custom object and field endpoints.
type wireObjectEnvelope struct {
	CustomObject *Object `json:"custom_object"`
}

type wireObjectList struct {
	CustomObjects []Object `json:"custom_objects"`
}

type wireFieldOption struct {
	Name    string `json:"name"`
	RawName string `json:"raw_name"`
	Value   string `json:"value"`
}

type wireField struct {
	Key                    string            `json:"key"`
	Title                  string            `json:"title"`
	Type                   FieldType         `json:"type"`
	RegexpForValidation    string            `json:"regexp_for_validation,omitempty"`
	RelationshipTargetType string            `json:"relationship_target_type,omitempty"`
	CustomFieldOptions     []wireFieldOption `json:"custom_field_options,omitempty"`
}

type wireFieldEnvelope struct {
	CustomObjectField *wireField `json:"custom_object_field"`
}

type wireFieldList struct {
	CustomObjectFields []wireField `json:"custom_object_fields"`
}

func (b *httpBackend) do(ctx context.Context, method, path string, payload, out any) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("schema: http backend not configured")
	}
	req := &httpx.Request{Method: method, Path: path}
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
		return zendeskapi.ParseError(err)
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

func (b *httpBackend) ListObjects(ctx context.Context) ([]Object, error) {
	var list wireObjectList
	if err := b.do(ctx, http.MethodGet, "/custom_objects", nil, &list); err != nil {
		return nil, err
	}
	return list.CustomObjects, nil
}

func (b *httpBackend) GetObject(ctx context.Context, key string) (*Object, error) {
	var envelope wireObjectEnvelope
	err := b.do(ctx, http.MethodGet, "/custom_objects/"+key, nil, &envelope)
	if err != nil {
		if zendeskapi.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: custom object %q", ErrNotFound, key)
		}
		return nil, err
	}
	if envelope.CustomObject == nil {
		return nil, fmt.Errorf("%w: custom object %q", ErrNotFound, key)
	}
	return envelope.CustomObject, nil
}

func (b *httpBackend) CreateObject(ctx context.Context, def *Definition) (*Object, error) {
	payload := map[string]any{
		"custom_object": map[string]any{
			"key":                  def.Key,
			"title":                def.Title,
			"title_pluralized":     def.TitlePluralized,
			"description":          def.Description,
			"include_in_list_view": true,
		},
	}
	var envelope wireObjectEnvelope
	if err := b.do(ctx, http.MethodPost, "/custom_objects", payload, &envelope); err != nil {
		return nil, err
	}
	if envelope.CustomObject == nil {
		return &Object{Key: def.Key, Title: def.Title, TitlePluralized: def.TitlePluralized, Description: def.Description}, nil
	}
	return envelope.CustomObject, nil
}

func (b *httpBackend) DeleteObject(ctx context.Context, key string) error {
	err := b.do(ctx, http.MethodDelete, "/custom_objects/"+key, nil, nil)
	if zendeskapi.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: custom object %q", ErrNotFound, key)
	}
	return err
}

func (b *httpBackend) ListFields(ctx context.Context, key string) ([]Field, error) {
	var list wireFieldList
	if err := b.do(ctx, http.MethodGet, "/custom_objects/"+key+"/fields", nil, &list); err != nil {
		if zendeskapi.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: custom object %q", ErrNotFound, key)
		}
		return nil, err
	}
	fields := make([]Field, 0, len(list.CustomObjectFields))
	for _, wf := range list.CustomObjectFields {
		fields = append(fields, fieldFromWire(wf))
	}
	return fields, nil
}

func (b *httpBackend) CreateField(ctx context.Context, key string, field Field) (*Field, error) {
	wf := wireField{
		Key:                 field.Key,
		Title:               field.Title,
		Type:                field.Type,
		RegexpForValidation: field.Pattern,
	}
	if field.Type == TypeLookup {
		wf.RelationshipTargetType = field.RelationshipTargetType()
	}
	for _, c := range field.Choices {
		wf.CustomFieldOptions = append(wf.CustomFieldOptions, wireFieldOption{
			Name:    c.Label,
			RawName: c.Label,
			Value:   c.Value,
		})
	}
	var envelope wireFieldEnvelope
	if err := b.do(ctx, http.MethodPost, "/custom_objects/"+key+"/fields", wireFieldEnvelope{CustomObjectField: &wf}, &envelope); err != nil {
		return nil, err
	}
	if envelope.CustomObjectField == nil {
		out := fieldFromWire(wf)
		return &out, nil
	}
	out := fieldFromWire(*envelope.CustomObjectField)
	return &out, nil
}

func fieldFromWire(wf wireField) Field {
	f := Field{
		Key:     wf.Key,
		Title:   wf.Title,
		Type:    wf.Type,
		Pattern: wf.RegexpForValidation,
	}
	if target, ok := strings.CutPrefix(wf.RelationshipTargetType, "zen:custom_object:"); ok {
		f.Target = target
	}
	for _, opt := range wf.CustomFieldOptions {
		f.Choices = append(f.Choices, Choice{Value: opt.Value, Label: opt.Name})
	}
	return f
}
