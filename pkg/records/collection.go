package records

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mercuryfield/zenorm_go/pkg/schema"
)

// Collection binds a model struct type to its custom object and exposes
// typed CRUD and query operations on top of a records Client.
type Collection[T any] struct {
	client *Client
	def    *schema.Definition
}

// NewCollection derives the model's definition and returns a typed
// collection. T must be a struct with zendesk-tagged fields.
func NewCollection[T any](client *Client) (*Collection[T], error) {
	var zero T
	def, err := schema.FromModel(&zero)
	if err != nil {
		return nil, err
	}
	return &Collection[T]{client: client, def: def}, nil
}

// Definition exposes the derived custom object definition.
func (c *Collection[T]) Definition() *schema.Definition {
	return c.def
}

// Create stores the model as a new record and refreshes it with the
// server-assigned system fields.
func (c *Collection[T]) Create(ctx context.Context, model *T) error {
	payload, err := EncodeModel(c.def, model)
	if err != nil {
		return err
	}
	rec, err := c.client.Create(ctx, c.def.Key, payload)
	if err != nil {
		return err
	}
	return DecodeModel(c.def, rec, model)
}

// Save creates the model when it has no id yet and updates it otherwise.
func (c *Collection[T]) Save(ctx context.Context, model *T) error {
	m, err := modelOf(model)
	if err != nil {
		return err
	}
	if m.ID == "" {
		return c.Create(ctx, model)
	}
	return c.Update(ctx, model)
}

// Get fetches a record by id into a fresh model.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	rec, err := c.client.Get(ctx, c.def.Key, id)
	if err != nil {
		return nil, err
	}
	return c.decode(rec)
}

// Update pushes the model's current field values; the model must carry the
// record id in its embedded Model.
func (c *Collection[T]) Update(ctx context.Context, model *T) error {
	m, err := modelOf(model)
	if err != nil {
		return err
	}
	if m.ID == "" {
		return fmt.Errorf("records: cannot update %q record without an id", c.def.Key)
	}
	payload, err := EncodeModel(c.def, model)
	if err != nil {
		return err
	}
	rec, err := c.client.Update(ctx, c.def.Key, m.ID, payload)
	if err != nil {
		return err
	}
	return DecodeModel(c.def, rec, model)
}

// Delete removes the model's record.
func (c *Collection[T]) Delete(ctx context.Context, model *T) error {
	m, err := modelOf(model)
	if err != nil {
		return err
	}
	if m.ID == "" {
		return fmt.Errorf("records: cannot delete %q record without an id", c.def.Key)
	}
	return c.client.Delete(ctx, c.def.Key, m.ID)
}

// DeleteByID removes a record by id without loading it first.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) error {
	return c.client.Delete(ctx, c.def.Key, id)
}

// All returns one page of models; pass the previous page's AfterCursor in
// opts.Cursor to continue.
func (c *Collection[T]) All(ctx context.Context, opts *ListOptions) (*Page[T], error) {
	res, err := c.client.List(ctx, c.def.Key, opts)
	if err != nil {
		return nil, err
	}
	return c.page(res)
}

// Search matches records by name.
func (c *Collection[T]) Search(ctx context.Context, query string, opts *ListOptions) (*Page[T], error) {
	res, err := c.client.Search(ctx, c.def.Key, query, opts)
	if err != nil {
		return nil, err
	}
	return c.page(res)
}

// Filter returns models matching the field criteria. Keys are field keys
// from the model's tags or system attributes like "name".
func (c *Collection[T]) Filter(ctx context.Context, filter Filter, opts *ListOptions) (*Page[T], error) {
	res, err := c.client.Filter(ctx, c.def.Key, filter, opts)
	if err != nil {
		return nil, err
	}
	return c.page(res)
}

// GetOne runs the filter and demands exactly one match: zero matches yield
// ErrNotFound, more than one ErrMultipleRecords.
func (c *Collection[T]) GetOne(ctx context.Context, filter Filter) (*T, error) {
	page, err := c.Filter(ctx, filter, &ListOptions{PageSize: 2})
	if err != nil {
		return nil, err
	}
	switch {
	case len(page.Items) == 0:
		return nil, fmt.Errorf("%w: no %q record matches filter", ErrNotFound, c.def.Key)
	case len(page.Items) > 1 || page.HasMore:
		return nil, fmt.Errorf("%w: filter on %q", ErrMultipleRecords, c.def.Key)
	}
	return page.Items[0], nil
}

// Last returns the most recently updated model.
func (c *Collection[T]) Last(ctx context.Context) (*T, error) {
	rec, err := c.client.Last(ctx, c.def.Key)
	if err != nil {
		return nil, err
	}
	return c.decode(rec)
}

// Count reports the number of records in the collection's object.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	return c.client.Count(ctx, c.def.Key)
}

// ByExternalID fetches the model carrying the given external id.
func (c *Collection[T]) ByExternalID(ctx context.Context, externalID string) (*T, error) {
	rec, err := c.client.GetByExternalID(ctx, c.def.Key, externalID)
	if err != nil {
		return nil, err
	}
	return c.decode(rec)
}

func (c *Collection[T]) decode(rec *Record) (*T, error) {
	out := new(T)
	if err := DecodeModel(c.def, rec, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collection[T]) page(res *ListResult) (*Page[T], error) {
	page := &Page[T]{
		Items:       make([]*T, 0, len(res.Records)),
		AfterCursor: res.AfterCursor,
		HasMore:     res.HasMore,
	}
	for i := range res.Records {
		item, err := c.decode(&res.Records[i])
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

// modelOf extracts the embedded Model from a tagged struct.
func modelOf(model any) (*Model, error) {
	v := reflect.ValueOf(model)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("records: nil model")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("records: model must be a struct, got %s", v.Kind())
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type == modelType {
			return v.Field(i).Addr().Interface().(*Model), nil
		}
	}
	return nil, fmt.Errorf("records: struct %s does not embed records.Model", t.Name())
}
