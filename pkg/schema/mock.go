package schema

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mercuryfield/zenorm_go/internal/devseed"
)

// MockOption configures a MockBackend.
type MockOption func(*MockBackend)

// WithDefinitionObserver registers a callback invoked with a snapshot of an
// object's definition whenever the object or its fields change. The records
// mock uses it to pick up name rules and field validation.
func WithDefinitionObserver(fn func(*Definition)) MockOption {
	return func(m *MockBackend) {
		m.observer = fn
	}
}

// MockBackend is an in-memory Backend for offline development and tests.
type MockBackend struct {
	mu       sync.RWMutex
	objects  map[string]*mockObject
	observer func(*Definition)
}

type mockObject struct {
	object Object
	name   NameOptions
	fields []Field
}

// NewMockBackend returns an empty in-memory schema backend.
func NewMockBackend(opts ...MockOption) *MockBackend {
	m := &MockBackend{objects: make(map[string]*mockObject)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefinitionFromSeed builds a finished Definition from a dev seed entry.
func DefinitionFromSeed(seed devseed.ObjectSeed) (*Definition, error) {
	def := &Definition{Key: seed.Key, Title: seed.Title, Description: seed.Description}
	for _, fs := range seed.Fields {
		def.Fields = append(def.Fields, Field{
			Key:     fs.Key,
			Title:   fs.Title,
			Type:    FieldType(fs.Type),
			Pattern: fs.Pattern,
			Target:  fs.Target,
			Choices: ChoicesFromLabels(fs.Choices),
		})
	}
	if err := def.finish(); err != nil {
		return nil, err
	}
	return def, nil
}

// SeedObjects preloads custom object definitions from a dev seed.
func (m *MockBackend) SeedObjects(seeds []devseed.ObjectSeed) error {
	for _, seed := range seeds {
		def, err := DefinitionFromSeed(seed)
		if err != nil {
			return err
		}
		if _, err := m.CreateObject(context.Background(), def); err != nil {
			return err
		}
		for _, f := range def.WireFields() {
			if _, err := m.CreateField(context.Background(), def.Key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MockBackend) ListObjects(ctx context.Context) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Object, 0, len(m.objects))
	for _, obj := range m.objects {
		out = append(out, obj.object)
	}
	return out, nil
}

func (m *MockBackend) GetObject(ctx context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: custom object %q", ErrNotFound, key)
	}
	found := obj.object
	return &found, nil
}

func (m *MockBackend) CreateObject(ctx context.Context, def *Definition) (*Object, error) {
	m.mu.Lock()
	if _, exists := m.objects[def.Key]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: custom object %q already exists", ErrBadDefinition, def.Key)
	}
	now := time.Now().UTC()
	obj := &mockObject{
		object: Object{
			Key:             def.Key,
			Title:           def.Title,
			TitlePluralized: def.TitlePluralized,
			Description:     def.Description,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		name: def.Name,
	}
	m.objects[def.Key] = obj
	created := obj.object
	m.mu.Unlock()

	m.notify(def.Key)
	return &created, nil
}

func (m *MockBackend) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("%w: custom object %q", ErrNotFound, key)
	}
	delete(m.objects, key)
	return nil
}

func (m *MockBackend) ListFields(ctx context.Context, key string) ([]Field, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: custom object %q", ErrNotFound, key)
	}
	return append([]Field(nil), obj.fields...), nil
}

func (m *MockBackend) CreateField(ctx context.Context, key string, field Field) (*Field, error) {
	m.mu.Lock()
	obj, ok := m.objects[key]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: custom object %q", ErrNotFound, key)
	}
	for _, f := range obj.fields {
		if f.Key == field.Key {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: field %q already exists on %q", ErrBadDefinition, field.Key, key)
		}
	}
	obj.fields = append(obj.fields, field)
	m.mu.Unlock()

	m.notify(key)
	return &field, nil
}

// notify snapshots the object's definition and hands it to the observer.
func (m *MockBackend) notify(key string) {
	if m.observer == nil {
		return
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	if !ok {
		m.mu.RUnlock()
		return
	}
	def := &Definition{
		Key:         obj.object.Key,
		Title:       obj.object.Title,
		Description: obj.object.Description,
		Name:        obj.name,
		Fields:      append([]Field(nil), obj.fields...),
	}
	m.mu.RUnlock()
	def.index()
	m.observer(def)
}
