package records

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mercuryfield/zenorm_go/internal/devseed"
	"github.com/mercuryfield/zenorm_go/pkg/schema"
)

// MockBackend is an in-memory record store for offline development and
// tests. Register definitions (directly or through a schema mock observer)
// to get name rules and field validation; unregistered objects accept any
// fields.
type MockBackend struct {
	mu        sync.RWMutex
	defs      map[string]*schema.Definition
	records   map[string]map[string]*Record
	sequences map[string]int
}

// NewMockBackend returns an empty in-memory records backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		defs:      make(map[string]*schema.Definition),
		records:   make(map[string]map[string]*Record),
		sequences: make(map[string]int),
	}
}

// RegisterObject teaches the mock an object's definition. Wire it to a
// schema.MockBackend via WithDefinitionObserver to keep both in sync.
func (m *MockBackend) RegisterObject(def *schema.Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.Key] = def
	if _, ok := m.records[def.Key]; !ok {
		m.records[def.Key] = make(map[string]*Record)
	}
}

// Seed preloads records from a dev seed.
func (m *MockBackend) Seed(seeds []devseed.RecordSeed) error {
	for _, seed := range seeds {
		name := seed.Name
		payload := &RecordPayload{ExternalID: seed.ExternalID, Fields: seed.Fields}
		if name != "" {
			payload.Name = &name
		}
		rec, err := m.CreateRecord(context.Background(), seed.Object, payload)
		if err != nil {
			return fmt.Errorf("seed record on %q: %w", seed.Object, err)
		}
		if seed.ID != "" {
			m.mu.Lock()
			delete(m.records[seed.Object], rec.ID)
			rec.ID = seed.ID
			m.records[seed.Object][rec.ID] = rec
			m.mu.Unlock()
		}
	}
	return nil
}

func (m *MockBackend) CreateRecord(ctx context.Context, key string, payload *RecordPayload) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.records[key]
	if !ok {
		bucket = make(map[string]*Record)
		m.records[key] = bucket
	}

	name, err := m.resolveName(key, bucket, payload, "")
	if err != nil {
		return nil, err
	}
	if err := m.validateFields(key, payload.Fields); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:         uuid.NewString(),
		Name:       name,
		ExternalID: payload.ExternalID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Fields:     cloneFields(payload.Fields),
	}
	bucket[rec.ID] = rec
	return copyRecord(rec), nil
}

func (m *MockBackend) GetRecord(ctx context.Context, key, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key][id]
	if !ok {
		return nil, fmt.Errorf("%w: record %q on %q", ErrNotFound, id, key)
	}
	return copyRecord(rec), nil
}

func (m *MockBackend) UpdateRecord(ctx context.Context, key, id string, payload *RecordPayload) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.records[key]
	rec, ok := bucket[id]
	if !ok {
		return nil, fmt.Errorf("%w: record %q on %q", ErrNotFound, id, key)
	}
	// A PATCH that omits the name keeps the existing one; names are only
	// resolved (defaulted or autoincremented) on create.
	name := rec.Name
	if payload.Name != nil {
		resolved, err := m.resolveName(key, bucket, payload, id)
		if err != nil {
			return nil, err
		}
		name = resolved
	}
	if err := m.validateFields(key, payload.Fields); err != nil {
		return nil, err
	}

	rec.Name = name
	if payload.ExternalID != "" {
		rec.ExternalID = payload.ExternalID
	}
	for fk, fv := range payload.Fields {
		rec.Fields[fk] = fv
	}
	rec.UpdatedAt = time.Now().UTC()
	return copyRecord(rec), nil
}

func (m *MockBackend) DeleteRecord(ctx context.Context, key, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key][id]; !ok {
		return fmt.Errorf("%w: record %q on %q", ErrNotFound, id, key)
	}
	delete(m.records[key], id)
	return nil
}

func (m *MockBackend) ListRecords(ctx context.Context, key string, opts *ListOptions) (*ListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(key, opts, func(rec *Record) bool {
		if opts == nil || len(opts.ExternalIDs) == 0 {
			return true
		}
		for _, eid := range opts.ExternalIDs {
			if rec.ExternalID == eid {
				return true
			}
		}
		return false
	})
}

func (m *MockBackend) SearchRecords(ctx context.Context, key, query string, filter Filter, opts *ListOptions) (*ListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(filter) == 0 {
		needle := strings.ToLower(query)
		return m.collect(key, opts, func(rec *Record) bool {
			return needle == "" || strings.Contains(strings.ToLower(rec.Name), needle)
		})
	}
	return m.collect(key, opts, func(rec *Record) bool {
		return matchesFilter(rec, filter)
	})
}

func (m *MockBackend) CountRecords(ctx context.Context, key string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[key]), nil
}

// resolveName applies the object's name rules: autoincrement when the
// payload has no name, uniqueness when the name field demands it.
func (m *MockBackend) resolveName(key string, bucket map[string]*Record, payload *RecordPayload, selfID string) (string, error) {
	def := m.defs[key]
	name := ""
	if payload.Name != nil {
		name = *payload.Name
	}
	if name == "" {
		if def != nil && def.Name.AutoincrementEnabled {
			seq := def.Name.AutoincrementNextSequence + m.sequences[key]
			if def.Name.AutoincrementNextSequence == 0 {
				seq++
			}
			m.sequences[key]++
			return def.Name.AutoincrementPrefix + pad(seq, def.Name.AutoincrementPadding), nil
		}
		name = defaultName
	}
	if def != nil && def.Name.Unique {
		for id, rec := range bucket {
			if id != selfID && rec.Name == name {
				return "", fmt.Errorf("%w: %q on %q", ErrUniqueName, name, key)
			}
		}
	}
	return name, nil
}

func (m *MockBackend) validateFields(key string, fields map[string]any) error {
	def := m.defs[key]
	if def == nil {
		return nil
	}
	for fk, fv := range fields {
		if fv == nil {
			continue
		}
		field := def.Field(fk)
		if field == nil {
			// Companion time values ride along with their date field.
			if base, ok := strings.CutSuffix(fk, "_time"); ok && def.Field(base) != nil {
				continue
			}
			return fmt.Errorf("%w: unknown field %q on %q", ErrBadRequest, fk, key)
		}
		if err := field.Validate(fv); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	return nil
}

func (m *MockBackend) collect(key string, opts *ListOptions, keep func(*Record) bool) (*ListResult, error) {
	matched := make([]*Record, 0, len(m.records[key]))
	for _, rec := range m.records[key] {
		if keep(rec) {
			matched = append(matched, rec)
		}
	}
	sortRecords(matched, sortKey(opts))

	offset := 0
	size := 100
	if opts != nil {
		if opts.Cursor != "" {
			n, err := strconv.Atoi(opts.Cursor)
			if err != nil {
				return nil, fmt.Errorf("%w: bad cursor %q", ErrBadRequest, opts.Cursor)
			}
			offset = n
		}
		if opts.PageSize > 0 {
			size = opts.PageSize
		}
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + size
	if end > len(matched) {
		end = len(matched)
	}

	res := &ListResult{Records: make([]Record, 0, end-offset), HasMore: end < len(matched)}
	for _, rec := range matched[offset:end] {
		res.Records = append(res.Records, *copyRecord(rec))
	}
	if res.HasMore {
		res.AfterCursor = strconv.Itoa(end)
	}
	return res, nil
}

func sortKey(opts *ListOptions) string {
	if opts == nil || opts.Sort == "" {
		return "created_at"
	}
	return opts.Sort
}

func sortRecords(recs []*Record, key string) {
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if desc {
			a, b = b, a
		}
		switch key {
		case "name":
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case "updated_at":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}

func matchesFilter(rec *Record, filter Filter) bool {
	for key, want := range filter {
		if cmp, ok := want.(map[string]any); ok {
			if eq, ok := cmp["$eq"]; ok {
				want = eq
			} else {
				return false
			}
		}
		key = strings.TrimPrefix(key, "custom_object_fields.")
		var got any
		switch key {
		case "name":
			got = rec.Name
		case "external_id":
			got = rec.ExternalID
		case "created_by_user_id":
			got = rec.CreatedByUserID
		case "updated_by_user_id":
			got = rec.UpdatedByUserID
		default:
			got = rec.Fields[key]
		}
		if !looseEqual(got, want) {
			return false
		}
	}
	return true
}

// looseEqual compares across the numeric widenings JSON decoding produces.
func looseEqual(got, want any) bool {
	if got == nil || want == nil {
		return got == want
	}
	if gf, ok := toFloat(got); ok {
		wf, ok := toFloat(want)
		return ok && gf == wf
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func copyRecord(rec *Record) *Record {
	dup := *rec
	dup.Fields = cloneFields(rec.Fields)
	return &dup
}
