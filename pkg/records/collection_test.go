package records_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mercuryfield/zenorm_go/pkg/records"
)

func newIncidentCollection(t *testing.T) (*records.Collection[incident], *records.MockBackend) {
	t.Helper()
	backend := records.NewMockBackend()
	col, err := records.NewCollection[incident](records.NewWithBackend(backend))
	require.NoError(t, err)
	backend.RegisterObject(col.Definition())
	return col, backend
}

func TestCollectionCreateAndGet(t *testing.T) {
	col, _ := newIncidentCollection(t)
	ctx := context.Background()

	in := &incident{Code: "INC-1", Status: "open"}
	require.NoError(t, col.Create(ctx, in))
	require.NotEmpty(t, in.ID)
	require.Equal(t, "Unnamed Object", in.Name)
	require.False(t, in.CreatedAt.IsZero())

	got, err := col.Get(ctx, in.ID)
	require.NoError(t, err)
	require.Equal(t, "INC-1", got.Code)
	require.Equal(t, "open", got.Status)
}

func TestCollectionSaveAndUpdate(t *testing.T) {
	col, _ := newIncidentCollection(t)
	ctx := context.Background()

	in := &incident{Code: "INC-2", Status: "open"}
	require.NoError(t, col.Save(ctx, in))
	id := in.ID
	require.NotEmpty(t, id)

	in.Status = "closed"
	require.NoError(t, col.Save(ctx, in))
	require.Equal(t, id, in.ID)

	got, err := col.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "closed", got.Status)
}

func TestCollectionGetOne(t *testing.T) {
	col, _ := newIncidentCollection(t)
	ctx := context.Background()

	_, err := col.GetOne(ctx, records.Filter{"code": "INC-3"})
	require.ErrorIs(t, err, records.ErrNotFound)

	require.NoError(t, col.Create(ctx, &incident{Code: "INC-3", Status: "open"}))
	got, err := col.GetOne(ctx, records.Filter{"code": "INC-3"})
	require.NoError(t, err)
	require.Equal(t, "INC-3", got.Code)

	require.NoError(t, col.Create(ctx, &incident{Code: "INC-3", Status: "closed"}))
	_, err = col.GetOne(ctx, records.Filter{"code": "INC-3"})
	require.ErrorIs(t, err, records.ErrMultipleRecords)
}

func TestCollectionFilterAndSearch(t *testing.T) {
	col, _ := newIncidentCollection(t)
	ctx := context.Background()

	a := &incident{Code: "INC-4", Status: "open"}
	a.Name = "database outage"
	b := &incident{Code: "INC-5", Status: "closed"}
	b.Name = "printer jam"
	require.NoError(t, col.Create(ctx, a))
	require.NoError(t, col.Create(ctx, b))

	open, err := col.Filter(ctx, records.Filter{"status": "open"}, nil)
	require.NoError(t, err)
	require.Len(t, open.Items, 1)
	require.Equal(t, "INC-4", open.Items[0].Code)

	found, err := col.Search(ctx, "outage", nil)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	require.Equal(t, "database outage", found.Items[0].Name)
}

func TestCollectionCountAndDelete(t *testing.T) {
	col, _ := newIncidentCollection(t)
	ctx := context.Background()

	in := &incident{Code: "INC-6"}
	require.NoError(t, col.Create(ctx, in))

	n, err := col.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, col.Delete(ctx, in))
	n, err = col.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = col.Get(ctx, in.ID)
	require.ErrorIs(t, err, records.ErrNotFound)
}

func TestCollectionByExternalID(t *testing.T) {
	col, _ := newIncidentCollection(t)
	ctx := context.Background()

	in := &incident{Code: "INC-7"}
	in.ExternalID = "crm-99"
	require.NoError(t, col.Create(ctx, in))

	got, err := col.ByExternalID(ctx, "crm-99")
	require.NoError(t, err)
	require.Equal(t, "INC-7", got.Code)

	_, err = col.ByExternalID(ctx, "crm-0")
	require.ErrorIs(t, err, records.ErrNotFound)
}

func TestCollectionAutoincrementNames(t *testing.T) {
	backend := records.NewMockBackend()
	col, err := records.NewCollection[order](records.NewWithBackend(backend))
	require.NoError(t, err)
	backend.RegisterObject(col.Definition())
	ctx := context.Background()

	first := &order{Total: 10}
	second := &order{Total: 20}
	require.NoError(t, col.Create(ctx, first))
	require.NoError(t, col.Create(ctx, second))
	require.Equal(t, "ORD-00001", first.Name)
	require.Equal(t, "ORD-00002", second.Name)
}

func TestUpdateWithoutNameKeepsExisting(t *testing.T) {
	backend := records.NewMockBackend()
	col, err := records.NewCollection[order](records.NewWithBackend(backend))
	require.NoError(t, err)
	backend.RegisterObject(col.Definition())
	ctx := context.Background()

	in := &order{Total: 10}
	require.NoError(t, col.Create(ctx, in))
	require.Equal(t, "ORD-00001", in.Name)

	updated, err := records.NewWithBackend(backend).Update(ctx, "order", in.ID, &records.RecordPayload{
		Fields: map[string]any{"total": 15.0},
	})
	require.NoError(t, err)
	require.Equal(t, "ORD-00001", updated.Name, "omitted name must not be re-resolved")

	next := &order{Total: 20}
	require.NoError(t, col.Create(ctx, next))
	require.Equal(t, "ORD-00002", next.Name, "update must not consume the sequence")
}

func TestMockRejectsDuplicateUniqueName(t *testing.T) {
	backend := records.NewMockBackend()
	col, err := records.NewCollection[order](records.NewWithBackend(backend))
	require.NoError(t, err)
	backend.RegisterObject(col.Definition())
	ctx := context.Background()

	a := &order{Total: 1}
	a.Name = "invoice-1"
	require.NoError(t, col.Create(ctx, a))

	b := &order{Total: 2}
	b.Name = "invoice-1"
	require.ErrorIs(t, col.Create(ctx, b), records.ErrUniqueName)
}

func TestMockValidatesFields(t *testing.T) {
	_, backend := newIncidentCollection(t)
	ctx := context.Background()

	_, err := records.NewWithBackend(backend).Create(ctx, "incident", &records.RecordPayload{
		Fields: map[string]any{"status": "bogus"},
	})
	require.ErrorIs(t, err, records.ErrBadRequest)

	_, err = records.NewWithBackend(backend).Create(ctx, "incident", &records.RecordPayload{
		Fields: map[string]any{"nonexistent": 1},
	})
	require.ErrorIs(t, err, records.ErrBadRequest)
}
