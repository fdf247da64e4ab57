// Package records reads and writes Zendesk custom object records through
// the /api/v2/custom_objects/{key}/records endpoints.
//
// Client works on raw Record values; Collection layers typed access on top
// of it, encoding and decoding tagged model structs through their derived
// schema definition:
//
//	col, _ := records.NewCollection[Ticket](client)
//	t := &Ticket{Code: "TCK-1"}
//	_ = col.Create(ctx, t) // t.ID, t.CreatedAt now populated
//
// NewFromEnv picks HTTP or in-memory mock transport from the environment,
// so application code stays identical in tests and production.
package records
