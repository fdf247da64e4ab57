// Package zenorm is the top-level entry point: it wires the schema, records
// and files clients from environment variables, sharing one authenticated
// transport in HTTP mode and cross-wired in-memory backends in mock mode.
//
//	clients, err := zenorm.NewFromEnv()
//	if err != nil { ... }
//	_, _, err = clients.Schema.EnsureFromModel(ctx, &Ticket{})
//	col, _ := records.NewCollection[Ticket](clients.Records)
package zenorm
