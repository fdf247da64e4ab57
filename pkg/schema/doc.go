// Package schema maps Go model structs onto Zendesk custom object
// definitions and manages the remote schema through the custom objects
// admin endpoints (/api/v2/custom_objects and .../fields).
//
// A model is a plain struct whose fields carry `zendesk` tags:
//
//	type Ticket struct {
//		records.Model
//		Code   string   `zendesk:"code"`
//		Status string   `zendesk:"status,type=dropdown,choices=Open|Closed"`
//		Due    time.Time `zendesk:"due,type=date"`
//	}
//
// FromModel turns such a struct into a Definition; Client.Ensure creates the
// custom object and any missing fields remotely, and is safe to run at every
// startup. Definitions can also be written as YAML files and loaded with
// LoadDefinition.
package schema
