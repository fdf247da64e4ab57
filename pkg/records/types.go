package records

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record is missing.
	ErrNotFound = errors.New("records: not found")
	// ErrUniqueName signals a record name rejected by a unique name field.
	ErrUniqueName = errors.New("records: name already exists")
	// ErrBadRequest is returned when Zendesk rejects the request shape.
	ErrBadRequest = errors.New("records: bad request")
	// ErrMultipleRecords is returned by single-record lookups matching more than one record.
	ErrMultipleRecords = errors.New("records: multiple records returned, expected exactly one")
)

// Model carries the system fields every custom object record has. Embed it
// in model structs; the codec populates it on reads and consults it on
// writes.
type Model struct {
	ID              string    `json:"id,omitempty"`
	Name            string    `json:"name,omitempty"`
	ExternalID      string    `json:"external_id,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
	CreatedByUserID string    `json:"created_by_user_id,omitempty"`
	UpdatedByUserID string    `json:"updated_by_user_id,omitempty"`
}

// Record is the raw wire representation of a custom object record.
type Record struct {
	ID              string         `json:"id,omitempty"`
	Name            string         `json:"name,omitempty"`
	ExternalID      string         `json:"external_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at,omitempty"`
	CreatedByUserID string         `json:"created_by_user_id,omitempty"`
	UpdatedByUserID string         `json:"updated_by_user_id,omitempty"`
	Fields          map[string]any `json:"custom_object_fields,omitempty"`
}

// RecordPayload is the writable part of a record. A nil Name lets the
// server assign one (autoincrement name fields); an empty string falls back
// to the "Unnamed Object" default applied by the codec.
type RecordPayload struct {
	Name       *string
	ExternalID string
	Fields     map[string]any
}

// ListOptions control listing, searching and filtering calls.
type ListOptions struct {
	// Sort orders results, e.g. "updated_at" or "-updated_at".
	Sort string
	// PageSize caps the page size (Zendesk caps it at 100).
	PageSize int
	// Cursor resumes a previous listing from its AfterCursor.
	Cursor string
	// ExternalIDs narrows a listing to the given external ids.
	ExternalIDs []string
}

// ListResult is one page of records plus the cursor state to continue.
type ListResult struct {
	Records     []Record
	AfterCursor string
	HasMore     bool
}

// Filter expresses field criteria for the records search endpoint. Values
// are matched with $eq; a map value is passed through verbatim for other
// comparison operators.
type Filter map[string]any

// Page is a decoded page of models.
type Page[T any] struct {
	Items       []*T
	AfterCursor string
	HasMore     bool
}
