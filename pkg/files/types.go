package files

import "errors"

var (
	// ErrNotFound is returned when an attachment is missing.
	ErrNotFound = errors.New("files: not found")
)

// Attachment is a stored file as Zendesk reports it.
type Attachment struct {
	ID          int64  `json:"id"`
	FileName    string `json:"file_name"`
	ContentURL  string `json:"content_url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Upload is the result of pushing a file to /uploads.json. The Token can be
// attached to a ticket until it expires or is consumed.
type Upload struct {
	Token       string       `json:"token"`
	Attachment  *Attachment  `json:"attachment"`
	Attachments []Attachment `json:"attachments"`
}

// UploadOptions tune an upload.
type UploadOptions struct {
	// Filename names the stored file; a random name is generated when empty.
	Filename string
	// ContentType overrides the type derived from the filename extension.
	ContentType string
	// Token appends the file to an existing upload batch.
	Token string
}

// AttachOptions tune AttachToTicket.
type AttachOptions struct {
	// Comment is the ticket comment body carrying the uploads.
	Comment string
	// Public controls comment visibility; attachments default to public.
	Public *bool
}
