package files

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockBackend is an in-memory file store for offline development and tests.
type MockBackend struct {
	mu          sync.RWMutex
	nextID      int64
	uploads     map[string][]Attachment
	attachments map[int64]*storedAttachment
	tickets     map[int64][]TicketComment
}

type storedAttachment struct {
	attachment Attachment
	data       []byte
}

// TicketComment records an AttachToTicket call made against the mock.
type TicketComment struct {
	Body        string
	Public      *bool
	Attachments []Attachment
}

// NewMockBackend returns an empty in-memory files backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		uploads:     make(map[string][]Attachment),
		attachments: make(map[int64]*storedAttachment),
		tickets:     make(map[int64][]TicketComment),
	}
}

func (m *MockBackend) Upload(ctx context.Context, filename, contentType, token string, data []byte) (*Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token == "" {
		token = uuid.NewString()
	} else if _, ok := m.uploads[token]; !ok {
		return nil, fmt.Errorf("%w: upload token %q", ErrNotFound, token)
	}

	m.nextID++
	att := Attachment{
		ID:          m.nextID,
		FileName:    filename,
		ContentType: contentType,
		ContentURL:  fmt.Sprintf("mock://attachments/%d/%s", m.nextID, filename),
		Size:        int64(len(data)),
	}
	m.attachments[att.ID] = &storedAttachment{attachment: att, data: append([]byte(nil), data...)}
	m.uploads[token] = append(m.uploads[token], att)

	batch := append([]Attachment(nil), m.uploads[token]...)
	return &Upload{Token: token, Attachment: &att, Attachments: batch}, nil
}

func (m *MockBackend) DeleteUpload(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.uploads[token]
	if !ok {
		return fmt.Errorf("%w: upload token %q", ErrNotFound, token)
	}
	for _, att := range batch {
		delete(m.attachments, att.ID)
	}
	delete(m.uploads, token)
	return nil
}

func (m *MockBackend) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.attachments[id]
	if !ok {
		return nil, fmt.Errorf("%w: attachment %d", ErrNotFound, id)
	}
	att := stored.attachment
	return &att, nil
}

func (m *MockBackend) AttachToTicket(ctx context.Context, ticketID int64, comment string, public *bool, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var attached []Attachment
	for _, token := range tokens {
		batch, ok := m.uploads[token]
		if !ok {
			return fmt.Errorf("%w: upload token %q", ErrNotFound, token)
		}
		attached = append(attached, batch...)
		// Tokens are single-use; attaching consumes the batch.
		delete(m.uploads, token)
	}
	m.tickets[ticketID] = append(m.tickets[ticketID], TicketComment{
		Body:        comment,
		Public:      public,
		Attachments: attached,
	})
	return nil
}

// AttachmentData returns the stored bytes of an attachment.
func (m *MockBackend) AttachmentData(id int64) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.attachments[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), stored.data...), true
}

// TicketComments returns the comments the mock has recorded for a ticket.
func (m *MockBackend) TicketComments(ticketID int64) []TicketComment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TicketComment(nil), m.tickets[ticketID]...)
}
