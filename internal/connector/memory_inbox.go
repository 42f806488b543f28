package connector

import (
	"context"
	"sync"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// MemoryInbox keeps unread messages per mailbox in arrival order.
type MemoryInbox struct {
	mu      sync.Mutex
	unread  map[string][]string
	entries map[string]map[string]domain.InboundMessage
}

func NewMemoryInbox() *MemoryInbox {
	return &MemoryInbox{
		unread:  map[string][]string{},
		entries: map[string]map[string]domain.InboundMessage{},
	}
}

// Enqueue ignores a message whose id is already unread in the mailbox.
func (m *MemoryInbox) Enqueue(_ context.Context, msg domain.InboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	box, ok := m.entries[msg.Mailbox]
	if !ok {
		box = map[string]domain.InboundMessage{}
		m.entries[msg.Mailbox] = box
	}
	if _, dup := box[msg.ExternalID]; dup {
		return nil
	}
	box[msg.ExternalID] = msg
	m.unread[msg.Mailbox] = append(m.unread[msg.Mailbox], msg.ExternalID)
	return nil
}

func (m *MemoryInbox) FetchUnread(_ context.Context, mailbox string, limit int) ([]domain.InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.unread[mailbox]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.InboundMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.entries[mailbox][id])
	}
	return out, nil
}

func (m *MemoryInbox) MarkRead(_ context.Context, mailbox, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.unread[mailbox]
	for i, id := range ids {
		if id == externalID {
			m.unread[mailbox] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	delete(m.entries[mailbox], externalID)
	return nil
}
