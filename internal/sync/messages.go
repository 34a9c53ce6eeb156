package sync

import (
	"context"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
)

const scopeMessages = "messages"

// MessageSync keeps the ordered message list of one room. Ordering is
// eventually consistent ascending by createdAt: a just-sent message may sort
// at the end until the store acknowledges its server timestamp.
type MessageSync struct {
	subs    *Subscriptions
	publish func([]models.Message)
	onError func(error)
}

// NewMessageSync wires a MessageSync to its consumer callbacks.
func NewMessageSync(subs *Subscriptions, publish func([]models.Message), onError func(error)) *MessageSync {
	return &MessageSync{subs: subs, publish: publish, onError: onError}
}

// Start subscribes to the room's message stream, replacing any previous
// message subscription of this consumer.
func (m *MessageSync) Start(ctx context.Context, roomID string) error {
	q := store.Query{
		Path:    models.MessagesPath(roomID),
		OrderBy: "createdAt",
	}
	return m.subs.Replace(ctx, scopeMessages, q, m.handleSnapshot, m.onError)
}

// Stop tears down the message subscription.
func (m *MessageSync) Stop() {
	m.subs.Stop(scopeMessages)
}

func (m *MessageSync) handleSnapshot(snap store.Snapshot) {
	messages := make([]models.Message, 0, len(snap))
	for _, doc := range snap {
		messages = append(messages, models.MapMessage(doc.ID, doc.Fields))
	}
	observability.IncSnapshot("messages")
	m.publish(messages)
}
