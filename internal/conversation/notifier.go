package conversation

import "context"

const (
	EventMessageCreated = "message.created"
	EventMessagesRead   = "messages.read"
)

// Event is what gets pushed to the other parties of a conversation.
type Event struct {
	Type              string          `json:"type"`
	ConversationToken string          `json:"conversation_token"`
	Message           *MessagePayload `json:"message,omitempty"`
	As                string          `json:"as,omitempty"`
	Count             int64           `json:"count,omitempty"`
	ReadAt            string          `json:"read_at,omitempty"`
}

// Notifier is a best-effort fan-out sink. Delivery is at most once and errors
// are never propagated to the caller of the service.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) error { return nil }
