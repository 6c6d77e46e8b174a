package conversation

import "time"

// TimeFormat renders every externally visible timestamp: ISO-8601 in UTC at
// millisecond precision, the precision the timestamp columns store.
const TimeFormat = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string { return t.UTC().Format(TimeFormat) }

type ConversationPayload struct {
	ID          uint64  `json:"id"`
	PublicToken string  `json:"public_token"`
	ClientName  *string `json:"client_name"`
	ClientEmail *string `json:"client_email"`
	ClientPhone *string `json:"client_phone"`
	Status      string  `json:"status"`
}

func (c *Conversation) Payload() ConversationPayload {
	return ConversationPayload{
		ID:          c.ID,
		PublicToken: c.PublicToken,
		ClientName:  c.ClientName,
		ClientEmail: c.ClientEmail,
		ClientPhone: c.ClientPhone,
		Status:      c.Status,
	}
}

// ConversationDetail is the lookup view: the public payload plus activity counters.
type ConversationDetail struct {
	ConversationPayload
	LastMessageAt  *string `json:"last_message_at"`
	UnreadForUser  int64   `json:"unread_for_user"`
	UnreadForAdmin int64   `json:"unread_for_admin"`
}

type MessagePayload struct {
	ID             uint64  `json:"id"`
	ConversationID uint64  `json:"conversation_id"`
	Sender         string  `json:"sender"`
	SenderID       *uint64 `json:"sender_id"`
	Body           *string `json:"body"`
	CreatedAt      string  `json:"created_at"`
	TempID         *string `json:"temp_id,omitempty"`
}

func (m *Message) Payload() MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		SenderID:       m.SenderID,
		Body:           m.Body,
		CreatedAt:      formatTime(m.CreatedAt),
	}
}

type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

type MessagePage struct {
	Data []MessagePayload `json:"data"`
	Meta PageMeta         `json:"meta"`
}
