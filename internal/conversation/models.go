package conversation

import "time"

const (
	StatusOpen   = "open"
	StatusClosed = "closed"

	SenderUser  = "user"
	SenderAdmin = "admin"
)

type Conversation struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	PublicToken   string     `gorm:"type:varchar(36);uniqueIndex;not null"`
	UserID        *uint64    `gorm:"index"`
	ClientName    *string    `gorm:"type:varchar(128)"`
	ClientEmail   *string    `gorm:"type:varchar(255)"`
	ClientPhone   *string    `gorm:"type:varchar(32)"`
	Status        string     `gorm:"type:varchar(16);not null;default:open;index"`
	LastMessageAt *time.Time `gorm:"precision:3;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Messages []Message `gorm:"constraint:OnDelete:CASCADE"`
}

// Snapshot column widths; longer client input is cut to fit.
const (
	maxClientName  = 128
	maxClientEmail = 255
	maxClientPhone = 32
)

func (Conversation) TableName() string { return "chat_conversations" }

// Message rows are written once; read_at is the only column updated afterwards.
type Message struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement"`
	ConversationID uint64     `gorm:"not null;index:idx_chat_msg_conv_created,priority:1;index:idx_chat_msg_conv_unread,priority:1"`
	Sender         string     `gorm:"type:varchar(16);not null;index:idx_chat_msg_conv_unread,priority:2"`
	SenderID       *uint64    `gorm:"index"`
	Body           *string    `gorm:"type:text"`
	ReadAt         *time.Time `gorm:"precision:3;index:idx_chat_msg_conv_unread,priority:3"`
	CreatedAt      time.Time  `gorm:"precision:3;not null;index:idx_chat_msg_conv_created,priority:2"`
}

func (Message) TableName() string { return "chat_messages" }

// Caller is the identity of whoever invokes the service. A nil UserID means anonymous.
type Caller struct {
	UserID *uint64
	Name   *string
	Email  *string
	Phone  *string
}

func Anonymous() Caller { return Caller{} }

func (c Caller) IsAnonymous() bool { return c.UserID == nil }

// OppositeSender returns the role whose messages the given side may mark as read.
func OppositeSender(as string) string {
	if as == SenderUser {
		return SenderAdmin
	}
	return SenderUser
}

func validSender(s string) bool {
	return s == SenderUser || s == SenderAdmin
}
