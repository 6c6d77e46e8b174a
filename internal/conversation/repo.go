package conversation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Omit("Messages").Create(c).Error
}

// GetConversationByToken is a hard lookup: an unknown token yields ErrNotFound.
func (r *Repo) GetConversationByToken(ctx context.Context, token string) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).
		Where("public_token = ?", token).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// AppendMessage inserts m and bumps the parent's last_message_at in one transaction.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", m.ConversationID).
			Update("last_message_at", m.CreatedAt).Error
	})
}

func (r *Repo) CountMessages(ctx context.Context, conversationID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, err
}

// ListMessagesPage returns messages in ASC (created_at, id) order.
func (r *Repo) ListMessagesPage(ctx context.Context, conversationID uint64, limit, offset int) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead stamps read_at on every unread message sent by sender and reports how many rows changed.
func (r *Repo) MarkRead(ctx context.Context, conversationID uint64, sender string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND sender = ? AND read_at IS NULL", conversationID, sender).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

func (r *Repo) CountUnread(ctx context.Context, conversationID uint64, sender string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND sender = ? AND read_at IS NULL", conversationID, sender).
		Count(&n).Error
	return n, err
}

func (r *Repo) UpdateStatus(ctx context.Context, conversationID uint64, status string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update("status", status).Error
}
