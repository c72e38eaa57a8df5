package history

import (
	"time"

	"github.com/comigor/jarvis-chat/internal/domain"
)

// ConversationModel is the GORM model for the conversations table.
type ConversationModel struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	OwnerID   string         `gorm:"type:varchar(64);not null;index:idx_owner_created,priority:1"`
	CreatedAt time.Time      `gorm:"not null;index:idx_owner_created,priority:2"`
	Messages  []MessageModel `gorm:"foreignKey:ConversationID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ConversationModel) TableName() string { return "conversations" }

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_conversation_created,priority:1"`
	Role           string    `gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_conversation_created,priority:2"`
}

func (MessageModel) TableName() string { return "messages" }

func (m *ConversationModel) toDomain() domain.Conversation {
	c := domain.Conversation{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		CreatedAt: m.CreatedAt,
	}
	if m.Messages != nil {
		c.Messages = make([]domain.Message, len(m.Messages))
		for i := range m.Messages {
			c.Messages[i] = m.Messages[i].toDomain()
		}
	}
	return c
}

func (m *MessageModel) toDomain() domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           domain.Role(m.Role),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
}
