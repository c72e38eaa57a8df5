// Package history persists conversations and their messages through GORM.
// Conversations are the ownership anchor; messages never outlive them.
package history

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// Store is the conversation store used by the services.
type Store interface {
	// CreateConversation inserts conv and seed in one transaction.
	CreateConversation(ctx context.Context, conv domain.Conversation, seed []domain.Message) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	// ListConversations returns ownerID's conversations newest first, each with
	// its messages oldest first.
	ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error)
	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(ctx context.Context, id string) error
	// AppendMessages inserts msgs, all of one conversation, in one transaction.
	AppendMessages(ctx context.Context, conversationID string, msgs []domain.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// GormStore implements Store on top of a *gorm.DB.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the conversations and messages tables.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&ConversationModel{}, &MessageModel{}); err != nil {
		return err
	}
	logger.L().Info().Msg("history tables migrated")
	return nil
}

func (s *GormStore) CreateConversation(ctx context.Context, conv domain.Conversation, seed []domain.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := ConversationModel{ID: conv.ID, OwnerID: conv.OwnerID, CreatedAt: conv.CreatedAt}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return insertMessages(tx, seed)
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str(logger.FieldConversationID, conv.ID).Msg("create conversation failed")
		return domain.Storage("create conversation", err)
	}
	return nil
}

func (s *GormStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var model ConversationModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Storage("get conversation", err)
	}
	conv := model.toDomain()
	return &conv, nil
}

func (s *GormStore) ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	var models []ConversationModel
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, domain.Storage("list conversations", err)
	}

	out := make([]domain.Conversation, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
		if out[i].Messages == nil {
			out[i].Messages = []domain.Message{}
		}
	}
	return out, nil
}

func (s *GormStore) DeleteConversation(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&ConversationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.Storage("delete conversation", err)
	}
	return nil
}

func (s *GormStore) AppendMessages(ctx context.Context, conversationID string, msgs []domain.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ConversationModel{}).Where("id = ?", conversationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return insertMessages(tx, msgs)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		logger.Ctx(ctx).Error().Err(err).Str(logger.FieldConversationID, conversationID).Msg("append messages failed")
		return domain.Storage("append messages", err)
	}
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, domain.Storage("list messages", err)
	}

	out := make([]domain.Message, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func insertMessages(tx *gorm.DB, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	models := make([]MessageModel, len(msgs))
	for i, m := range msgs {
		models[i] = messageToModel(m)
	}
	return tx.Create(&models).Error
}
