package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/guard"
	"github.com/comigor/jarvis-chat/internal/history"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// ConversationService is thin CRUD over the store.
type ConversationService struct {
	store    history.Store
	guard    *guard.Guard
	messages *MessageService
}

func NewConversationService(store history.Store, g *guard.Guard, messages *MessageService) *ConversationService {
	return &ConversationService{store: store, guard: g, messages: messages}
}

// List returns the identity's conversations newest first.
func (s *ConversationService) List(ctx context.Context, identity *domain.Identity) ([]domain.Conversation, error) {
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.ListConversations(ctx, identity.UserID)
}

// Create starts a conversation owned by identity, optionally seeded.
func (s *ConversationService) Create(ctx context.Context, identity *domain.Identity, seed []domain.NewMessage) (*domain.Conversation, error) {
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	conv := domain.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   identity.UserID,
		CreatedAt: s.messages.clock.Next(),
	}
	msgs, err := s.messages.build(conv.ID, seed)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateConversation(ctx, conv, msgs); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str(logger.FieldConversationID, conv.ID).
		Int("seed", len(msgs)).
		Msg("conversation created")
	conv.Messages = msgs
	return &conv, nil
}

// Delete removes an owned conversation and its messages.
func (s *ConversationService) Delete(ctx context.Context, identity *domain.Identity, conversationID string) error {
	if _, err := s.guard.Authorize(ctx, identity, conversationID, guard.Write); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Str(logger.FieldConversationID, conversationID).Msg("conversation deleted")
	return nil
}

// Messages returns the transcript oldest first.
func (s *ConversationService) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.store.ListMessages(ctx, conversationID)
}
