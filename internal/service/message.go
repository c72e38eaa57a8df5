// Package service implements message persistence and the conversation
// lifecycle on top of the history store. Callers are expected to have passed
// the guard already; nothing here re-checks ownership except Delete.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/history"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// MessageService appends messages with server-assigned ids and timestamps.
type MessageService struct {
	store history.Store
	clock *clock
}

func NewMessageService(store history.Store) *MessageService {
	return &MessageService{store: store, clock: newClock()}
}

// AppendMessage stores one message verbatim.
func (s *MessageService) AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error) {
	msgs, err := s.AppendMessages(ctx, conversationID, []domain.NewMessage{{Role: role, Content: content}})
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// AppendMessages stores msgs in order, all or nothing.
func (s *MessageService) AppendMessages(ctx context.Context, conversationID string, msgs []domain.NewMessage) ([]domain.Message, error) {
	if conversationID == "" {
		return nil, domain.Validation("conversation id is required")
	}
	if len(msgs) == 0 {
		return []domain.Message{}, nil
	}

	built, err := s.build(conversationID, msgs)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendMessages(ctx, conversationID, built); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Debug().
		Str(logger.FieldConversationID, conversationID).
		Int("count", len(built)).
		Msg("messages appended")
	return built, nil
}

func (s *MessageService) build(conversationID string, msgs []domain.NewMessage) ([]domain.Message, error) {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		if !m.Role.Valid() {
			return nil, domain.Validation(fmt.Sprintf("invalid role %q", m.Role))
		}
		out[i] = domain.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           m.Role,
			Content:        m.Content,
			CreatedAt:      s.clock.Next(),
		}
	}
	return out, nil
}
