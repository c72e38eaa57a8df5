// Package guard decides whether an identity may touch a conversation.
package guard

import (
	"context"
	"errors"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/history"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// Access is the kind of operation being authorized.
type Access int

const (
	Read Access = iota
	Write
)

func (a Access) String() string {
	if a == Write {
		return "write"
	}
	return "read"
}

// Guard checks conversation ownership against the store.
type Guard struct {
	store history.Store
}

func New(store history.Store) *Guard {
	return &Guard{store: store}
}

// Authorize returns the conversation when identity owns it. A missing
// identity is Unauthenticated, an empty id is Validation, an unknown
// conversation is NotFound and someone else's conversation is Forbidden.
// Reads and writes share the same rule: only the owner may do either.
func (g *Guard) Authorize(ctx context.Context, identity *domain.Identity, conversationID string, access Access) (*domain.Conversation, error) {
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if conversationID == "" {
		return nil, domain.Validation("conversation id is required")
	}

	conv, err := g.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if conv.OwnerID != identity.UserID {
		logger.Ctx(ctx).Warn().
			Str(logger.FieldUserID, identity.UserID).
			Str(logger.FieldConversationID, conversationID).
			Str("access", access.String()).
			Msg("conversation access denied")
		return nil, domain.ErrForbidden
	}
	return conv, nil
}
