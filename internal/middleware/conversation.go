package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/guard"
	"github.com/comigor/jarvis-chat/internal/response"
)

const (
	ConversationKey = "conversation"
	ParamID         = "id"
)

// RequireConversation authorizes the :id conversation for access and stores
// it in the context. Must run after RequireAuth.
func RequireConversation(g *guard.Guard, access guard.Access) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, err := g.Authorize(c.Request.Context(), GetIdentity(c), c.Param(ParamID), access)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.Set(ConversationKey, conv)
		c.Next()
	}
}

// GetConversation returns the conversation stored by RequireConversation.
func GetConversation(c *gin.Context) *domain.Conversation {
	if v, ok := c.Get(ConversationKey); ok {
		if conv, ok := v.(*domain.Conversation); ok {
			return conv
		}
	}
	return nil
}
