// Package handler exposes the chat backend over HTTP.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/comigor/jarvis-chat/internal/guard"
	"github.com/comigor/jarvis-chat/internal/middleware"
	"github.com/comigor/jarvis-chat/internal/relay"
	"github.com/comigor/jarvis-chat/internal/response"
	"github.com/comigor/jarvis-chat/internal/service"
)

// Sessions resolves and revokes session credentials.
type Sessions interface {
	middleware.Resolver
	Revoke(ctx context.Context, token string) error
}

// Deps are the collaborators of the HTTP handler.
type Deps struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Relay         *relay.Relay
	Guard         *guard.Guard
	Sessions      Sessions
	CookieName    string
}

// HTTPHandler serves the chat API.
type HTTPHandler struct {
	convs      *service.ConversationService
	messages   *service.MessageService
	relay      *relay.Relay
	guard      *guard.Guard
	sessions   Sessions
	cookieName string
}

func New(d Deps) *HTTPHandler {
	return &HTTPHandler{
		convs:      d.Conversations,
		messages:   d.Messages,
		relay:      d.Relay,
		guard:      d.Guard,
		sessions:   d.Sessions,
		cookieName: d.CookieName,
	}
}

// RegisterRoutes mounts every route on r. All conversation-scoped routes go
// through RequireConversation; there is no ungated variant.
func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.health)

	authed := r.Group("/", middleware.RequireAuth(h.sessions, h.cookieName))
	{
		authed.POST("/chat", h.chat)

		authed.GET("/auth/me", h.me)
		authed.POST("/auth/logout", h.logout)

		authed.GET("/conversations", h.listConversations)
		authed.POST("/conversations", h.createConversation)

		conv := authed.Group("/conversations/:" + middleware.ParamID)
		conv.DELETE("", middleware.RequireConversation(h.guard, guard.Write), h.deleteConversation)
		conv.GET("/messages", middleware.RequireConversation(h.guard, guard.Read), h.listMessages)
		conv.POST("/messages", middleware.RequireConversation(h.guard, guard.Write), h.appendMessage)
	}
}

func (h *HTTPHandler) health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) me(c *gin.Context) {
	response.Success(c, middleware.GetIdentity(c))
}

func (h *HTTPHandler) logout(c *gin.Context) {
	if err := h.sessions.Revoke(c.Request.Context(), middleware.GetToken(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	response.Success(c, gin.H{"success": true})
}
