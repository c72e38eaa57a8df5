package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/middleware"
	"github.com/comigor/jarvis-chat/internal/response"
)

type createConversationRequest struct {
	Messages []domain.NewMessage `json:"messages"`
}

type appendMessageRequest struct {
	Role    domain.Role `json:"role" binding:"required"`
	Content string      `json:"content"`
}

// listConversations handles GET /conversations
func (h *HTTPHandler) listConversations(c *gin.Context) {
	convs, err := h.convs.List(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, convs)
}

// createConversation handles POST /conversations. The body is optional.
func (h *HTTPHandler) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, domain.Validation("invalid request body"))
		return
	}

	conv, err := h.convs.Create(c.Request.Context(), middleware.GetIdentity(c), req.Messages)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, conv)
}

// deleteConversation handles DELETE /conversations/:id
func (h *HTTPHandler) deleteConversation(c *gin.Context) {
	conv := middleware.GetConversation(c)
	if err := h.convs.Delete(c.Request.Context(), middleware.GetIdentity(c), conv.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// listMessages handles GET /conversations/:id/messages
func (h *HTTPHandler) listMessages(c *gin.Context) {
	msgs, err := h.convs.Messages(c.Request.Context(), middleware.GetConversation(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgs)
}

// appendMessage handles POST /conversations/:id/messages
func (h *HTTPHandler) appendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.Error(c, domain.Validation("role is required"))
			return
		}
		response.Error(c, domain.Validation("invalid request body"))
		return
	}

	msg, err := h.messages.AppendMessage(c.Request.Context(), middleware.GetConversation(c).ID, req.Role, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
