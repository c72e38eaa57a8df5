package handler

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/guard"
	"github.com/comigor/jarvis-chat/internal/logger"
	"github.com/comigor/jarvis-chat/internal/middleware"
	"github.com/comigor/jarvis-chat/internal/relay"
	"github.com/comigor/jarvis-chat/internal/response"
)

const (
	EventFragment = "fragment"
	EventDone     = "done"
	EventError    = "error"
)

type chatRequest struct {
	ConversationID string              `json:"conversation_id"`
	Messages       []domain.NewMessage `json:"messages"`
}

// DoneEvent closes a successful stream.
type DoneEvent struct {
	Content   string `json:"content"`
	Persisted bool   `json:"persisted"`
	MessageID string `json:"message_id,omitempty"`
}

// ErrorEvent closes a failed stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// chat handles POST /chat. Failures before the provider accepts the request
// are plain JSON errors; after that the stream carries them as error events.
func (h *HTTPHandler) chat(c *gin.Context) {
	ctx := c.Request.Context()

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domain.Validation("invalid request body"))
		return
	}

	history := req.Messages
	if req.ConversationID != "" {
		if _, err := h.guard.Authorize(ctx, middleware.GetIdentity(c), req.ConversationID, guard.Write); err != nil {
			response.Error(c, err)
			return
		}
		if len(history) == 0 {
			stored, err := h.convs.Messages(ctx, req.ConversationID)
			if err != nil {
				response.Error(c, err)
				return
			}
			history = make([]domain.NewMessage, len(stored))
			for i, m := range stored {
				history[i] = domain.NewMessage{Role: m.Role, Content: m.Content}
			}
		}
	}

	stream, err := h.relay.Open(ctx, relay.Request{ConversationID: req.ConversationID, History: history})
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	for {
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			done := DoneEvent{Content: stream.Text()}
			if m := stream.Persisted(); m != nil {
				done.Persisted = true
				done.MessageID = m.ID
			}
			c.SSEvent(EventDone, done)
			c.Writer.Flush()
			return
		}
		if err != nil {
			body := response.Body(err)
			logger.Ctx(ctx).Warn().Err(err).Str("code", body.Code).Msg("chat stream failed")
			c.SSEvent(EventError, ErrorEvent{Code: body.Code, Message: body.Error})
			c.Writer.Flush()
			return
		}

		// JSON-encode so newlines inside a fragment survive SSE framing
		data, _ := json.Marshal(frag)
		c.SSEvent(EventFragment, string(data))
		c.Writer.Flush()
	}
}
