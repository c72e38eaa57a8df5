package chatclient

import (
	"context"
	"errors"

	"github.com/comigor/jarvis-chat/internal/domain"
)

var ErrSignedOut = errors.New("not signed in")

// Controller drives a conversation through the API and mirrors every step in
// the Store. It never talks to storage directly.
type Controller struct {
	client *Client
	store  *Store
}

func NewController(client *Client, store *Store) *Controller {
	return &Controller{client: client, store: store}
}

func (c *Controller) Store() *Store {
	return c.store
}

// SignIn adopts token, resolves the identity and loads the conversation list.
func (c *Controller) SignIn(ctx context.Context, token string) error {
	c.client.SetToken(token)
	id, err := c.client.Me(ctx)
	if err != nil {
		c.client.SetToken("")
		c.store.OnAuthChange(nil)
		return err
	}
	c.store.OnAuthChange(id)
	return c.Refresh(ctx)
}

// SignOut revokes the session server-side and clears local state.
func (c *Controller) SignOut(ctx context.Context) error {
	err := c.client.Logout(ctx)
	c.client.SetToken("")
	c.store.OnAuthChange(nil)
	return err
}

func (c *Controller) Refresh(ctx context.Context) error {
	convs, err := c.client.ListConversations(ctx)
	if err != nil {
		return err
	}
	c.store.OnConversationsLoaded(convs)
	return nil
}

func (c *Controller) NewConversation(ctx context.Context) (*domain.Conversation, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	conv, err := c.client.CreateConversation(ctx, nil)
	if err != nil {
		return nil, err
	}
	c.store.OnConversationCreated(*conv)
	return conv, nil
}

func (c *Controller) Select(ctx context.Context, id string) error {
	msgs, err := c.client.Messages(ctx, id)
	if err != nil {
		return err
	}
	c.store.OnConversationSelected(id, msgs)
	return nil
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.client.DeleteConversation(ctx, id); err != nil {
		return err
	}
	c.store.OnConversationDeleted(id)
	return nil
}

// Send submits a user turn and streams the reply. It creates a conversation
// when none is active. On a relay failure the user's turn stays in the
// transcript and a notice is set; the error is returned as well.
func (c *Controller) Send(ctx context.Context, content string, onFragment func(string)) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	if c.store.Snapshot().ActiveID == "" {
		if _, err := c.NewConversation(ctx); err != nil {
			return err
		}
	}

	c.store.OnUserMessage(content)
	snap := c.store.Snapshot()

	if _, err := c.client.AppendMessage(ctx, snap.ActiveID, domain.RoleUser, content); err != nil {
		c.store.OnStreamFailed("could not save your message")
		return err
	}

	history := make([]domain.NewMessage, len(snap.Transcript))
	for i, m := range snap.Transcript {
		history[i] = domain.NewMessage{Role: m.Role, Content: m.Content}
	}

	result, err := c.client.Chat(ctx, ChatRequest{ConversationID: snap.ActiveID, Messages: history}, func(frag string) {
		c.store.OnMessageStreamFragment(frag)
		if onFragment != nil {
			onFragment(frag)
		}
	})
	if err != nil {
		c.store.OnStreamFailed(noticeFor(err))
		return err
	}
	c.store.OnStreamCompleted(*result)
	return nil
}

func (c *Controller) requireAuth() error {
	if c.store.Snapshot().Identity == nil {
		return ErrSignedOut
	}
	return nil
}

func noticeFor(err error) string {
	var se *StreamError
	var ae *APIError
	switch {
	case errors.As(err, &se) && se.Code == "missing_api_key", errors.As(err, &ae) && ae.Code == "missing_api_key":
		return "the assistant is not configured"
	case errors.As(err, &ae) && ae.Status == 401:
		return "your session has expired"
	default:
		return "the assistant failed to reply, try again"
	}
}
