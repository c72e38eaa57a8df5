// Package chatclient is a Go client for the jarvis-chat HTTP API together with
// a conversation controller that keeps an explicit client-side state.
package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/comigor/jarvis-chat/internal/domain"
)

const DefaultCookieName = "sb-access-token"

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jarvis-chat: %d %s: %s", e.Status, e.Code, e.Message)
}

// StreamError is an error event received on the chat stream.
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("jarvis-chat stream: %s: %s", e.Code, e.Message)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Messages       []domain.NewMessage `json:"messages,omitempty"`
}

// ChatResult is the done event of a chat stream.
type ChatResult struct {
	Content   string `json:"content"`
	Persisted bool   `json:"persisted"`
	MessageID string `json:"message_id,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithCookieName(name string) Option {
	return func(c *Client) { c.cookieName = name }
}

// Client calls the jarvis-chat API, sending the session credential as a cookie.
type Client struct {
	baseURL    string
	http       *http.Client
	cookieName string

	mu    sync.RWMutex
	token string
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 2 * time.Minute},
		cookieName: DefaultCookieName,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetToken replaces the session credential. An empty token signs out locally.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Me(ctx context.Context) (*domain.Identity, error) {
	var id domain.Identity
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var out []domain.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateConversation(ctx context.Context, seed []domain.NewMessage) (*domain.Conversation, error) {
	var body any
	if len(seed) > 0 {
		body = map[string]any{"messages": seed}
	}
	var conv domain.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/conversations/"+id, nil, nil)
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/"+conversationID+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error) {
	var m domain.Message
	body := domain.NewMessage{Role: role, Content: content}
	if err := c.doJSON(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Chat invokes the relay and calls onFragment for every fragment in arrival
// order. It returns the done event, a *StreamError for an error event, or an
// *APIError when the request was rejected before streaming.
func (c *Client) Chat(ctx context.Context, req ChatRequest, onFragment func(string)) (*ChatResult, error) {
	resp, err := c.send(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result *ChatResult
	err = readEvents(resp.Body, func(event, data string) (bool, error) {
		switch event {
		case "fragment":
			var frag string
			if err := json.Unmarshal([]byte(data), &frag); err != nil {
				return false, fmt.Errorf("decode fragment: %w", err)
			}
			if onFragment != nil {
				onFragment(frag)
			}
			return true, nil
		case "done":
			result = &ChatResult{}
			if err := json.Unmarshal([]byte(data), result); err != nil {
				return false, fmt.Errorf("decode done event: %w", err)
			}
			return false, nil
		case "error":
			se := &StreamError{}
			if err := json.Unmarshal([]byte(data), se); err != nil {
				return false, fmt.Errorf("decode error event: %w", err)
			}
			return false, se
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &StreamError{Code: "stream_truncated", Message: "stream ended without a terminal event"}
	}
	return result, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs the request and turns non-2xx responses into *APIError.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.token})
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}

// readEvents parses a text/event-stream body and calls fn per event until fn
// returns false, fn fails or the body ends.
func readEvents(r io.Reader, fn func(event, data string) (bool, error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var event string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if event == "" && len(data) == 0 {
				continue
			}
			more, err := fn(event, strings.Join(data, "\n"))
			if err != nil || !more {
				return err
			}
			event, data = "", nil
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
