package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/comigor/jarvis-chat/internal/config"
)

// This mirrors MCPClient in prompt.go
type mockMCPClient struct {
	InitializeFunc  func(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListPromptsFunc func(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPromptFunc   func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	closed          atomic.Bool
}

func (m *mockMCPClient) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, req)
	}
	var res mcp.InitializeResult
	if err := json.Unmarshal([]byte(`{"capabilities":{"prompts":{}}}`), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *mockMCPClient) ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
	if m.ListPromptsFunc != nil {
		return m.ListPromptsFunc(ctx, req)
	}
	return &mcp.ListPromptsResult{Prompts: []mcp.Prompt{
		{Name: "templated", Arguments: []mcp.PromptArgument{{Name: "topic"}}},
		{Name: "system"},
	}}, nil
}

func (m *mockMCPClient) GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if m.GetPromptFunc != nil {
		return m.GetPromptFunc(ctx, req)
	}
	return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{
		{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "ignored"}},
		{Role: mcp.RoleAssistant, Content: mcp.TextContent{Type: "text", Text: "prompt from " + req.Params.Name}},
	}}, nil
}

func (m *mockMCPClient) Close() error {
	m.closed.Store(true)
	return nil
}

func dialerFor(clients map[string]*mockMCPClient) Dialer {
	return func(_ context.Context, cfg config.MCPServerConfig) (MCPClient, error) {
		c, ok := clients[cfg.Name]
		if !ok {
			return nil, errors.New("unreachable")
		}
		return c, nil
	}
}

func TestDiscover_FirstArgumentlessPrompt(t *testing.T) {
	c := &mockMCPClient{}
	got := Discover(context.Background(), []config.MCPServerConfig{{Name: "home"}}, dialerFor(map[string]*mockMCPClient{"home": c}))
	require.Equal(t, []string{"prompt from system"}, got)
	require.True(t, c.closed.Load())
}

func TestDiscover_KeepsOrderAndSkipsFailures(t *testing.T) {
	named := func(text string) *mockMCPClient {
		return &mockMCPClient{GetPromptFunc: func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{
				{Role: mcp.RoleAssistant, Content: mcp.TextContent{Type: "text", Text: text}},
			}}, nil
		}}
	}
	clients := map[string]*mockMCPClient{
		"a": named("first"),
		"b": {InitializeFunc: func(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
			return nil, errors.New("handshake failed")
		}},
		"c": named("third"),
		"d": {InitializeFunc: func(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
			return &mcp.InitializeResult{}, nil // no prompts capability
		}},
		"e": {ListPromptsFunc: func(context.Context, mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
			return &mcp.ListPromptsResult{Prompts: []mcp.Prompt{{Name: "x", Arguments: []mcp.PromptArgument{{Name: "y"}}}}}, nil
		}},
	}
	servers := []config.MCPServerConfig{{Name: "a"}, {Name: "b"}, {Name: "missing"}, {Name: "c"}, {Name: "d"}, {Name: "e"}}

	got := Discover(context.Background(), servers, dialerFor(clients))
	require.Equal(t, []string{"first", "third"}, got)
}

func TestDiscover_NoServers(t *testing.T) {
	require.Empty(t, Discover(context.Background(), nil, dialerFor(nil)))
}

func TestDial_RejectsUnknownType(t *testing.T) {
	_, err := Dial(context.Background(), config.MCPServerConfig{Name: "x"})
	require.Error(t, err)
	_, err = Dial(context.Background(), config.MCPServerConfig{Name: "x", Type: "carrier-pigeon"})
	require.Error(t, err)
}

func TestBuild(t *testing.T) {
	require.Equal(t, "base", Build("base", nil))
	require.Equal(t, "base\n\none\n\ntwo", Build("base", []string{"one", "two"}))
	require.Equal(t, "one", Build("", []string{"one"}))
}
