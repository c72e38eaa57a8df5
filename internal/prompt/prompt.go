// Package prompt assembles the system instruction sent ahead of every chat:
// the configured base prompt followed by the prompts published by the
// configured MCP servers.
package prompt

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/logger"
)

const discoverTimeout = 10 * time.Second

// MCPClient is the part of an MCP client used for prompt discovery.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	Close() error
}

// Dialer connects to one configured server.
type Dialer func(ctx context.Context, cfg config.MCPServerConfig) (MCPClient, error)

// Dial creates and starts an mcp-go client for cfg.
func Dial(ctx context.Context, cfg config.MCPServerConfig) (MCPClient, error) {
	var (
		c   *client.Client
		err error
	)
	switch cfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		c, err = client.NewSSEMCPClient(cfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		c, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	case config.ClientTypeStdio:
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		// stdio clients start their subprocess on creation
		return client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case "":
		return nil, fmt.Errorf("mcp server %q has no type (sse, streamable_http or stdio)", cfg.Name)
	default:
		return nil, fmt.Errorf("mcp server %q has unsupported type %q", cfg.Name, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to start transport: %w", err)
	}
	return c, nil
}

// Discover asks every server for its system prompt, concurrently. The result
// keeps configuration order and leaves out servers that failed or publish
// nothing. Failures are logged, never returned.
func Discover(ctx context.Context, servers []config.MCPServerConfig, dial Dialer) []string {
	found := make([]string, len(servers))

	var g errgroup.Group
	g.SetLimit(4)
	for i, srv := range servers {
		g.Go(func() error {
			found[i] = discoverOne(ctx, srv, dial)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(found))
	for _, p := range found {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func discoverOne(ctx context.Context, srv config.MCPServerConfig, dial Dialer) string {
	log := logger.Ctx(ctx).With().Str("mcp_server", srv.Name).Logger()

	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	c, err := dial(ctx, srv)
	if err != nil {
		log.Error().Err(err).Msg("failed to create MCP client")
		return ""
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("MCP client close error")
		}
	}()

	initResult, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "jarvis-chat", Version: "1.0.0"},
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize MCP client")
		return ""
	}
	if initResult == nil || initResult.Capabilities.Prompts == nil {
		log.Debug().Msg("server does not advertise prompts")
		return ""
	}

	prompts, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil || prompts == nil {
		log.Warn().Err(err).Msg("failed to list prompts")
		return ""
	}

	// only prompts without arguments can serve as a system instruction
	idx := slices.IndexFunc(prompts.Prompts, func(p mcp.Prompt) bool {
		return len(p.Arguments) == 0
	})
	if idx == -1 {
		return ""
	}

	res, err := c.GetPrompt(ctx, mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{Name: prompts.Prompts[idx].Name},
	})
	if err != nil || res == nil {
		log.Warn().Err(err).Msg("failed to get prompt")
		return ""
	}

	for _, m := range res.Messages {
		if m.Role != mcp.RoleAssistant {
			continue
		}
		if text, ok := m.Content.(mcp.TextContent); ok && text.Text != "" {
			log.Info().Str("prompt", prompts.Prompts[idx].Name).Msg("discovered system prompt")
			return text.Text
		}
	}
	return ""
}

// Build joins the base prompt and the discovered prompts with blank lines.
func Build(base string, discovered []string) string {
	parts := make([]string, 0, len(discovered)+1)
	if base != "" {
		parts = append(parts, base)
	}
	parts = append(parts, discovered...)
	return strings.Join(parts, "\n\n")
}
