package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Client talks to one MCP server and caches its catalog.
type Client struct {
	config    ServerConfig
	transport Transport
	logger    *slog.Logger

	connectGroup singleflight.Group

	mu        sync.RWMutex
	connected bool
	tools     []Tool
	resources []Resource
	prompts   []Prompt
}

// NewClient creates a client for the configured server. Connect must be
// called before catalog or call methods.
func NewClient(config ServerConfig, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:    config,
		transport: NewHTTPTransport(config),
		logger:    logger.With("component", "mcp", "url", config.URL),
	}, nil
}

// Connect performs the MCP handshake and loads the catalog. Concurrent
// and repeated calls share a single handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	done := c.connected
	c.mu.RUnlock()
	if done {
		return nil
	}

	_, err, _ := c.connectGroup.Do("connect", func() (any, error) {
		return nil, c.connect(ctx)
	})
	return err
}

func (c *Client) connect(ctx context.Context) error {
	var init InitializeResult
	err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "showroom",
			"version": "1.0.0",
		},
	}, &init)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	if err := c.refreshCatalog(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("connected to mcp server",
		"server", init.ServerInfo.Name,
		"version", init.ServerInfo.Version,
		"tools", len(c.Tools()))
	return nil
}

func (c *Client) refreshCatalog(ctx context.Context) error {
	var tools ListToolsResult
	if err := c.transport.Call(ctx, "tools/list", map[string]any{}, &tools); err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}

	// Resource and prompt listings are optional capabilities; a server
	// without them still serves tools.
	var resources ListResourcesResult
	if err := c.transport.Call(ctx, "resources/list", map[string]any{}, &resources); err != nil {
		c.logger.Debug("resources/list unavailable", "error", err)
	}
	var prompts ListPromptsResult
	if err := c.transport.Call(ctx, "prompts/list", map[string]any{}, &prompts); err != nil {
		c.logger.Debug("prompts/list unavailable", "error", err)
	}

	c.mu.Lock()
	c.tools = tools.Tools
	c.resources = resources.Resources
	c.prompts = prompts.Prompts
	c.mu.Unlock()
	return nil
}

// Tools returns the cached tool catalog.
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Tool(nil), c.tools...)
}

// Resources returns the cached resource catalog.
func (c *Client) Resources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Resource(nil), c.resources...)
}

// Prompts returns the cached prompt catalog.
func (c *Client) Prompts() []Prompt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Prompt(nil), c.prompts...)
}

// CallTool invokes a remote tool.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	var result ToolCallResult
	err := c.transport.Call(ctx, "tools/call", CallToolParams{
		Name:      name,
		Arguments: arguments,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReadResource fetches a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	var result ReadResourceResult
	err := c.transport.Call(ctx, "resources/read", map[string]any{"uri": uri}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrompt fetches a prompt by name.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*GetPromptResult, error) {
	params := map[string]any{"name": name}
	if len(arguments) > 0 {
		params["arguments"] = arguments
	}
	var result GetPromptResult
	if err := c.transport.Call(ctx, "prompts/get", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close shuts the transport down.
func (c *Client) Close() error {
	return c.transport.Close()
}
