package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/showroom/internal/agent"
)

// Bridge tool names. These are declared locally and never advertised by
// the remote catalog; they let the model reach resources and prompts
// through ordinary function calling.
const (
	ReadResourceToolName = "mcp_read_resource"
	GetPromptToolName    = "mcp_get_prompt"
)

// ToolBridge exposes one remote MCP tool as an agent tool.
type ToolBridge struct {
	client *Client
	tool   Tool
}

// NewToolBridge wraps a catalog entry.
func NewToolBridge(client *Client, tool Tool) *ToolBridge {
	return &ToolBridge{client: client, tool: tool}
}

func (b *ToolBridge) Name() string { return b.tool.Name }

func (b *ToolBridge) Description() string {
	desc := strings.TrimSpace(b.tool.Description)
	if desc == "" {
		return fmt.Sprintf("MCP tool %s", b.tool.Name)
	}
	return desc
}

func (b *ToolBridge) Schema() json.RawMessage {
	if len(b.tool.InputSchema) == 0 {
		return json.RawMessage(`{"type":"object"}`)
	}
	return b.tool.InputSchema
}

// Execute invokes the remote tool and folds the reply into a single
// string: the first text segment when there is one, otherwise the whole
// exchange as JSON so nothing is silently dropped.
func (b *ToolBridge) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var arguments map[string]any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &arguments); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
	}

	result, err := b.client.CallTool(ctx, b.tool.Name, arguments)
	if err != nil {
		return nil, err
	}

	for _, item := range result.Content {
		if item.Type == "text" && item.Text != "" {
			return &agent.ToolResult{Content: item.Text, IsError: result.IsError}, nil
		}
	}

	payload, err := json.Marshal(map[string]any{
		"tool":      b.tool.Name,
		"arguments": arguments,
		"rawResult": result,
	})
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{Content: string(payload), IsError: result.IsError}, nil
}

// ResourceReadBridge exposes resources/read as the mcp_read_resource
// tool.
type ResourceReadBridge struct {
	client *Client
}

// NewResourceReadBridge creates the resource read bridge.
func NewResourceReadBridge(client *Client) *ResourceReadBridge {
	return &ResourceReadBridge{client: client}
}

func (b *ResourceReadBridge) Name() string { return ReadResourceToolName }

func (b *ResourceReadBridge) Description() string {
	return "Read an MCP resource by uri (e.g. dealer://info) and return its contents."
}

func (b *ResourceReadBridge) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"uri":{"type":"string","description":"Resource URI to read"}},"required":["uri"]}`)
}

// Execute reads the resource and joins its text and blob segments with a
// blank line. A reply without segments is returned whole as JSON.
func (b *ResourceReadBridge) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(input.URI) == "" {
		return nil, fmt.Errorf("uri is required")
	}

	result, err := b.client.ReadResource(ctx, input.URI)
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, item := range result.Contents {
		switch {
		case item.Text != "":
			parts = append(parts, item.Text)
		case item.Blob != "":
			parts = append(parts, item.Blob)
		}
	}
	if len(parts) == 0 {
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &agent.ToolResult{Content: string(payload)}, nil
	}
	return &agent.ToolResult{Content: strings.Join(parts, "\n\n")}, nil
}

// PromptGetBridge exposes prompts/get as the mcp_get_prompt tool.
type PromptGetBridge struct {
	client *Client
}

// NewPromptGetBridge creates the prompt get bridge.
func NewPromptGetBridge(client *Client) *PromptGetBridge {
	return &PromptGetBridge{client: client}
}

func (b *PromptGetBridge) Name() string { return GetPromptToolName }

func (b *PromptGetBridge) Description() string {
	return "Fetch an MCP prompt by name with optional string arguments."
}

func (b *PromptGetBridge) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"name":{"type":"string","description":"Prompt name"},"arguments":{"type":"object","description":"Prompt arguments as string values"}},"required":["name"]}`)
}

// Execute fetches the prompt and returns the structured reply as JSON.
// Argument values arrive as arbitrary JSON from the model and are
// coerced to strings, which is all the prompt protocol accepts.
func (b *PromptGetBridge) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}

	arguments := make(map[string]string, len(input.Arguments))
	for k, v := range input.Arguments {
		if s, ok := v.(string); ok {
			arguments[k] = s
		} else {
			arguments[k] = fmt.Sprint(v)
		}
	}

	result, err := b.client.GetPrompt(ctx, input.Name, arguments)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// RegisterAll registers the remote catalog plus both bridge tools with
// the registry. The bridges are registered first so a remote tool using
// a bridge name cannot shadow them.
func RegisterAll(registry *agent.ToolRegistry, client *Client) []string {
	names := []string{ReadResourceToolName, GetPromptToolName}
	registry.Register(NewResourceReadBridge(client))
	registry.Register(NewPromptGetBridge(client))
	for _, tool := range client.Tools() {
		if tool.Name == ReadResourceToolName || tool.Name == GetPromptToolName {
			continue
		}
		registry.Register(NewToolBridge(client, tool))
		names = append(names, tool.Name)
	}
	return names
}
