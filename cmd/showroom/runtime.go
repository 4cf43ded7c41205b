package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/showroom/internal/agent"
	"github.com/haasonsaas/showroom/internal/agent/providers"
	"github.com/haasonsaas/showroom/internal/config"
	"github.com/haasonsaas/showroom/internal/mcp"
	"github.com/haasonsaas/showroom/internal/observability"
	"github.com/haasonsaas/showroom/internal/ratelimit"
	"github.com/haasonsaas/showroom/internal/sessions"
)

// dealerServerName labels the dealership MCP endpoint when the provider
// connects to it directly.
const dealerServerName = "dealer-mcp"

const assistantInstructions = `You are a helpful car dealership assistant.

Rules:
- Use MCP tools for facts and operations; do not guess inventory, prices, or order status.
- If asked about dealership info (address, hours, phone, contact), call mcp_read_resource with uri "dealer://info".

- If drafting a quotation email, call mcp_get_prompt with name "sales-quotation" and follow the template.
`

// delegatedInstructions omits the bridge tool guidance; when the
// provider holds the MCP connection itself, resources and prompts are
// not reachable as tools.
const delegatedInstructions = `You are a helpful car dealership assistant.

Rules:
- Use MCP tools for facts and operations; do not guess inventory, prices, or order status.
`

// runtime holds everything a chat surface needs to answer messages.
type runtime struct {
	responder agent.Responder
	mcpClient *mcp.Client
	metrics   *observability.Metrics
}

func (rt *runtime) close() {
	if rt.mcpClient != nil {
		rt.mcpClient.Close()
	}
}

// newRuntime wires the responder for the chosen variant. The delegated
// variant hands the MCP URL to the provider and skips the local tool
// loop entirely, so no client connection, bridges, or pacing are set up.
func newRuntime(ctx context.Context, cfg *config.Config, delegated bool, metrics *observability.Metrics, logger *slog.Logger) (*runtime, error) {
	providerName := strings.ToLower(cfg.LLM.DefaultProvider)
	providerCfg, ok := cfg.LLM.Providers[providerName]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", providerName)
	}
	if strings.TrimSpace(providerCfg.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", providerName)
	}

	store := sessions.NewMemoryStore(cfg.Limits.HistoryLimit)
	loopCfg := agent.LoopConfig{
		Model:         providerCfg.DefaultModel,
		System:        assistantInstructions,
		MaxIterations: cfg.Limits.MaxIterations,
		MaxModelCalls: cfg.Limits.MaxModelCalls,
		MaxTokens:     cfg.Limits.MaxTokens,
		HistoryLimit:  cfg.Limits.HistoryLimit,
	}

	if delegated {
		if providerName != "anthropic" {
			return nil, fmt.Errorf("delegated mode requires the anthropic provider, got %q", providerName)
		}
		delegate := providers.NewAnthropicProvider(providerCfg.APIKey, providerCfg.DefaultModel, providerCfg.BaseURL)
		loopCfg.System = delegatedInstructions
		responder := agent.NewDelegatedOrchestrator(delegate, cfg.MCP.URL, dealerServerName, loopCfg, store, metrics, logger)
		return &runtime{responder: responder, metrics: metrics}, nil
	}

	var provider agent.LLMProvider
	switch providerName {
	case "openai":
		provider = providers.NewOpenAIProvider(providerCfg.APIKey, providerCfg.DefaultModel)
	case "anthropic":
		provider = providers.NewAnthropicProvider(providerCfg.APIKey, providerCfg.DefaultModel, providerCfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", providerName)
	}

	client, err := mcp.NewClient(mcp.ServerConfig{URL: cfg.MCP.URL, Timeout: cfg.MCP.Timeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("mcp client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to MCP server at %s: %w", cfg.MCP.URL, err)
	}

	registry := agent.NewToolRegistry()
	names := mcp.RegisterAll(registry, client)
	logger.Info("tools registered", "count", len(names), "tools", names)

	pacer := ratelimit.NewPacer(ratelimit.Config{
		MinGap:            cfg.Limits.MinRequestGap,
		RequestsPerMinute: cfg.Limits.RequestsPerMinute,
	})

	responder := agent.NewOrchestrator(loopCfg, provider, registry, pacer, store, metrics, logger)
	return &runtime{responder: responder, mcpClient: client, metrics: metrics}, nil
}
