package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/showroom/pkg/models"
)

// ExecutorConfig bounds parallel tool execution.
type ExecutorConfig struct {
	// MaxConcurrency caps simultaneously running tools.
	MaxConcurrency int
	// DefaultTimeout bounds a single tool execution.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns sensible executor defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrency: 5,
		DefaultTimeout: 30 * time.Second,
	}
}

// Executor runs tool calls requested by the model. Execution never
// fails as a whole: every call produces exactly one outcome, with
// failures folded into error-flagged results.
type Executor struct {
	config   ExecutorConfig
	registry *ToolRegistry
	logger   *slog.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(config ExecutorConfig, registry *ToolRegistry, logger *slog.Logger) *Executor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		config:   config,
		registry: registry,
		logger:   logger.With("component", "executor"),
	}
}

// ExecuteAll runs every call concurrently and returns outcomes in input
// order. All calls complete before it returns.
func (e *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))

	g := &errgroup.Group{}
	g.SetLimit(e.config.MaxConcurrency)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.execute(ctx, call)
			return nil
		})
	}
	g.Wait()

	return results
}

// execute runs one call with a timeout and panic containment.
func (e *Executor) execute(ctx context.Context, call models.ToolCall) (result models.ToolResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			result = errorResult(call, fmt.Sprintf("tool panicked: %v", r))
		}
		e.logger.Debug("tool executed",
			"tool", call.Name,
			"call_id", call.ID,
			"is_error", result.IsError,
			"duration", time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, e.config.DefaultTimeout)
	defer cancel()

	params := normalizeParams(call.Input)
	res, err := e.registry.Execute(ctx, call.Name, params)
	if err != nil {
		return errorResult(call, err.Error())
	}
	return models.ToolResult{
		ToolCallID: call.ID,
		Content:    res.Content,
		IsError:    res.IsError,
	}
}

// normalizeParams unwraps arguments a model delivered as a JSON string
// rather than an object. Strings that fail to parse pass through
// untouched; the tool's own validation reports them.
func normalizeParams(input json.RawMessage) json.RawMessage {
	if len(input) == 0 {
		return json.RawMessage(`{}`)
	}
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return input
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return input
	}
	return json.RawMessage(s)
}

// errorResult folds a failed call into a model-readable outcome. The
// TOOL_ERROR prefix keeps failures distinguishable from ordinary output.
func errorResult(call models.ToolCall, message string) models.ToolResult {
	payload, err := json.Marshal(map[string]any{
		"tool":      call.Name,
		"arguments": json.RawMessage(normalizeParams(call.Input)),
		"error":     message,
	})
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"tool":%q,"error":%q}`, call.Name, message))
	}
	return models.ToolResult{
		ToolCallID: call.ID,
		Content:    "TOOL_ERROR: " + string(payload),
		IsError:    true,
	}
}
