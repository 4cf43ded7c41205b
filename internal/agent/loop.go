package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/showroom/internal/observability"
	"github.com/haasonsaas/showroom/internal/ratelimit"
	"github.com/haasonsaas/showroom/internal/sessions"
	"github.com/haasonsaas/showroom/pkg/models"
)

// fallbackReply is used when the loop ends without usable model text.
const fallbackReply = "I couldn't generate a response."

// TerminalState describes how a message run ended.
type TerminalState string

const (
	// StateDone means the model produced a final reply.
	StateDone TerminalState = "done"
	// StateBudgetExceeded means the per-message model-call budget ran
	// out while the model still wanted tools.
	StateBudgetExceeded TerminalState = "budget_exceeded"
	// StateIterationLimit means the loop hit its iteration cap.
	StateIterationLimit TerminalState = "iteration_limit"
)

// LoopConfig bounds one orchestrated message.
type LoopConfig struct {
	// Model overrides the provider default model.
	Model string
	// System is the assistant instruction prompt.
	System string
	// MaxIterations caps loop passes per user message.
	MaxIterations int
	// MaxModelCalls is the per-message model request budget.
	MaxModelCalls int
	// MaxTokens bounds each model response.
	MaxTokens int
	// HistoryLimit caps how much stored history seeds the conversation.
	HistoryLimit int
	// Executor bounds parallel tool execution.
	Executor ExecutorConfig
}

// sanitizeLoopConfig fills unset fields with defaults.
func sanitizeLoopConfig(c LoopConfig) LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 8
	}
	if c.MaxModelCalls <= 0 {
		c.MaxModelCalls = 4
	}
	if c.MaxModelCalls > c.MaxIterations {
		c.MaxModelCalls = c.MaxIterations
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = sessions.DefaultRetention
	}
	return c
}

// Result is the outcome of one user message.
type Result struct {
	SessionID  string
	Text       string
	State      TerminalState
	ModelCalls int
	ToolCalls  int
}

// Responder answers a user message within a session. Implemented by the
// local tool loop and by the provider-delegated variant.
type Responder interface {
	Respond(ctx context.Context, sessionID, message string) (*Result, error)
}

// Orchestrator runs the tool loop: call the model, execute every tool
// it requests, feed the outcomes back, repeat until the model answers
// in plain text or a limit trips.
type Orchestrator struct {
	config   LoopConfig
	provider LLMProvider
	registry *ToolRegistry
	executor *Executor
	pacer    *ratelimit.Pacer
	store    sessions.Store
	metrics  *observability.Metrics
	logger   *slog.Logger
	locks    *sessionLocker
}

// NewOrchestrator wires the loop. pacer and metrics may be nil.
func NewOrchestrator(
	config LoopConfig,
	provider LLMProvider,
	registry *ToolRegistry,
	pacer *ratelimit.Pacer,
	store sessions.Store,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	config = sanitizeLoopConfig(config)
	return &Orchestrator{
		config:   config,
		provider: provider,
		registry: registry,
		executor: NewExecutor(config.Executor, registry, logger),
		pacer:    pacer,
		store:    store,
		metrics:  metrics,
		logger:   logger.With("component", "orchestrator"),
		locks:    newSessionLocker(),
	}
}

// Registry exposes the tool registry for wiring.
func (o *Orchestrator) Registry() *ToolRegistry { return o.registry }

// Respond runs the loop for one user message. The user and assistant
// turns are stored together after the loop resolves, so a transport
// failure leaves the session history untouched.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if o.provider == nil {
		return nil, ErrNoProvider
	}

	session, err := o.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	unlock := o.locks.lock(session.ID)
	defer unlock()

	history, err := o.store.History(ctx, session.ID, o.config.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	conversation := make([]CompletionMessage, 0, len(history)+1)
	for _, m := range history {
		conversation = append(conversation, CompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	conversation = append(conversation, CompletionMessage{Role: "user", Content: message})

	result, err := o.run(ctx, session.ID, conversation)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userMsg := &models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   message,
		CreatedAt: now,
	}
	assistantMsg := &models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   result.Text,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := o.store.AppendMessages(ctx, session.ID, userMsg, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}
	syncActiveSessions(ctx, o.store, o.metrics)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, conversation []CompletionMessage) (*Result, error) {
	result := &Result{SessionID: sessionID, State: StateIterationLimit}
	tools := o.registry.List()

	for iteration := 0; iteration < o.config.MaxIterations; iteration++ {
		if result.ModelCalls >= o.config.MaxModelCalls {
			result.State = StateBudgetExceeded
			result.Text = fmt.Sprintf(
				"I stopped early to avoid too many model requests for a single message (cap=%d). "+
					"Try a simpler prompt, or raise the max_model_calls limit.",
				o.config.MaxModelCalls)
			o.logger.Warn("model call budget exhausted",
				"session_id", sessionID, "cap", o.config.MaxModelCalls)
			return result, nil
		}

		if o.pacer != nil {
			if err := o.pacer.Acquire(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		result.ModelCalls++
		text, toolCalls, err := o.callModel(ctx, conversation, tools)
		if err != nil {
			return nil, err
		}

		if len(toolCalls) == 0 {
			result.State = StateDone
			result.Text = text
			if strings.TrimSpace(result.Text) == "" {
				result.Text = fallbackReply
			}
			return result, nil
		}

		o.logger.Debug("executing tool calls",
			"session_id", sessionID, "iteration", iteration, "count", len(toolCalls))
		conversation = append(conversation, CompletionMessage{
			Role:      "assistant",
			Content:   text,
			ToolCalls: toolCalls,
		})

		outcomes := o.executor.ExecuteAll(ctx, toolCalls)
		result.ToolCalls += len(toolCalls)
		if o.metrics != nil {
			for i, call := range toolCalls {
				o.metrics.ToolExecutions.WithLabelValues(call.Name, outcomeLabel(outcomes[i].IsError)).Inc()
			}
		}
		// One synthetic turn per outcome; the call id ties each back
		// to the request it answers.
		for _, outcome := range outcomes {
			conversation = append(conversation, CompletionMessage{
				Role:        "tool",
				ToolResults: []models.ToolResult{outcome},
			})
		}
	}

	result.Text = fallbackReply
	o.logger.Warn("iteration limit reached", "session_id", sessionID)
	return result, nil
}

// callModel performs one paced model request and collects the streamed
// reply. A stream error aborts the whole message.
func (o *Orchestrator) callModel(ctx context.Context, conversation []CompletionMessage, tools []Tool) (string, []models.ToolCall, error) {
	start := time.Now()
	chunks, err := o.provider.Complete(ctx, &CompletionRequest{
		Model:     o.config.Model,
		System:    o.config.System,
		Messages:  conversation,
		Tools:     tools,
		MaxTokens: o.config.MaxTokens,
	})
	if err != nil {
		o.recordModelCall(start, "error")
		return "", nil, fmt.Errorf("model request: %w", err)
	}

	var text strings.Builder
	var toolCalls []models.ToolCall
	for chunk := range chunks {
		switch {
		case chunk.Error != nil:
			o.recordModelCall(start, "error")
			return "", nil, fmt.Errorf("model stream: %w", chunk.Error)
		case chunk.ToolCall != nil:
			toolCalls = append(toolCalls, *chunk.ToolCall)
		case chunk.Text != "":
			text.WriteString(chunk.Text)
		}
	}
	o.recordModelCall(start, "ok")
	return text.String(), toolCalls, nil
}

func (o *Orchestrator) recordModelCall(start time.Time, status string) {
	if o.metrics == nil {
		return
	}
	o.metrics.ModelCalls.WithLabelValues(o.provider.Name(), status).Inc()
	o.metrics.ModelCallDuration.WithLabelValues(o.provider.Name()).Observe(time.Since(start).Seconds())
}

// syncActiveSessions refreshes the session gauge from the store.
func syncActiveSessions(ctx context.Context, store sessions.Store, metrics *observability.Metrics) {
	if metrics == nil {
		return
	}
	list, err := store.List(ctx)
	if err != nil {
		return
	}
	metrics.ActiveSessions.Set(float64(len(list)))
}

func outcomeLabel(isError bool) string {
	if isError {
		return "error"
	}
	return "ok"
}
