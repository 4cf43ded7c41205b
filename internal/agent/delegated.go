package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/showroom/internal/observability"
	"github.com/haasonsaas/showroom/internal/sessions"
	"github.com/haasonsaas/showroom/pkg/models"
)

// MCPDelegate is a provider that can run the tool loop itself against a
// remote MCP endpoint, returning only the final text.
type MCPDelegate interface {
	CompleteWithMCP(ctx context.Context, mcpURL, serverName string, req *CompletionRequest) (string, error)
}

// DelegatedOrchestrator answers messages with a single provider call:
// the provider connects to the MCP endpoint and executes whatever tools
// the model asks for on its side. No bridge tools and no local pacing
// are involved; the provider applies its own limits.
type DelegatedOrchestrator struct {
	delegate   MCPDelegate
	mcpURL     string
	serverName string
	config     LoopConfig
	store      sessions.Store
	metrics    *observability.Metrics
	logger     *slog.Logger
	locks      *sessionLocker
}

// NewDelegatedOrchestrator wires the server-delegated variant. metrics
// may be nil.
func NewDelegatedOrchestrator(
	delegate MCPDelegate,
	mcpURL, serverName string,
	config LoopConfig,
	store sessions.Store,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *DelegatedOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DelegatedOrchestrator{
		delegate:   delegate,
		mcpURL:     mcpURL,
		serverName: serverName,
		config:     sanitizeLoopConfig(config),
		store:      store,
		metrics:    metrics,
		logger:     logger.With("component", "delegated"),
		locks:      newSessionLocker(),
	}
}

// Respond performs the single delegated model call for one message.
func (d *DelegatedOrchestrator) Respond(ctx context.Context, sessionID, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if d.delegate == nil {
		return nil, ErrNoProvider
	}

	session, err := d.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	unlock := d.locks.lock(session.ID)
	defer unlock()

	history, err := d.store.History(ctx, session.ID, d.config.HistoryLimit)
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

	text, err := d.delegate.CompleteWithMCP(ctx, d.mcpURL, d.serverName, &CompletionRequest{
		Model:     d.config.Model,
		System:    d.config.System,
		Messages:  conversation,
		MaxTokens: d.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		text = fallbackReply
	}

	now := time.Now()
	err = d.store.AppendMessages(ctx, session.ID,
		&models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: message, CreatedAt: now},
		&models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: text, CreatedAt: now.Add(time.Millisecond)},
	)
	if err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}
	syncActiveSessions(ctx, d.store, d.metrics)

	return &Result{
		SessionID:  session.ID,
		Text:       text,
		State:      StateDone,
		ModelCalls: 1,
	}, nil
}
