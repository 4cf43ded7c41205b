package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/showroom/pkg/models"
)

// DefaultRetention is the per-session message retention limit.
const DefaultRetention = 24

// MemoryStore is an in-memory session store. Values are deep-cloned on
// the way in and out so callers cannot mutate shared state.
type MemoryStore struct {
	mu        sync.RWMutex
	retention int
	sessions  map[string]*models.Session
	messages  map[string][]*models.Message
}

// NewMemoryStore creates a store keeping at most retention messages per
// session. retention <= 0 uses DefaultRetention.
func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		retention: retention,
		sessions:  make(map[string]*models.Session),
		messages:  make(map[string][]*models.Message),
	}
}

// Create makes a new session.
func (s *MemoryStore) Create(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(id)
}

func (s *MemoryStore) createLocked(id string) (*models.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.sessions[id]; exists {
		return nil, fmt.Errorf("session %s already exists", id)
	}
	now := time.Now()
	session := &models.Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[id] = session
	s.messages[id] = nil
	return cloneSession(session), nil
}

// Get returns a session by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneSession(session), nil
}

// GetOrCreate returns the session with the given id, creating it when
// absent. Unknown ids are honored: the caller keeps its opaque id.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if session, ok := s.sessions[id]; ok {
			return cloneSession(session), nil
		}
	}
	return s.createLocked(id)
}

// AppendMessages adds messages to a session's history, oldest evicted
// past the retention limit.
func (s *MemoryStore) AppendMessages(ctx context.Context, sessionID string, msgs ...*models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	history := s.messages[sessionID]
	for _, msg := range msgs {
		m := cloneMessage(msg)
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.SessionID = sessionID
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		history = append(history, m)
	}
	if len(history) > s.retention {
		history = history[len(history)-s.retention:]
	}
	s.messages[sessionID] = history
	session.UpdatedAt = time.Now()
	return nil
}

// History returns up to limit most recent messages in chronological
// order.
func (s *MemoryStore) History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	history := s.messages[sessionID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]*models.Message, len(history))
	for i, m := range history {
		out[i] = cloneMessage(m)
	}
	return out, nil
}

// List returns all sessions, most recently updated first.
func (s *MemoryStore) List(ctx context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a session and its history.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

func cloneSession(s *models.Session) *models.Session {
	out := *s
	if s.Metadata != nil {
		out.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func cloneMessage(m *models.Message) *models.Message {
	out := *m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]models.ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i].Input = append([]byte(nil), tc.Input...)
		}
	}
	if m.ToolResults != nil {
		out.ToolResults = make([]models.ToolResult, len(m.ToolResults))
		copy(out.ToolResults, m.ToolResults)
	}
	return &out
}
