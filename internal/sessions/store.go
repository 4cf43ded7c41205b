// Package sessions stores conversation history.
package sessions

import (
	"context"
	"errors"

	"github.com/haasonsaas/showroom/pkg/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store persists sessions and their message history.
type Store interface {
	// Create makes a new session. An empty id is replaced with a
	// generated one.
	Create(ctx context.Context, id string) (*models.Session, error)

	// Get returns a session by id.
	Get(ctx context.Context, id string) (*models.Session, error)

	// GetOrCreate returns the session with the given id, creating it
	// when absent. An empty id always creates a fresh session.
	GetOrCreate(ctx context.Context, id string) (*models.Session, error)

	// AppendMessages adds messages to a session's history, trimming
	// the oldest entries beyond the retention limit.
	AppendMessages(ctx context.Context, sessionID string, msgs ...*models.Message) error

	// History returns up to limit most recent messages in
	// chronological order. limit <= 0 returns everything retained.
	History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)

	// List returns all sessions.
	List(ctx context.Context) ([]*models.Session, error)

	// Delete removes a session and its history.
	Delete(ctx context.Context, id string) error
}
