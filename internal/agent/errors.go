package agent

import "errors"

var (
	// ErrNoProvider is returned when no LLM provider is configured.
	ErrNoProvider = errors.New("no LLM provider configured")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrToolNotFound is returned by the registry for unknown tool
	// names; the executor folds it into an error outcome.
	ErrToolNotFound = errors.New("tool not found")
)
