package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals malformed search parameters.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoQuery signals that no search request could be built.
	ErrNoQuery = errors.New("no query could be built")
	// ErrNoResults signals that the engine response could not be normalized.
	// It is distinct from a successful search with zero hits.
	ErrNoResults = errors.New("no results available")
	// ErrEngineUnavailable signals that the search engine could not be reached.
	ErrEngineUnavailable = errors.New("search engine unavailable")
	// ErrEngine signals that the search engine rejected the request.
	ErrEngine = errors.New("search engine error")
	// ErrExpansionProvider signals a failed query expansion lookup.
	ErrExpansionProvider = errors.New("expansion provider error")
	// ErrExpansionBudgetExceeded signals that the expansion token budget is spent.
	ErrExpansionBudgetExceeded = errors.New("expansion token budget exceeded")
)

// EngineError wraps ErrEngine with the engine's HTTP status and error type.
type EngineError struct {
	Status int
	Type   string
	Reason string
}

func (e *EngineError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: status %d", ErrEngine.Error(), e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s: %s", ErrEngine.Error(), e.Status, e.Type, e.Reason)
}

func (e *EngineError) Unwrap() error { return ErrEngine }

// NewEngineError creates an engine error.
func NewEngineError(status int, typ, reason string) error {
	return &EngineError{Status: status, Type: typ, Reason: reason}
}
