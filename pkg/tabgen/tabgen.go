// Package tabgen turns a free-text request into a validated TabGroup,
// falling back to a fixed search group whenever any stage fails.
package tabgen

import (
	"context"

	"tidytabs/internal/models"
)

// Completer sends a prompt to a generative model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Searcher runs one web search query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Candidate is a decoded JSON object that may or may not be a TabGroup.
type Candidate map[string]any

// Result is the outcome of a generation request. Group is always usable;
// when Fallback is set, Reason says which stage gave up.
type Result struct {
	Group    models.TabGroup
	Fallback bool
	Reason   error
}
