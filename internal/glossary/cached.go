package glossary

import (
	"context"

	"github.com/deusflow/explainee/internal/logger"
	"github.com/deusflow/explainee/internal/metrics"
)

// DefinitionStore persists definitions between runs.
type DefinitionStore interface {
	GetDefinition(ctx context.Context, term string) (string, bool, error)
	PutDefinition(ctx context.Context, term, definition string) error
}

// CachedLookup consults a store before calling the wrapped Lookup and saves
// successful definitions. Store errors are logged and otherwise ignored.
type CachedLookup struct {
	next  Lookup
	store DefinitionStore
}

func NewCachedLookup(next Lookup, store DefinitionStore) *CachedLookup {
	return &CachedLookup{next: next, store: store}
}

func (c *CachedLookup) Define(ctx context.Context, term string) (string, error) {
	def, ok, err := c.store.GetDefinition(ctx, term)
	if err != nil {
		logger.Warn("Definition cache read failed", "term", term, "error", err)
	} else if ok {
		metrics.Global.IncrementDefinitionCacheHits()
		return def, nil
	}

	def, err = c.next.Define(ctx, term)
	if err != nil {
		return "", err
	}

	if err := c.store.PutDefinition(ctx, term, def); err != nil {
		logger.Warn("Definition cache write failed", "term", term, "error", err)
	}
	return def, nil
}
