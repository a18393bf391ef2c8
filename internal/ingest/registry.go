package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/floorline/floorline/internal/domain"
)

// CollectionRegistry is a read-through cache over the collection store. The
// cache is advisory: cache faults degrade to store reads, never to pipeline
// failures.
type CollectionRegistry struct {
	store  domain.CollectionStore
	cache  domain.CollectionCache
	logger *slog.Logger
}

func NewCollectionRegistry(store domain.CollectionStore, cache domain.CollectionCache, logger *slog.Logger) *CollectionRegistry {
	return &CollectionRegistry{
		store:  store,
		cache:  cache,
		logger: logger.With("component", "collection_registry"),
	}
}

// Get returns the registry row for contract, cache-first. It returns
// domain.ErrNotFound for unregistered collections.
func (r *CollectionRegistry) Get(ctx context.Context, contract string) (domain.Collection, error) {
	if r.cache != nil {
		c, err := r.cache.Get(ctx, contract)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("collection cache read failed", "contract", contract, "error", err)
		}
	}

	c, err := r.store.GetByContract(ctx, contract)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Collection{}, err
		}
		return domain.Collection{}, fmt.Errorf("ingest: load collection: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, c); err != nil {
			r.logger.Warn("collection cache write failed", "contract", contract, "error", err)
		}
	}
	return c, nil
}
