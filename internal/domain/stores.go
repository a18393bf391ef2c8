package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderStore persists canonical orders.
type OrderStore interface {
	// InsertBatch inserts all orders in one statement with conflict-skip
	// semantics and returns the IDs of the rows that were newly inserted.
	InsertBatch(ctx context.Context, orders []Order) (inserted []string, err error)
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (Order, error)
	ListByMaker(ctx context.Context, maker string, opts ListOpts) ([]Order, error)
	ListByTokenSet(ctx context.Context, tokenSetID string, opts ListOpts) ([]Order, error)
}

// TokenSetStore persists content-addressed token sets. Inserts are
// idempotent: inserting an existing set is a no-op.
type TokenSetStore interface {
	// Insert stores the set and its members if absent. It reports whether
	// the set was newly created.
	Insert(ctx context.Context, set TokenSet) (created bool, err error)
	GetByID(ctx context.Context, id string) (TokenSet, error)
	ListTokens(ctx context.Context, id string) ([]string, error)
}

// SourceStore persists marketplace identities, append-only.
type SourceStore interface {
	// GetOrCreate returns the source for the given domain, inserting it
	// first if it does not exist.
	GetOrCreate(ctx context.Context, domain string) (Source, error)
	GetByDomain(ctx context.Context, domain string) (Source, error)
	GetByAddress(ctx context.Context, address string) (Source, error)
	List(ctx context.Context) ([]Source, error)
}

// CollectionStore reads the collection registry.
type CollectionStore interface {
	GetByContract(ctx context.Context, contract string) (Collection, error)
	Upsert(ctx context.Context, c Collection) error
}
