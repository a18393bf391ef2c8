package domain

import (
	"context"
	"math/big"
	"time"
)

// ClaimStore is a distributed set-if-absent claim with TTL. It guards
// one-time side effects performed by concurrently running pipelines. Claims
// expire so a crashed holder cannot permanently block later claimants.
type ClaimStore interface {
	// Claim attempts to take key for ttl. It reports whether the caller won
	// the claim. A lost claim is not an error.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// CollectionCache caches collection registry rows.
type CollectionCache interface {
	Get(ctx context.Context, contract string) (Collection, error)
	Set(ctx context.Context, c Collection) error
}

// PriceCache caches oracle conversion rates keyed by currency and day.
type PriceCache interface {
	Get(ctx context.Context, currency string, day time.Time) (*big.Int, error)
	Set(ctx context.Context, currency string, day time.Time, rate *big.Int) error
}

// Job is one unit of downstream work emitted by the pipeline.
type Job struct {
	Context string `json:"context"`
	ID      string `json:"id"`
	Trigger string `json:"trigger"`
}

// JobQueue enqueues downstream jobs, fire-and-forget. Queue durability is
// the queue's own concern.
type JobQueue interface {
	Enqueue(ctx context.Context, queue string, job Job) error
}

// AuditRelay writes newly-inserted orders to a durable audit log.
type AuditRelay interface {
	Relay(ctx context.Context, orders []Order) error
}

// PriceOracle converts a currency amount into its native-currency
// equivalent at a point in time. A missing price returns ErrNoPrice; any
// other error is an infrastructure fault.
type PriceOracle interface {
	ToNative(ctx context.Context, currency string, amount *big.Int, at time.Time) (*big.Int, error)
}
