// Package ingest implements the order normalization-and-validation pipeline:
// it takes raw protocol-specific order envelopes, validates them against
// on-chain and off-chain rules, resolves token scopes, computes fee, royalty
// and currency-normalized pricing, and persists canonical orders exactly
// once with per-order failure isolation.
package ingest

import (
	"context"
	"errors"

	"github.com/floorline/floorline/internal/domain"
)

// Adapter-level sentinels. The validator maps these to terminal statuses;
// any other error from an adapter is an infrastructure fault and aborts the
// enclosing batch.
var (
	// ErrBadSignature reports that the recovered signer does not match the
	// maker.
	ErrBadSignature = errors.New("signature does not match maker")

	// ErrNotFillable reports a definitive on-chain probe outcome outside
	// the four balance/approval combinations (cancelled, filled, zeroed).
	ErrNotFillable = errors.New("order not fillable on chain")
)

// ProtocolAdapter is the small per-exchange surface the generic pipeline is
// parameterized over. Everything protocol-specific — payload layout, order
// hashing, signature scheme, fillability semantics — lives behind it;
// orchestration stays protocol-agnostic.
type ProtocolAdapter interface {
	Kind() domain.ProtocolKind

	// OrderHash computes the protocol-deterministic order hash that keys
	// the canonical record.
	OrderHash(raw domain.RawOrderInput) (string, error)

	// ParseScope decodes which token(s) the order applies to.
	ParseScope(raw domain.RawOrderInput) (domain.OrderScope, error)

	// CheckValidity applies the protocol's structural-validity predicate.
	// It returns domain.ErrInvalidOrder for a structurally invalid order.
	CheckValidity(ctx context.Context, raw domain.RawOrderInput) error

	// CheckSignature verifies the maker's signature over the order. It
	// returns ErrBadSignature on mismatch.
	CheckSignature(ctx context.Context, raw domain.RawOrderInput) error

	// CheckFillability probes the maker's current balance and approval
	// state. It returns ErrNotFillable for definitive non-probe-able
	// outcomes.
	CheckFillability(ctx context.Context, raw domain.RawOrderInput) (domain.ProbeResult, error)

	// DeclaredFees extracts the fees the order itself declares.
	DeclaredFees(raw domain.RawOrderInput) ([]domain.DeclaredFee, error)
}
