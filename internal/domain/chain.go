package domain

import (
	"context"
	"math/big"
)

// ProbeResult is the non-terminal outcome of an on-chain fillability probe:
// the maker's balance and approval state at probe time. Any probe outcome
// outside these four combinations is terminal.
type ProbeResult struct {
	Fillability FillabilityStatus // fillable or no-balance
	Approval    ApprovalStatus    // approved or no-approval
}

// StateReader exposes the blockchain state primitives the protocol adapters
// consume. Implemented over an RPC node; reimplementing chain access is out
// of scope for the pipeline itself.
type StateReader interface {
	// TokenBalance returns how many units of tokenID at contract the owner
	// holds.
	TokenBalance(ctx context.Context, contract, tokenID, owner string) (*big.Int, error)

	// CurrencyBalance returns the owner's balance of an ERC-20 currency.
	CurrencyBalance(ctx context.Context, currency, owner string) (*big.Int, error)

	// IsApproved reports whether owner has approved operator to move tokens
	// of contract.
	IsApproved(ctx context.Context, contract, owner, operator string) (bool, error)

	// CurrencyAllowance returns the ERC-20 allowance owner granted to
	// operator.
	CurrencyAllowance(ctx context.Context, currency, owner, operator string) (*big.Int, error)

	// RecoverSigner recovers the address that produced signature over the
	// 32-byte digest.
	RecoverSigner(digest []byte, signature []byte) (string, error)
}
