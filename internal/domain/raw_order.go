package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// ScopeKind describes which token(s) an order applies to.
type ScopeKind string

const (
	ScopeSingleToken  ScopeKind = "single-token"
	ScopeContractWide ScopeKind = "contract-wide"
	ScopeTokenList    ScopeKind = "token-list"
)

// DeclaredFee is a fee the maker declared on the order itself.
type DeclaredFee struct {
	Recipient string `json:"recipient"`
	Bps       int64  `json:"bps"`
}

// OrderScope is the resolved token scope of an order.
type OrderScope struct {
	Kind     ScopeKind
	Contract string
	TokenID  string   // single-token
	TokenIDs []string // token-list members

	// MerkleRoot is the pre-computed commitment carried by list orders.
	// Empty when the root must be derived from TokenIDs.
	MerkleRoot string
}

// RawOrderInput is one protocol's untouched order envelope as received from a
// maker submission or decoded from on-chain event data. It is immutable.
type RawOrderInput struct {
	Protocol ProtocolKind
	Side     OrderSide
	Kind     ScopeKind

	Contract string
	TokenID  string
	TokenIDs []string

	Maker    string
	Taker    string
	Currency string

	// Price is the per-item price in Currency units. Quantity is the number
	// of items the order covers.
	Price    *big.Int
	Quantity int64

	ValidFrom time.Time
	ValidTo   time.Time

	Fees  []DeclaredFee
	Zone  string
	Nonce string

	// Source is the marketplace domain the submitter claims the order came
	// from. Only honored for native submissions.
	Source string

	// IsNative is true for orders submitted off-chain by a maker or
	// marketplace; false for orders reconstructed purely from on-chain
	// events.
	IsNative bool

	// RawData is the protocol-specific signed payload, persisted verbatim.
	RawData   json.RawMessage
	Signature string
}
