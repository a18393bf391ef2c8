package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// OrderSide indicates whether the maker is buying or selling the token(s).
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// ProtocolKind identifies the exchange protocol an order originates from.
type ProtocolKind string

const (
	ProtocolSeaport ProtocolKind = "seaport"
)

// FillabilityStatus tracks whether the maker currently holds the traded
// asset or funds.
type FillabilityStatus string

const (
	FillabilityFillable  FillabilityStatus = "fillable"
	FillabilityNoBalance FillabilityStatus = "no-balance"
	FillabilityCancelled FillabilityStatus = "cancelled"
	FillabilityFilled    FillabilityStatus = "filled"
	FillabilityExpired   FillabilityStatus = "expired"
)

// ApprovalStatus tracks whether the maker has granted the exchange on-chain
// rights to move the asset or funds.
type ApprovalStatus string

const (
	ApprovalApproved   ApprovalStatus = "approved"
	ApprovalNoApproval ApprovalStatus = "no-approval"
	ApprovalDisabled   ApprovalStatus = "disabled"
)

// FeeKind classifies a declared fee by its recipient.
type FeeKind string

const (
	FeeKindMarketplace FeeKind = "marketplace"
	FeeKindRoyalty     FeeKind = "royalty"
)

// FeeBreakdown is one declared fee on an order.
type FeeBreakdown struct {
	Recipient string  `json:"recipient"`
	Bps       int64   `json:"bps"`
	Kind      FeeKind `json:"kind"`
}

// MissingRoyalty records the shortfall between an order's declared royalty
// and the collection's registered default royalty.
type MissingRoyalty struct {
	Recipient string   `json:"recipient"`
	Bps       int64    `json:"bps"`
	Amount    *big.Int `json:"amount"`
}

// Order is the canonical, protocol-agnostic order record. The ID is the
// protocol-deterministic order hash. An Order is a snapshot: once inserted
// it is only mutated by the downstream lifecycle manager, never by the
// ingestion pipeline.
type Order struct {
	ID          string
	Protocol    ProtocolKind
	Side        OrderSide
	Fillability FillabilityStatus
	Approval    ApprovalStatus
	TokenSetID  string
	Maker       string
	Taker       string // empty for open orders

	// Native-denominated, per-item amounts.
	Price           *big.Int
	Value           *big.Int // price minus buy-side fees (buy), price (sell)
	NormalizedValue *big.Int // value adjusted as if default royalty were paid

	// Payment-currency amounts as declared by the maker.
	Currency      string
	CurrencyPrice *big.Int
	CurrencyValue *big.Int

	FeeBps           int64
	FeeBreakdown     []FeeBreakdown
	MissingRoyalties []MissingRoyalty

	Nonce     string
	SourceID  *int64
	ValidFrom time.Time
	ValidTo   time.Time
	RawData   json.RawMessage
	CreatedAt time.Time
}

// Actionable reports whether the order can be routed for filling right now.
func (o Order) Actionable() bool {
	return o.Fillability == FillabilityFillable && o.Approval == ApprovalApproved
}
