package domain

import "time"

// TokenSetKind mirrors ScopeKind for the persisted set entity.
type TokenSetKind string

const (
	TokenSetSingleToken  TokenSetKind = "single-token"
	TokenSetContractWide TokenSetKind = "contract-wide"
	TokenSetTokenList    TokenSetKind = "token-list"
)

// TokenSet is a content-addressed description of which NFT(s) an order
// applies to. IDs are deterministic:
//
//	token:<contract>:<tokenId>
//	contract:<contract>
//	list:<contract>:<merkleRoot>
//
// Sets are created once per distinct scope and never mutated.
type TokenSet struct {
	ID       string
	Kind     TokenSetKind
	Contract string
	TokenID  string   // single-token only
	TokenIDs []string // token-list members

	CreatedAt time.Time
}
