package ingest

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/floorline/floorline/internal/chain"
	"github.com/floorline/floorline/internal/domain"
)

// SeaportConfig carries the chain-level constants the Seaport adapter signs
// and probes against.
type SeaportConfig struct {
	ChainID        int
	Exchange       string // verifying contract the maker signed against
	Conduit        string // operator that token/currency approvals are granted to
	NativeCurrency string // zero-address sentinel for the chain's native coin
}

// SeaportAdapter implements ProtocolAdapter for Seaport-style signed orders.
type SeaportAdapter struct {
	cfg       SeaportConfig
	state     domain.StateReader
	domainSep []byte
}

var _ ProtocolAdapter = (*SeaportAdapter)(nil)

func NewSeaportAdapter(cfg SeaportConfig, state domain.StateReader) *SeaportAdapter {
	return &SeaportAdapter{
		cfg:       cfg,
		state:     state,
		domainSep: chain.DomainSeparator("Seaport", "1.5", cfg.ChainID, cfg.Exchange),
	}
}

func (a *SeaportAdapter) Kind() domain.ProtocolKind { return domain.ProtocolSeaport }

// seaportPayload is the slice of the raw signed envelope the adapter needs
// beyond the normalized input fields. The full envelope is persisted verbatim
// either way.
type seaportPayload struct {
	// Criteria is the merkle root committed to by criteria-based (token-list)
	// orders.
	Criteria string `json:"criteria"`

	// Cancelled is set when the submitter already observed an on-chain
	// cancellation for this order's counter.
	Cancelled bool `json:"cancelled"`
}

func (a *SeaportAdapter) payload(raw domain.RawOrderInput) (seaportPayload, error) {
	var p seaportPayload
	if len(raw.RawData) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw.RawData, &p); err != nil {
		return p, fmt.Errorf("ingest: decode seaport payload: %w", err)
	}
	return p, nil
}

var seaportOrderTypeHash = ethcrypto.Keccak256([]byte(
	"OrderComponents(address maker,address taker,address token,uint256 identifier,uint256 price,uint256 quantity,uint8 side,address currency,address zone,uint256 startTime,uint256 endTime,bytes32 counter)",
))

// OrderHash returns the EIP-712 digest of the order as a 0x-prefixed hex
// string. The digest doubles as the canonical record id and as the payload
// the maker signed.
func (a *SeaportAdapter) OrderHash(raw domain.RawOrderInput) (string, error) {
	digest, err := a.digest(raw)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(digest), nil
}

func (a *SeaportAdapter) digest(raw domain.RawOrderInput) ([]byte, error) {
	if raw.Price == nil {
		return nil, fmt.Errorf("ingest: %w: missing price", domain.ErrInvalidOrder)
	}
	if !common.IsHexAddress(raw.Maker) {
		return nil, fmt.Errorf("ingest: %w: bad maker address %q", domain.ErrInvalidOrder, raw.Maker)
	}
	side := big.NewInt(0)
	if raw.Side == domain.OrderSideSell {
		side = big.NewInt(1)
	}
	tokenID := new(big.Int)
	if raw.TokenID != "" {
		if _, ok := tokenID.SetString(raw.TokenID, 10); !ok {
			return nil, fmt.Errorf("ingest: %w: bad token id %q", domain.ErrInvalidOrder, raw.TokenID)
		}
	}
	structHash := ethcrypto.Keccak256(
		seaportOrderTypeHash,
		addr32(raw.Maker),
		addr32(raw.Taker),
		addr32(raw.Contract),
		pad32(tokenID),
		pad32(raw.Price),
		pad32(big.NewInt(raw.Quantity)),
		pad32(side),
		addr32(raw.Currency),
		addr32(raw.Zone),
		pad32(big.NewInt(raw.ValidFrom.Unix())),
		pad32(big.NewInt(raw.ValidTo.Unix())),
		ethcrypto.Keccak256([]byte(raw.Nonce)),
	)
	return chain.EIP712Digest(a.domainSep, structHash), nil
}

func (a *SeaportAdapter) ParseScope(raw domain.RawOrderInput) (domain.OrderScope, error) {
	if !common.IsHexAddress(raw.Contract) {
		return domain.OrderScope{}, fmt.Errorf("ingest: %w: bad contract address %q", domain.ErrInvalidOrder, raw.Contract)
	}
	scope := domain.OrderScope{Kind: raw.Kind, Contract: canonAddr(raw.Contract)}
	switch raw.Kind {
	case domain.ScopeSingleToken:
		if raw.TokenID == "" {
			return domain.OrderScope{}, fmt.Errorf("ingest: %w: single-token order without token id", domain.ErrInvalidOrder)
		}
		scope.TokenID = raw.TokenID
	case domain.ScopeContractWide:
	case domain.ScopeTokenList:
		p, err := a.payload(raw)
		if err != nil {
			return domain.OrderScope{}, err
		}
		scope.TokenIDs = raw.TokenIDs
		scope.MerkleRoot = strings.ToLower(p.Criteria)
	default:
		return domain.OrderScope{}, fmt.Errorf("ingest: %w: unknown scope kind %q", domain.ErrInvalidOrder, raw.Kind)
	}
	return scope, nil
}

func (a *SeaportAdapter) CheckValidity(_ context.Context, raw domain.RawOrderInput) error {
	switch raw.Side {
	case domain.OrderSideBuy, domain.OrderSideSell:
	default:
		return fmt.Errorf("ingest: %w: unknown side %q", domain.ErrInvalidOrder, raw.Side)
	}
	if raw.Quantity < 1 {
		return fmt.Errorf("ingest: %w: quantity %d", domain.ErrInvalidOrder, raw.Quantity)
	}
	if raw.Taker != "" && !common.IsHexAddress(raw.Taker) {
		return fmt.Errorf("ingest: %w: bad taker address %q", domain.ErrInvalidOrder, raw.Taker)
	}
	if raw.Currency != "" && !common.IsHexAddress(raw.Currency) {
		return fmt.Errorf("ingest: %w: bad currency address %q", domain.ErrInvalidOrder, raw.Currency)
	}
	for _, f := range raw.Fees {
		if !common.IsHexAddress(f.Recipient) {
			return fmt.Errorf("ingest: %w: bad fee recipient %q", domain.ErrInvalidOrder, f.Recipient)
		}
		if f.Bps < 0 {
			return fmt.Errorf("ingest: %w: negative fee bps %d", domain.ErrInvalidOrder, f.Bps)
		}
	}
	if raw.Signature == "" {
		return fmt.Errorf("ingest: %w: missing signature", domain.ErrInvalidOrder)
	}
	return nil
}

func (a *SeaportAdapter) CheckSignature(_ context.Context, raw domain.RawOrderInput) error {
	digest, err := a.digest(raw)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(raw.Signature, "0x"))
	if err != nil {
		return fmt.Errorf("%w: malformed signature hex", ErrBadSignature)
	}
	signer, err := a.state.RecoverSigner(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if normAddr(signer) != normAddr(raw.Maker) {
		return fmt.Errorf("%w: recovered %s, maker %s", ErrBadSignature, signer, raw.Maker)
	}
	return nil
}

// CheckFillability probes the maker's side of the trade: asset balance and
// operator approval for sells, currency balance and allowance for buys. The
// probe reflects state at probe time only; a degraded outcome is stored, not
// rejected.
func (a *SeaportAdapter) CheckFillability(ctx context.Context, raw domain.RawOrderInput) (domain.ProbeResult, error) {
	p, err := a.payload(raw)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	if p.Cancelled {
		return domain.ProbeResult{}, fmt.Errorf("%w: cancelled", ErrNotFillable)
	}

	res := domain.ProbeResult{
		Fillability: domain.FillabilityFillable,
		Approval:    domain.ApprovalApproved,
	}

	if raw.Side == domain.OrderSideSell {
		// Criteria and contract-wide sells have no single token to probe;
		// balance is checked at fill time instead.
		if raw.TokenID != "" {
			bal, err := a.state.TokenBalance(ctx, raw.Contract, raw.TokenID, raw.Maker)
			if err != nil {
				return domain.ProbeResult{}, fmt.Errorf("ingest: probe token balance: %w", err)
			}
			if bal.Cmp(big.NewInt(raw.Quantity)) < 0 {
				res.Fillability = domain.FillabilityNoBalance
			}
		}
		approved, err := a.state.IsApproved(ctx, raw.Contract, raw.Maker, a.cfg.Conduit)
		if err != nil {
			return domain.ProbeResult{}, fmt.Errorf("ingest: probe approval: %w", err)
		}
		if !approved {
			res.Approval = domain.ApprovalNoApproval
		}
		return res, nil
	}

	total := new(big.Int).Mul(raw.Price, big.NewInt(raw.Quantity))
	bal, err := a.state.CurrencyBalance(ctx, raw.Currency, raw.Maker)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("ingest: probe currency balance: %w", err)
	}
	if bal.Cmp(total) < 0 {
		res.Fillability = domain.FillabilityNoBalance
	}
	// The native coin has no allowance concept.
	if normAddr(raw.Currency) != normAddr(a.cfg.NativeCurrency) {
		allowance, err := a.state.CurrencyAllowance(ctx, raw.Currency, raw.Maker, a.cfg.Conduit)
		if err != nil {
			return domain.ProbeResult{}, fmt.Errorf("ingest: probe allowance: %w", err)
		}
		if allowance.Cmp(total) < 0 {
			res.Approval = domain.ApprovalNoApproval
		}
	}
	return res, nil
}

func (a *SeaportAdapter) DeclaredFees(raw domain.RawOrderInput) ([]domain.DeclaredFee, error) {
	return raw.Fees, nil
}

// normAddr lowercases an address for comparisons and map keys; canonAddr is
// the 0x-prefixed form persisted on records.
func normAddr(a string) string {
	return strings.ToLower(strings.TrimPrefix(a, "0x"))
}

func canonAddr(a string) string {
	if a == "" {
		return ""
	}
	return "0x" + normAddr(a)
}

func pad32(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func addr32(a string) []byte {
	return common.LeftPadBytes(common.HexToAddress(a).Bytes(), 32)
}
