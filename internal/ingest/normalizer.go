package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/floorline/floorline/internal/domain"
)

// NormalizerConfig tunes order-level pricing policy.
type NormalizerConfig struct {
	// LowBidFloorBps is the fraction of the collection floor a bid must
	// reach when low-bid rejection is requested. 9000 means 90%.
	LowBidFloorBps int64
}

// Normalizer takes one validated raw order through the full per-order path:
// admission, token set resolution, fee classification, native-price
// conversion, royalty normalization and source attribution. It produces
// either a canonical Order ready for batch insert or a terminal status, and
// reserves errors for infrastructure faults.
type Normalizer struct {
	cfg        NormalizerConfig
	validator  *Validator
	tokenSets  *TokenSetResolver
	royalties  *RoyaltyEngine
	converter  *PriceConverter
	attributor *SourceAttributor
	registry   *CollectionRegistry
	logger     *slog.Logger
}

func NewNormalizer(
	cfg NormalizerConfig,
	validator *Validator,
	tokenSets *TokenSetResolver,
	royalties *RoyaltyEngine,
	converter *PriceConverter,
	attributor *SourceAttributor,
	registry *CollectionRegistry,
	logger *slog.Logger,
) *Normalizer {
	return &Normalizer{
		cfg:        cfg,
		validator:  validator,
		tokenSets:  tokenSets,
		royalties:  royalties,
		converter:  converter,
		attributor: attributor,
		registry:   registry,
		logger:     logger.With("component", "normalizer"),
	}
}

// Normalize classifies one raw order. The returned order is non-nil only for
// a success result.
func (n *Normalizer) Normalize(ctx context.Context, adapter ProtocolAdapter, raw domain.RawOrderInput, opts SubmitOptions) (domain.PipelineResult, *domain.Order, error) {
	adm, status, err := n.validator.Validate(ctx, adapter, raw)
	if err != nil {
		return domain.PipelineResult{}, nil, err
	}
	if status != "" {
		return domain.PipelineResult{ID: adm.id, Status: status}, nil, nil
	}

	tokenSetID, status, err := n.tokenSets.Resolve(ctx, adm.scope)
	if err != nil {
		return domain.PipelineResult{}, nil, err
	}
	if status != "" {
		return domain.PipelineResult{ID: adm.id, Status: status}, nil, nil
	}

	fees, err := adapter.DeclaredFees(raw)
	if err != nil {
		return domain.PipelineResult{ID: adm.id, Status: domain.StatusInvalidFormat}, nil, nil
	}
	breakdown, totalBps, royaltyBps := n.royalties.Classify(fees)
	if totalBps > 10000 {
		return domain.PipelineResult{ID: adm.id, Status: domain.StatusFeesTooHigh}, nil, nil
	}

	// Per-item amounts in the payment currency. A buy's value is what the
	// seller keeps after the buyer-side fees come out; a sell's value is the
	// ask itself.
	currencyPrice := raw.Price
	currencyValue := currencyPrice
	if raw.Side == domain.OrderSideBuy && totalBps > 0 {
		feeAmt := new(big.Int).Mul(currencyPrice, big.NewInt(totalBps))
		feeAmt.Div(feeAmt, big.NewInt(10000))
		currencyValue = new(big.Int).Sub(currencyPrice, feeAmt)
	}

	at := n.converter.At(raw)
	native, err := n.converter.Convert(ctx, raw.Currency, at, currencyPrice, currencyValue)
	if err != nil {
		if errors.Is(err, domain.ErrNoPrice) {
			return domain.PipelineResult{ID: adm.id, Status: domain.StatusFailedToConvertPrice}, nil, nil
		}
		return domain.PipelineResult{}, nil, fmt.Errorf("ingest: convert price: %w", err)
	}
	price, value := native[0], native[1]

	collection, collErr := n.registry.Get(ctx, adm.scope.Contract)
	if collErr != nil && !errors.Is(collErr, domain.ErrNotFound) {
		return domain.PipelineResult{}, nil, collErr
	}
	known := collErr == nil

	// Normalized value prices the order as if the collection's default
	// royalty were honored: a royalty-skipping ask effectively costs the
	// buyer more, a royalty-skipping bid yields the seller less.
	normalizedValue := value
	var missing []domain.MissingRoyalty
	if known {
		missing = n.royalties.Shortfall(collection, royaltyBps, price)
		if len(missing) > 0 {
			normalizedValue = new(big.Int).Set(value)
			if raw.Side == domain.OrderSideSell {
				normalizedValue.Add(normalizedValue, missing[0].Amount)
			} else {
				normalizedValue.Sub(normalizedValue, missing[0].Amount)
				if normalizedValue.Sign() < 0 {
					normalizedValue.SetInt64(0)
				}
			}
		}
	}

	if opts.RejectLowBids && raw.Side == domain.OrderSideBuy {
		if !known || collection.FloorValue == nil {
			return domain.PipelineResult{ID: adm.id, Status: domain.StatusUnknownCollection}, nil, nil
		}
		threshold := new(big.Int).Mul(collection.FloorValue, big.NewInt(n.cfg.LowBidFloorBps))
		threshold.Div(threshold, big.NewInt(10000))
		if value.Cmp(threshold) < 0 {
			return domain.PipelineResult{ID: adm.id, Status: domain.StatusBidTooLow}, nil, nil
		}
	}

	sourceID, err := n.attributor.Attribute(ctx, fees, raw.Source, raw.IsNative)
	if err != nil {
		return domain.PipelineResult{}, nil, err
	}

	order := &domain.Order{
		ID:               adm.id,
		Protocol:         adapter.Kind(),
		Side:             raw.Side,
		Fillability:      adm.probe.Fillability,
		Approval:         adm.probe.Approval,
		TokenSetID:       tokenSetID,
		Maker:            canonAddr(raw.Maker),
		Taker:            canonAddr(raw.Taker),
		Price:            price,
		Value:            value,
		NormalizedValue:  normalizedValue,
		Currency:         canonAddr(raw.Currency),
		CurrencyPrice:    currencyPrice,
		CurrencyValue:    currencyValue,
		FeeBps:           totalBps,
		FeeBreakdown:     breakdown,
		MissingRoyalties: missing,
		Nonce:            raw.Nonce,
		SourceID:         sourceID,
		ValidFrom:        raw.ValidFrom,
		ValidTo:          raw.ValidTo,
		RawData:          raw.RawData,
		CreatedAt:        time.Now().UTC(),
	}

	n.logger.Debug("order normalized",
		"order_id", order.ID,
		"token_set_id", tokenSetID,
		"side", order.Side,
		"fee_bps", totalBps,
		"actionable", order.Actionable(),
	)

	return domain.PipelineResult{
		ID:         order.ID,
		Status:     domain.StatusSuccess,
		Unfillable: !order.Actionable(),
	}, order, nil
}
