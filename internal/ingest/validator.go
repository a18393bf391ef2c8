package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/floorline/floorline/internal/domain"
)

// ValidatorConfig holds the policy knobs for admission checks.
type ValidatorConfig struct {
	// AllowedCurrencies is the payment-token allow-list for buy orders.
	// Empty allows all.
	AllowedCurrencies []string

	// AllowedZones lists the trusted zone contracts. The empty zone is
	// always allowed.
	AllowedZones []string

	// StartTimeGrace is how far in the future an order may start and still
	// be admitted.
	StartTimeGrace time.Duration
}

// Validator runs the ordered admission checks on a raw order. Checks
// short-circuit: the first failing check decides the terminal status and
// later checks never run.
type Validator struct {
	cfg        ValidatorConfig
	orders     domain.OrderStore
	currencies map[string]struct{}
	zones      map[string]struct{}
	now        func() time.Time
	logger     *slog.Logger
}

func NewValidator(cfg ValidatorConfig, orders domain.OrderStore, logger *slog.Logger) *Validator {
	v := &Validator{
		cfg:        cfg,
		orders:     orders,
		currencies: make(map[string]struct{}, len(cfg.AllowedCurrencies)),
		zones:      make(map[string]struct{}, len(cfg.AllowedZones)),
		now:        time.Now,
		logger:     logger.With("component", "validator"),
	}
	for _, c := range cfg.AllowedCurrencies {
		v.currencies[normAddr(c)] = struct{}{}
	}
	for _, z := range cfg.AllowedZones {
		v.zones[normAddr(z)] = struct{}{}
	}
	return v
}

// admission is what a validated order contributes to the rest of the
// pipeline: its canonical id, resolved scope, and probed on-chain state.
type admission struct {
	id    string
	scope domain.OrderScope
	probe domain.ProbeResult
}

// Validate runs the admission chain. A non-empty status is a terminal
// rejection-or-degradation classification for this order; a non-nil error is
// an infrastructure fault that must abort the enclosing batch.
func (v *Validator) Validate(ctx context.Context, adapter ProtocolAdapter, raw domain.RawOrderInput) (admission, domain.Status, error) {
	var adm admission

	id, err := adapter.OrderHash(raw)
	if err != nil {
		v.logger.Debug("order hash failed", "error", err)
		return adm, domain.StatusInvalidFormat, nil
	}
	adm.id = id

	scope, err := adapter.ParseScope(raw)
	if err != nil {
		v.logger.Debug("scope parse failed", "order_id", id, "error", err)
		return adm, domain.StatusInvalidFormat, nil
	}
	adm.scope = scope

	exists, err := v.orders.Exists(ctx, id)
	if err != nil {
		return adm, "", fmt.Errorf("ingest: check existing order: %w", err)
	}
	if exists {
		return adm, domain.StatusAlreadyExists, nil
	}

	if raw.Price == nil || raw.Price.Sign() <= 0 {
		return adm, domain.StatusZeroPrice, nil
	}

	now := v.now().UTC()
	if raw.ValidFrom.After(now.Add(v.cfg.StartTimeGrace)) {
		return adm, domain.StatusInvalidStartTime, nil
	}
	if !raw.ValidTo.IsZero() && !raw.ValidTo.After(now) {
		return adm, domain.StatusExpired, nil
	}

	// Sell listings may price in any currency; conversion decides whether
	// the price is usable. Only bids are held to the allow-list.
	if raw.Side == domain.OrderSideBuy && len(v.currencies) > 0 {
		if _, ok := v.currencies[normAddr(raw.Currency)]; !ok {
			return adm, domain.StatusUnsupportedPaymentToken, nil
		}
	}

	if raw.Zone != "" {
		if _, ok := v.zones[normAddr(raw.Zone)]; !ok {
			return adm, domain.StatusUnsupportedZone, nil
		}
	}

	if err := adapter.CheckValidity(ctx, raw); err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			v.logger.Debug("validity check failed", "order_id", id, "error", err)
			return adm, domain.StatusInvalid, nil
		}
		return adm, "", fmt.Errorf("ingest: validity check: %w", err)
	}

	if err := adapter.CheckSignature(ctx, raw); err != nil {
		if errors.Is(err, ErrBadSignature) || errors.Is(err, domain.ErrInvalidOrder) {
			v.logger.Debug("signature check failed", "order_id", id, "error", err)
			return adm, domain.StatusInvalidSignature, nil
		}
		return adm, "", fmt.Errorf("ingest: signature check: %w", err)
	}

	probe, err := adapter.CheckFillability(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrNotFillable) {
			return adm, domain.StatusNotFillable, nil
		}
		return adm, "", fmt.Errorf("ingest: fillability probe: %w", err)
	}
	adm.probe = probe

	return adm, "", nil
}
