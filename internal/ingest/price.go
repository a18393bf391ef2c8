package ingest

import (
	"context"
	"math/big"
	"time"

	"github.com/floorline/floorline/internal/domain"
)

// PriceConverter turns payment-currency amounts into their native-currency
// equivalents via the oracle.
type PriceConverter struct {
	oracle domain.PriceOracle
	now    func() time.Time
}

func NewPriceConverter(oracle domain.PriceOracle) *PriceConverter {
	return &PriceConverter{oracle: oracle, now: time.Now}
}

// At picks the conversion timestamp for an order. Native submissions convert
// at ingest time; orders reconstructed from past on-chain events convert at
// the rate in effect when the order became valid.
func (c *PriceConverter) At(raw domain.RawOrderInput) time.Time {
	now := c.now().UTC()
	if !raw.IsNative && !raw.ValidFrom.IsZero() && raw.ValidFrom.Before(now) {
		return raw.ValidFrom
	}
	return now
}

// Convert maps each amount to native units at the same instant, so price and
// value stay mutually consistent. A nil amount passes through as nil.
func (c *PriceConverter) Convert(ctx context.Context, currency string, at time.Time, amounts ...*big.Int) ([]*big.Int, error) {
	out := make([]*big.Int, len(amounts))
	for i, amt := range amounts {
		if amt == nil {
			continue
		}
		native, err := c.oracle.ToNative(ctx, currency, amt, at)
		if err != nil {
			return nil, err
		}
		out[i] = native
	}
	return out, nil
}
