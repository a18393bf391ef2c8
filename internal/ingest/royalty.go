package ingest

import (
	"math/big"

	"github.com/floorline/floorline/internal/domain"
)

// RoyaltyEngine classifies declared fees and reconciles them against the
// collection's registered default royalties.
type RoyaltyEngine struct {
	dir *MarketplaceDirectory
}

func NewRoyaltyEngine(dir *MarketplaceDirectory) *RoyaltyEngine {
	return &RoyaltyEngine{dir: dir}
}

// Classify tags each declared fee as a marketplace fee or a royalty. A
// recipient the directory knows as a marketplace fee wallet is a marketplace
// fee; everything else is presumed a royalty. It also returns the total and
// royalty-only bps sums.
func (e *RoyaltyEngine) Classify(fees []domain.DeclaredFee) (breakdown []domain.FeeBreakdown, totalBps, royaltyBps int64) {
	breakdown = make([]domain.FeeBreakdown, 0, len(fees))
	for _, f := range fees {
		kind := domain.FeeKindRoyalty
		if e.dir.IsMarketplace(f.Recipient) {
			kind = domain.FeeKindMarketplace
		} else {
			royaltyBps += f.Bps
		}
		totalBps += f.Bps
		breakdown = append(breakdown, domain.FeeBreakdown{
			Recipient: canonAddr(f.Recipient),
			Bps:       f.Bps,
			Kind:      kind,
		})
	}
	return breakdown, totalBps, royaltyBps
}

// Shortfall computes the gap between the royalty the order pays and the
// collection's registered default, as an amount of the native per-item
// price. Orders paying at or above the default have no shortfall. The
// shortfall is attributed to the default's largest recipient.
func (e *RoyaltyEngine) Shortfall(c domain.Collection, declaredRoyaltyBps int64, price *big.Int) []domain.MissingRoyalty {
	short := c.DefaultRoyaltyBps() - declaredRoyaltyBps
	if short <= 0 || len(c.Royalties) == 0 {
		return nil
	}

	top := c.Royalties[0]
	for _, r := range c.Royalties[1:] {
		if r.Bps > top.Bps {
			top = r
		}
	}

	amount := new(big.Int).Mul(price, big.NewInt(short))
	amount.Div(amount, big.NewInt(10000))
	return []domain.MissingRoyalty{{
		Recipient: canonAddr(top.Recipient),
		Bps:       short,
		Amount:    amount,
	}}
}
