package domain

import (
	"math/big"
	"time"
)

// Royalty is one registered default royalty entry for a collection.
type Royalty struct {
	Recipient string `json:"recipient"`
	Bps       int64  `json:"bps"`
}

// Collection is the registry row for an NFT contract: default royalties,
// popularity rank and current floor value. Maintained by the out-of-scope
// collection indexer; the ingestion pipeline only reads it.
type Collection struct {
	Contract   string
	Name       string
	Rank       int64    // 1 = most popular; 0 = unranked
	FloorValue *big.Int // native per-item floor, nil when unknown
	Royalties  []Royalty
	UpdatedAt  time.Time
}

// DefaultRoyaltyBps sums the registered default royalty bps.
func (c Collection) DefaultRoyaltyBps() int64 {
	var total int64
	for _, r := range c.Royalties {
		total += r.Bps
	}
	return total
}
