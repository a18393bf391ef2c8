package ingest

import (
	"context"
	"math/big"
	"testing"

	"github.com/floorline/floorline/internal/domain"
)

func newTestRoyaltyEngine(t *testing.T) *RoyaltyEngine {
	t.Helper()
	sources := newMemSourceStore(domain.Source{Domain: "opensea.io", Address: testFeeWlt})
	dir := NewMarketplaceDirectory(sources, discardLogger())
	if err := dir.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewRoyaltyEngine(dir)
}

func TestClassifyFees(t *testing.T) {
	engine := newTestRoyaltyEngine(t)

	breakdown, total, royalty := engine.Classify([]domain.DeclaredFee{
		{Recipient: testFeeWlt, Bps: 250},
		{Recipient: testRoyalty, Bps: 500},
	})

	if total != 750 || royalty != 500 {
		t.Errorf("total=%d royalty=%d, want 750/500", total, royalty)
	}
	if breakdown[0].Kind != domain.FeeKindMarketplace {
		t.Errorf("known fee wallet classified as %s", breakdown[0].Kind)
	}
	if breakdown[1].Kind != domain.FeeKindRoyalty {
		t.Errorf("unknown recipient classified as %s", breakdown[1].Kind)
	}
}

func TestShortfall(t *testing.T) {
	engine := newTestRoyaltyEngine(t)
	price := big.NewInt(1_000_000)

	collection := domain.Collection{
		Contract: testContract,
		Royalties: []domain.Royalty{
			{Recipient: testRoyalty, Bps: 400},
			{Recipient: testFeeWlt, Bps: 100},
		},
	}

	tests := []struct {
		name       string
		paidBps    int64
		wantBps    int64
		wantAmount int64
	}{
		{name: "nothing paid", paidBps: 0, wantBps: 500, wantAmount: 50_000},
		{name: "partially paid", paidBps: 300, wantBps: 200, wantAmount: 20_000},
		{name: "paid in full", paidBps: 500},
		{name: "overpaid", paidBps: 800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missing := engine.Shortfall(collection, tt.paidBps, price)
			if tt.wantBps == 0 {
				if len(missing) != 0 {
					t.Fatalf("unexpected shortfall %+v", missing)
				}
				return
			}
			if len(missing) != 1 {
				t.Fatalf("got %d entries, want 1", len(missing))
			}
			mr := missing[0]
			if mr.Bps != tt.wantBps || mr.Amount.Int64() != tt.wantAmount {
				t.Errorf("shortfall = %d bps / %s, want %d / %d", mr.Bps, mr.Amount, tt.wantBps, tt.wantAmount)
			}
			// Attributed to the largest registered recipient.
			if mr.Recipient != testRoyalty {
				t.Errorf("recipient = %s", mr.Recipient)
			}
		})
	}
}

func TestShortfallNoRegisteredRoyalties(t *testing.T) {
	engine := newTestRoyaltyEngine(t)
	missing := engine.Shortfall(domain.Collection{Contract: testContract}, 0, big.NewInt(1_000_000))
	if len(missing) != 0 {
		t.Errorf("collection without defaults produced shortfall %+v", missing)
	}
}
