package ingest

import (
	"context"
	"testing"

	"github.com/floorline/floorline/internal/domain"
)

func newTestAttributor(t *testing.T) (*SourceAttributor, *memSourceStore) {
	t.Helper()
	sources := newMemSourceStore(domain.Source{Domain: "opensea.io", Name: "OpenSea", Address: testFeeWlt})
	dir := NewMarketplaceDirectory(sources, discardLogger())
	if err := dir.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewSourceAttributor(sources, dir, "floorline.xyz", discardLogger()), sources
}

func TestAttributePrecedence(t *testing.T) {
	attributor, sources := newTestAttributor(t)
	ctx := context.Background()

	opensea, err := sources.GetByDomain(ctx, "opensea.io")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		fees       []domain.DeclaredFee
		declared   string
		isNative   bool
		wantDomain string
	}{
		{
			name:       "fee wallet outranks declared source",
			fees:       []domain.DeclaredFee{{Recipient: testFeeWlt, Bps: 250}},
			declared:   "someother.market",
			isNative:   true,
			wantDomain: "opensea.io",
		},
		{
			name:       "native declared source honored",
			declared:   "someother.market",
			isNative:   true,
			wantDomain: "someother.market",
		},
		{
			name:       "declared source ignored for reconstructed orders",
			declared:   "someother.market",
			isNative:   false,
			wantDomain: "floorline.xyz",
		},
		{
			name:       "defaults to aggregator",
			isNative:   true,
			wantDomain: "floorline.xyz",
		},
		{
			name:       "unknown fee wallet falls through",
			fees:       []domain.DeclaredFee{{Recipient: testRoyalty, Bps: 500}},
			isNative:   true,
			wantDomain: "floorline.xyz",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := attributor.Attribute(ctx, tt.fees, tt.declared, tt.isNative)
			if err != nil {
				t.Fatal(err)
			}
			if id == nil {
				t.Fatal("nil source id")
			}
			want, err := sources.GetByDomain(ctx, tt.wantDomain)
			if err != nil {
				t.Fatalf("expected domain %q not registered", tt.wantDomain)
			}
			if *id != want.ID {
				t.Errorf("source id = %d, want %d (%s)", *id, want.ID, tt.wantDomain)
			}
		})
	}

	// The seeded marketplace keeps its identity across lookups.
	id, err := attributor.Attribute(ctx, []domain.DeclaredFee{{Recipient: testFeeWlt, Bps: 100}}, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if *id != opensea.ID {
		t.Errorf("fee wallet resolved to %d, want %d", *id, opensea.ID)
	}
}

func TestAttributeRegistersNewDomains(t *testing.T) {
	attributor, sources := newTestAttributor(t)
	ctx := context.Background()

	id1, err := attributor.Attribute(ctx, nil, "brand-new.market", true)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := attributor.Attribute(ctx, nil, "brand-new.market", true)
	if err != nil {
		t.Fatal(err)
	}
	if *id1 != *id2 {
		t.Errorf("same domain attributed twice: %d vs %d", *id1, *id2)
	}
	if _, err := sources.GetByDomain(ctx, "brand-new.market"); err != nil {
		t.Error("declared domain was not registered")
	}
}
