package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/floorline/floorline/internal/domain"
)

func newTestResolver(t *testing.T) (*TokenSetResolver, *memTokenSetStore, *memCollectionStore, *memQueue) {
	t.Helper()
	sets := newMemTokenSetStore()
	collections := newMemCollectionStore()
	queue := &memQueue{}
	registry := NewCollectionRegistry(collections, nil, discardLogger())
	resolver := NewTokenSetResolver(TokenSetResolverConfig{
		HotCollectionRank: 1000,
		ClaimTTL:          time.Minute,
		ReconcileQueue:    "jobs:token-list-reconcile",
	}, sets, registry, newMemClaims(), queue, discardLogger())
	return resolver, sets, collections, queue
}

func TestResolveDeterministicIDs(t *testing.T) {
	resolver, sets, _, _ := newTestResolver(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		scope domain.OrderScope
		want  string
	}{
		{
			name:  "single token",
			scope: domain.OrderScope{Kind: domain.ScopeSingleToken, Contract: testContract, TokenID: "42"},
			want:  "token:" + testContract + ":42",
		},
		{
			name:  "contract wide",
			scope: domain.OrderScope{Kind: domain.ScopeContractWide, Contract: testContract},
			want:  "contract:" + testContract,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, status, err := resolver.Resolve(ctx, tt.scope)
			if err != nil || status != "" {
				t.Fatalf("resolve: id=%q status=%q err=%v", id, status, err)
			}
			if id != tt.want {
				t.Errorf("id = %q, want %q", id, tt.want)
			}
			if _, err := sets.GetByID(ctx, id); err != nil {
				t.Errorf("set %q not persisted", id)
			}
		})
	}
}

func TestResolveTokenListRoot(t *testing.T) {
	resolver, _, _, _ := newTestResolver(t)
	ctx := context.Background()

	a := domain.OrderScope{Kind: domain.ScopeTokenList, Contract: testContract, TokenIDs: []string{"1", "2", "3"}}
	b := domain.OrderScope{Kind: domain.ScopeTokenList, Contract: testContract, TokenIDs: []string{"3", "1", "2"}}

	idA, status, err := resolver.Resolve(ctx, a)
	if err != nil || status != "" {
		t.Fatalf("resolve a: status=%q err=%v", status, err)
	}
	idB, status, err := resolver.Resolve(ctx, b)
	if err != nil || status != "" {
		t.Fatalf("resolve b: status=%q err=%v", status, err)
	}
	if idA != idB {
		t.Errorf("member order changed the set id: %q vs %q", idA, idB)
	}

	c := domain.OrderScope{Kind: domain.ScopeTokenList, Contract: testContract, TokenIDs: []string{"1", "2", "4"}}
	idC, _, err := resolver.Resolve(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if idC == idA {
		t.Error("different members share a set id")
	}
}

func TestResolveTokenListRejections(t *testing.T) {
	resolver, _, _, _ := newTestResolver(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		scope domain.OrderScope
	}{
		{
			name:  "no members and no root",
			scope: domain.OrderScope{Kind: domain.ScopeTokenList, Contract: testContract},
		},
		{
			name: "root mismatch",
			scope: domain.OrderScope{
				Kind:       domain.ScopeTokenList,
				Contract:   testContract,
				TokenIDs:   []string{"1", "2"},
				MerkleRoot: "0xdeadbeef",
			},
		},
		{
			name:  "non-numeric member",
			scope: domain.OrderScope{Kind: domain.ScopeTokenList, Contract: testContract, TokenIDs: []string{"nope"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := resolver.Resolve(ctx, tt.scope)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status != domain.StatusInvalidTokenSet {
				t.Errorf("status = %q, want invalid-token-set", status)
			}
		})
	}
}

func TestResolveAcceptsBareRoot(t *testing.T) {
	resolver, sets, _, _ := newTestResolver(t)

	scope := domain.OrderScope{
		Kind:       domain.ScopeTokenList,
		Contract:   testContract,
		MerkleRoot: "0xabcdef0123",
	}
	id, status, err := resolver.Resolve(context.Background(), scope)
	if err != nil || status != "" {
		t.Fatalf("resolve: status=%q err=%v", status, err)
	}
	if id != "list:"+testContract+":0xabcdef0123" {
		t.Errorf("id = %q", id)
	}
	set, err := sets.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.TokenIDs) != 0 {
		t.Errorf("bare-root set has members %v", set.TokenIDs)
	}
}

func TestConcurrentResolveInsertsOnce(t *testing.T) {
	resolver, sets, _, _ := newTestResolver(t)
	scope := domain.OrderScope{Kind: domain.ScopeSingleToken, Contract: testContract, TokenID: "99"}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _, err := resolver.Resolve(context.Background(), scope)
			if err != nil {
				t.Errorf("resolve: %v", err)
			}
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("divergent ids: %q vs %q", id, ids[0])
		}
	}
	if sets.inserts != 1 {
		t.Errorf("set inserted %d times, want 1", sets.inserts)
	}
}

func TestReconcileJobForHotCollections(t *testing.T) {
	resolver, _, collections, queue := newTestResolver(t)
	ctx := context.Background()

	collections.Upsert(ctx, domain.Collection{Contract: testContract, Rank: 5})
	cold := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	collections.Upsert(ctx, domain.Collection{Contract: cold, Rank: 50_000})

	hotScope := domain.OrderScope{Kind: domain.ScopeTokenList, Contract: testContract, TokenIDs: []string{"1", "2"}}
	if _, status, err := resolver.Resolve(ctx, hotScope); err != nil || status != "" {
		t.Fatalf("resolve hot: status=%q err=%v", status, err)
	}
	// Same scope again: set already exists, no second job.
	if _, _, err := resolver.Resolve(ctx, hotScope); err != nil {
		t.Fatal(err)
	}

	coldScope := domain.OrderScope{Kind: domain.ScopeTokenList, Contract: cold, TokenIDs: []string{"1", "2"}}
	if _, status, err := resolver.Resolve(ctx, coldScope); err != nil || status != "" {
		t.Fatalf("resolve cold: status=%q err=%v", status, err)
	}

	jobs := queue.byTrigger("token-list-reconcile")
	if len(jobs) != 1 {
		t.Fatalf("got %d reconcile jobs, want 1", len(jobs))
	}
	if jobs[0].queue != "jobs:token-list-reconcile" {
		t.Errorf("queue = %q", jobs[0].queue)
	}
}

func TestMerkleRootStable(t *testing.T) {
	root1, err := merkleRoot([]string{"5", "10", "15", "20", "25"})
	if err != nil {
		t.Fatal(err)
	}
	root2, err := merkleRoot([]string{"25", "5", "20", "10", "15"})
	if err != nil {
		t.Fatal(err)
	}
	if root1 != root2 {
		t.Errorf("roots differ: %s vs %s", root1, root2)
	}

	single, err := merkleRoot([]string{"7"})
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != 66 { // 0x + 32 bytes hex
		t.Errorf("root length = %d", len(single))
	}

	if _, err := merkleRoot([]string{"123456789012345678901234567890"}); err != nil {
		t.Errorf("large numeric id rejected: %v", err)
	}
	if _, err := merkleRoot([]string{"-1"}); err == nil {
		t.Error("negative id accepted")
	}
}
