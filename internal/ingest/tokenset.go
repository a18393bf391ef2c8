package ingest

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/floorline/floorline/internal/domain"
)

// TokenSetResolverConfig tunes set creation side effects.
type TokenSetResolverConfig struct {
	// HotCollectionRank gates the reconcile job: only list sets on
	// collections ranked at or above this popularity get one. Zero disables
	// the gate entirely.
	HotCollectionRank int64

	// ClaimTTL bounds how long a reconcile claim is held.
	ClaimTTL time.Duration

	// ReconcileQueue is the job queue name for token-list reconciliation.
	ReconcileQueue string
}

// TokenSetResolver maps an order scope to its content-addressed token set,
// creating the set on first use. Resolution is deterministic: concurrent
// orders over the same scope always converge on the same set id, with the
// store's idempotent insert absorbing the race.
type TokenSetResolver struct {
	cfg      TokenSetResolverConfig
	sets     domain.TokenSetStore
	registry *CollectionRegistry
	claims   domain.ClaimStore
	queue    domain.JobQueue
	logger   *slog.Logger
}

func NewTokenSetResolver(
	cfg TokenSetResolverConfig,
	sets domain.TokenSetStore,
	registry *CollectionRegistry,
	claims domain.ClaimStore,
	queue domain.JobQueue,
	logger *slog.Logger,
) *TokenSetResolver {
	return &TokenSetResolver{
		cfg:      cfg,
		sets:     sets,
		registry: registry,
		claims:   claims,
		queue:    queue,
		logger:   logger.With("component", "tokenset_resolver"),
	}
}

// Resolve returns the token set id for scope, inserting the set if it does
// not exist yet. A non-empty status means the scope cannot form a valid set.
func (r *TokenSetResolver) Resolve(ctx context.Context, scope domain.OrderScope) (string, domain.Status, error) {
	set := domain.TokenSet{Contract: scope.Contract}

	switch scope.Kind {
	case domain.ScopeSingleToken:
		set.Kind = domain.TokenSetSingleToken
		set.TokenID = scope.TokenID
		set.ID = fmt.Sprintf("token:%s:%s", scope.Contract, scope.TokenID)

	case domain.ScopeContractWide:
		set.Kind = domain.TokenSetContractWide
		set.ID = fmt.Sprintf("contract:%s", scope.Contract)

	case domain.ScopeTokenList:
		root, status := r.listRoot(scope)
		if status != "" {
			return "", status, nil
		}
		set.Kind = domain.TokenSetTokenList
		set.TokenIDs = scope.TokenIDs
		set.ID = fmt.Sprintf("list:%s:%s", scope.Contract, root)

	default:
		return "", domain.StatusInvalidTokenSet, nil
	}

	created, err := r.sets.Insert(ctx, set)
	if err != nil {
		return "", "", fmt.Errorf("ingest: insert token set: %w", err)
	}
	if created && set.Kind == domain.TokenSetTokenList {
		r.enqueueReconcile(ctx, set)
	}
	return set.ID, "", nil
}

// listRoot derives or verifies the merkle commitment of a token-list scope.
func (r *TokenSetResolver) listRoot(scope domain.OrderScope) (string, domain.Status) {
	if len(scope.TokenIDs) == 0 {
		// A bare root without members is accepted; membership is filled in
		// by the reconcile job.
		if scope.MerkleRoot == "" {
			return "", domain.StatusInvalidTokenSet
		}
		return scope.MerkleRoot, ""
	}

	computed, err := merkleRoot(scope.TokenIDs)
	if err != nil {
		return "", domain.StatusInvalidTokenSet
	}
	if scope.MerkleRoot != "" && scope.MerkleRoot != computed {
		return "", domain.StatusInvalidTokenSet
	}
	return computed, ""
}

// enqueueReconcile schedules membership reconciliation for a freshly created
// list set on a popular collection. The claim keeps concurrently ingesting
// nodes from double-enqueueing; losing the claim is fine.
func (r *TokenSetResolver) enqueueReconcile(ctx context.Context, set domain.TokenSet) {
	if r.cfg.HotCollectionRank > 0 {
		c, err := r.registry.Get(ctx, set.Contract)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				r.logger.Warn("collection lookup for reconcile failed", "contract", set.Contract, "error", err)
			}
			return
		}
		if c.Rank <= 0 || c.Rank > r.cfg.HotCollectionRank {
			return
		}
	}

	won, err := r.claims.Claim(ctx, "tokenset-reconcile:"+set.ID, r.cfg.ClaimTTL)
	if err != nil {
		r.logger.Warn("reconcile claim failed", "token_set_id", set.ID, "error", err)
		return
	}
	if !won {
		return
	}

	job := domain.Job{
		Context: "token-list-reconcile-" + set.ID,
		ID:      set.ID,
		Trigger: "token-list-reconcile",
	}
	if err := r.queue.Enqueue(ctx, r.cfg.ReconcileQueue, job); err != nil {
		r.logger.Warn("reconcile enqueue failed", "token_set_id", set.ID, "error", err)
	}
}

// merkleRoot computes the sorted-pair keccak merkle root over the token ids,
// matching the commitment criteria-based orders sign over. Leaves are the
// keccak of each id as a 32-byte big-endian integer.
func merkleRoot(tokenIDs []string) (string, error) {
	leaves := make([][]byte, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		n, ok := new(big.Int).SetString(id, 10)
		if !ok || n.Sign() < 0 {
			return "", fmt.Errorf("ingest: bad token id %q", id)
		}
		leaves = append(leaves, keccak(leftPad32(n.Bytes())))
	}
	sort.Slice(leaves, func(i, j int) bool { return bytes.Compare(leaves[i], leaves[j]) < 0 })

	for len(leaves) > 1 {
		next := make([][]byte, 0, (len(leaves)+1)/2)
		for i := 0; i < len(leaves); i += 2 {
			if i+1 == len(leaves) {
				next = append(next, leaves[i])
				continue
			}
			a, b := leaves[i], leaves[i+1]
			if bytes.Compare(a, b) > 0 {
				a, b = b, a
			}
			next = append(next, keccak(append(append([]byte{}, a...), b...)))
		}
		leaves = next
	}
	return "0x" + hex.EncodeToString(leaves[0]), nil
}

func keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
