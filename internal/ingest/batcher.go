package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/floorline/floorline/internal/domain"
)

// batcher accumulates normalized orders during one Submit call and lands
// them in a single conflict-skipping insert, so the whole batch commits or
// none of it does. Job notifications only fire for rows that were actually
// new; the audit relay covers the full batch and runs before the insert.
type batcher struct {
	orders   domain.OrderStore
	queue    domain.JobQueue
	jobQueue string
	audit    domain.AuditRelay
	logger   *slog.Logger

	mu      sync.Mutex
	pending []domain.Order
}

func newBatcher(orders domain.OrderStore, queue domain.JobQueue, jobQueue string, audit domain.AuditRelay, logger *slog.Logger) *batcher {
	return &batcher{
		orders:   orders,
		queue:    queue,
		jobQueue: jobQueue,
		audit:    audit,
		logger:   logger.With("component", "batcher"),
	}
}

func (b *batcher) add(o domain.Order) {
	b.mu.Lock()
	b.pending = append(b.pending, o)
	b.mu.Unlock()
}

// flush inserts the pending orders and returns the set of ids that were
// newly created. The audit relay runs first, over the full normalized batch:
// a relay failure aborts before any row lands, so a whole-batch retry
// re-relays the same orders under the same object key instead of leaving a
// gap. Job notifications are fire-and-forget.
func (b *batcher) flush(ctx context.Context, relayAudit bool) (map[string]struct{}, error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	created := make(map[string]struct{})
	if len(pending) == 0 {
		return created, nil
	}

	if relayAudit && b.audit != nil {
		if err := b.audit.Relay(ctx, pending); err != nil {
			return nil, fmt.Errorf("ingest: audit relay: %w", err)
		}
	}

	inserted, err := b.orders.InsertBatch(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("ingest: insert orders: %w", err)
	}
	for _, id := range inserted {
		created[id] = struct{}{}
	}

	for _, o := range pending {
		if _, ok := created[o.ID]; !ok {
			continue
		}
		if o.Actionable() {
			job := domain.Job{
				Context: "new-order-" + o.ID,
				ID:      o.ID,
				Trigger: "new-order",
			}
			if err := b.queue.Enqueue(ctx, b.jobQueue, job); err != nil {
				b.logger.Warn("new-order enqueue failed", "order_id", o.ID, "error", err)
			}
		}
	}

	b.logger.Debug("batch flushed", "pending", len(pending), "inserted", len(inserted))
	return created, nil
}
