package ingest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/floorline/floorline/internal/domain"
)

// SubmitOptions are the per-call flags of a batch submission.
type SubmitOptions struct {
	// AuditRelay sends newly-inserted orders to the durable audit log.
	AuditRelay bool

	// RejectLowBids rejects bids far below the collection floor instead of
	// storing them.
	RejectLowBids bool
}

// PipelineConfig tunes batch execution.
type PipelineConfig struct {
	// Concurrency bounds how many orders of one batch normalize in
	// parallel.
	Concurrency int

	// JobQueue is the queue new-order notifications go to.
	JobQueue string
}

// Pipeline is the ingestion entrypoint. One Submit call takes a batch of
// raw protocol orders through per-order normalization and a single batch
// insert. Expected rejections come back as per-order statuses; an
// infrastructure fault aborts the whole batch with an error before anything
// is persisted.
type Pipeline struct {
	cfg        PipelineConfig
	adapters   map[domain.ProtocolKind]ProtocolAdapter
	normalizer *Normalizer
	orders     domain.OrderStore
	queue      domain.JobQueue
	audit      domain.AuditRelay
	logger     *slog.Logger
}

func NewPipeline(
	cfg PipelineConfig,
	normalizer *Normalizer,
	orders domain.OrderStore,
	queue domain.JobQueue,
	audit domain.AuditRelay,
	logger *slog.Logger,
	adapters ...ProtocolAdapter,
) *Pipeline {
	byKind := make(map[domain.ProtocolKind]ProtocolAdapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	return &Pipeline{
		cfg:        cfg,
		adapters:   byKind,
		normalizer: normalizer,
		orders:     orders,
		queue:      queue,
		audit:      audit,
		logger:     logger.With("component", "pipeline"),
	}
}

// Submit normalizes and persists a batch of raw orders. Results are
// positional: results[i] classifies raws[i].
func (p *Pipeline) Submit(ctx context.Context, raws []domain.RawOrderInput, opts SubmitOptions) ([]domain.PipelineResult, error) {
	results := make([]domain.PipelineResult, len(raws))
	b := newBatcher(p.orders, p.queue, p.cfg.JobQueue, p.audit, p.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			adapter, ok := p.adapters[raw.Protocol]
			if !ok {
				results[i] = domain.PipelineResult{Status: domain.StatusInvalidFormat}
				return nil
			}
			res, order, err := p.normalizer.Normalize(gctx, adapter, raw, opts)
			if err != nil {
				return err
			}
			results[i] = res
			if order != nil {
				b.add(*order)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created, err := b.flush(ctx, opts.AuditRelay)
	if err != nil {
		return nil, err
	}

	// A duplicate that slipped past the pre-check — same order twice in one
	// batch, or a concurrent Submit racing us — shows up as a success whose
	// row was conflict-skipped. Reclassify it.
	var stored int
	for i := range results {
		if results[i].Status != domain.StatusSuccess {
			continue
		}
		if _, ok := created[results[i].ID]; ok {
			stored++
			delete(created, results[i].ID)
		} else {
			results[i].Status = domain.StatusAlreadyExists
			results[i].Unfillable = false
		}
	}

	p.logger.Info("batch ingested", "orders", len(raws), "stored", stored)
	return results, nil
}
