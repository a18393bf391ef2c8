package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/floorline/floorline/internal/domain"
)

// MarketplaceDirectory is an in-memory index of known marketplace sources by
// their fee-recipient address. It is loaded from the source store at startup
// and refreshed periodically; lookups are lock-cheap and never hit the
// database.
type MarketplaceDirectory struct {
	sources domain.SourceStore
	logger  *slog.Logger

	mu     sync.RWMutex
	byAddr map[string]domain.Source
}

func NewMarketplaceDirectory(sources domain.SourceStore, logger *slog.Logger) *MarketplaceDirectory {
	return &MarketplaceDirectory{
		sources: sources,
		logger:  logger.With("component", "marketplace_directory"),
		byAddr:  make(map[string]domain.Source),
	}
}

// Refresh reloads the directory from the store.
func (d *MarketplaceDirectory) Refresh(ctx context.Context) error {
	all, err := d.sources.List(ctx)
	if err != nil {
		return fmt.Errorf("ingest: load sources: %w", err)
	}
	byAddr := make(map[string]domain.Source, len(all))
	for _, s := range all {
		if s.Address != "" {
			byAddr[normAddr(s.Address)] = s
		}
	}
	d.mu.Lock()
	d.byAddr = byAddr
	d.mu.Unlock()
	d.logger.Debug("directory refreshed", "sources", len(all), "addressed", len(byAddr))
	return nil
}

// ByFeeRecipient returns the marketplace whose fee wallet is addr.
func (d *MarketplaceDirectory) ByFeeRecipient(addr string) (domain.Source, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.byAddr[normAddr(addr)]
	return s, ok
}

// IsMarketplace reports whether addr is a known marketplace fee wallet.
func (d *MarketplaceDirectory) IsMarketplace(addr string) bool {
	_, ok := d.ByFeeRecipient(addr)
	return ok
}

// SourceAttributor decides which marketplace an order is credited to.
// Fee-recipient evidence on the order itself outranks the submitter's
// self-declared source; orders reconstructed from on-chain events never get
// a declared source at all.
type SourceAttributor struct {
	sources          domain.SourceStore
	dir              *MarketplaceDirectory
	aggregatorDomain string
	logger           *slog.Logger
}

func NewSourceAttributor(sources domain.SourceStore, dir *MarketplaceDirectory, aggregatorDomain string, logger *slog.Logger) *SourceAttributor {
	return &SourceAttributor{
		sources:          sources,
		dir:              dir,
		aggregatorDomain: aggregatorDomain,
		logger:           logger.With("component", "source_attributor"),
	}
}

// Attribute resolves the source id for an order with the given declared
// fees. Unknown declared domains are registered on first sight.
func (a *SourceAttributor) Attribute(ctx context.Context, fees []domain.DeclaredFee, declared string, isNative bool) (*int64, error) {
	for _, f := range fees {
		if s, ok := a.dir.ByFeeRecipient(f.Recipient); ok {
			return &s.ID, nil
		}
	}

	dom := a.aggregatorDomain
	if isNative && declared != "" {
		dom = declared
	}
	s, err := a.sources.GetOrCreate(ctx, dom)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve source %q: %w", dom, err)
	}
	return &s.ID, nil
}
