package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floorline/floorline/internal/domain"
)

// SourceStore implements domain.SourceStore using PostgreSQL. Sources are
// append-only: rows are never updated or deleted.
type SourceStore struct {
	pool *pgxpool.Pool
}

// NewSourceStore creates a new SourceStore backed by the given pool.
func NewSourceStore(pool *pgxpool.Pool) *SourceStore {
	return &SourceStore{pool: pool}
}

const sourceSelectCols = `id, domain, name, address, created_at`

func scanSource(scanner interface{ Scan(dest ...any) error }) (domain.Source, error) {
	var src domain.Source
	err := scanner.Scan(&src.ID, &src.Domain, &src.Name, &src.Address, &src.CreatedAt)
	return src, err
}

// GetOrCreate returns the source for the given domain, inserting it first if
// absent. The insert-then-select is safe under concurrency because of the
// unique constraint and conflict-skip.
func (s *SourceStore) GetOrCreate(ctx context.Context, dom string) (domain.Source, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sources (domain) VALUES ($1)
		ON CONFLICT (domain) DO NOTHING`, dom)
	if err != nil {
		return domain.Source{}, fmt.Errorf("postgres: ensure source %s: %w", dom, err)
	}
	return s.GetByDomain(ctx, dom)
}

// GetByDomain retrieves a source by its marketplace domain.
func (s *SourceStore) GetByDomain(ctx context.Context, dom string) (domain.Source, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sourceSelectCols+` FROM sources WHERE domain = $1`, dom)

	src, err := scanSource(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Source{}, domain.ErrNotFound
		}
		return domain.Source{}, fmt.Errorf("postgres: get source %s: %w", dom, err)
	}
	return src, nil
}

// GetByAddress retrieves a source by its known fee-recipient address.
func (s *SourceStore) GetByAddress(ctx context.Context, address string) (domain.Source, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sourceSelectCols+` FROM sources WHERE address = $1 AND address <> ''`, address)

	src, err := scanSource(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Source{}, domain.ErrNotFound
		}
		return domain.Source{}, fmt.Errorf("postgres: get source by address %s: %w", address, err)
	}
	return src, nil
}

// List returns all known sources.
func (s *SourceStore) List(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sourceSelectCols+` FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Compile-time interface check.
var _ domain.SourceStore = (*SourceStore)(nil)
