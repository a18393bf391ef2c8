package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floorline/floorline/internal/domain"
)

// TokenSetStore implements domain.TokenSetStore using PostgreSQL.
type TokenSetStore struct {
	pool *pgxpool.Pool
}

// NewTokenSetStore creates a new TokenSetStore backed by the given pool.
func NewTokenSetStore(pool *pgxpool.Pool) *TokenSetStore {
	return &TokenSetStore{pool: pool}
}

// Insert stores the set and its members if absent. Token sets are
// content-addressed and immutable, so a conflicting insert is a no-op.
// It reports whether the set row was newly created.
func (s *TokenSetStore) Insert(ctx context.Context, set domain.TokenSet) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: begin token set insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tokenID *string
	if set.TokenID != "" {
		tokenID = &set.TokenID
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO token_sets (id, kind, contract, token_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		set.ID, string(set.Kind), set.Contract, tokenID,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: insert token set %s: %w", set.ID, err)
	}
	created := tag.RowsAffected() > 0

	// Members only need writing when the set itself is new.
	if created && len(set.TokenIDs) > 0 {
		batch := &pgx.Batch{}
		const memberQuery = `
			INSERT INTO token_set_tokens (token_set_id, token_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`
		for _, id := range set.TokenIDs {
			batch.Queue(memberQuery, set.ID, id)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range set.TokenIDs {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return false, fmt.Errorf("postgres: insert token set member %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return false, fmt.Errorf("postgres: close member batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit token set %s: %w", set.ID, err)
	}
	return created, nil
}

// GetByID retrieves a token set by its content-addressed id, without members.
func (s *TokenSetStore) GetByID(ctx context.Context, id string) (domain.TokenSet, error) {
	var set domain.TokenSet
	var kind string
	var tokenID *string

	err := s.pool.QueryRow(ctx, `
		SELECT id, kind, contract, token_id, created_at
		FROM token_sets WHERE id = $1`, id,
	).Scan(&set.ID, &kind, &set.Contract, &tokenID, &set.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TokenSet{}, domain.ErrNotFound
		}
		return domain.TokenSet{}, fmt.Errorf("postgres: get token set %s: %w", id, err)
	}

	set.Kind = domain.TokenSetKind(kind)
	if tokenID != nil {
		set.TokenID = *tokenID
	}
	return set, nil
}

// ListTokens returns the member token ids of a list-kind set.
func (s *TokenSetStore) ListTokens(ctx context.Context, id string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_id FROM token_set_tokens
		WHERE token_set_id = $1 ORDER BY token_id`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: list token set tokens: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			return nil, fmt.Errorf("postgres: scan token set token: %w", err)
		}
		ids = append(ids, tid)
	}
	return ids, rows.Err()
}

// Compile-time interface check.
var _ domain.TokenSetStore = (*TokenSetStore)(nil)
