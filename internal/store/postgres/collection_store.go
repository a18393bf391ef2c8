package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floorline/floorline/internal/domain"
)

// CollectionStore implements domain.CollectionStore using PostgreSQL.
type CollectionStore struct {
	pool *pgxpool.Pool
}

// NewCollectionStore creates a new CollectionStore backed by the given pool.
func NewCollectionStore(pool *pgxpool.Pool) *CollectionStore {
	return &CollectionStore{pool: pool}
}

// GetByContract retrieves the registry row for an NFT contract.
func (s *CollectionStore) GetByContract(ctx context.Context, contract string) (domain.Collection, error) {
	var c domain.Collection
	var floor *string
	var royaltiesJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT contract, name, rank, floor_value, royalties, updated_at
		FROM collections WHERE contract = $1`, contract,
	).Scan(&c.Contract, &c.Name, &c.Rank, &floor, &royaltiesJSON, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Collection{}, domain.ErrNotFound
		}
		return domain.Collection{}, fmt.Errorf("postgres: get collection %s: %w", contract, err)
	}

	if floor != nil {
		c.FloorValue, _ = new(big.Int).SetString(*floor, 10)
	}
	if err := json.Unmarshal(royaltiesJSON, &c.Royalties); err != nil {
		return domain.Collection{}, fmt.Errorf("postgres: unmarshal royalties %s: %w", contract, err)
	}
	return c, nil
}

// Upsert writes a collection registry row, replacing any previous values.
func (s *CollectionStore) Upsert(ctx context.Context, c domain.Collection) error {
	royaltiesJSON, err := json.Marshal(c.Royalties)
	if err != nil {
		return fmt.Errorf("postgres: marshal royalties %s: %w", c.Contract, err)
	}

	var floor *string
	if c.FloorValue != nil {
		v := c.FloorValue.String()
		floor = &v
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO collections (contract, name, rank, floor_value, royalties, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (contract) DO UPDATE SET
			name = EXCLUDED.name,
			rank = EXCLUDED.rank,
			floor_value = EXCLUDED.floor_value,
			royalties = EXCLUDED.royalties,
			updated_at = NOW()`,
		c.Contract, c.Name, c.Rank, floor, royaltiesJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert collection %s: %w", c.Contract, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CollectionStore = (*CollectionStore)(nil)
