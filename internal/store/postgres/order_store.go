package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floorline/floorline/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// orderInsertCols lists the columns written by InsertBatch, in order.
const orderInsertCols = `id, protocol, side, fillability, approval,
	token_set_id, maker, taker,
	price, value, normalized_value,
	currency, currency_price, currency_value,
	fee_bps, fee_breakdown, missing_royalties,
	nonce, source_id, valid_from, valid_to, raw_data`

const orderColsPerRow = 22

// InsertBatch inserts all orders in a single multi-row statement. Rows whose
// id already exists are silently skipped via ON CONFLICT DO NOTHING; the
// returned slice contains only the ids that were newly inserted. Passing an
// empty slice is a no-op.
func (s *OrderStore) InsertBatch(ctx context.Context, orders []domain.Order) ([]string, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(orders))
	args := make([]any, 0, len(orders)*orderColsPerRow)

	for i, o := range orders {
		feeJSON, err := json.Marshal(o.FeeBreakdown)
		if err != nil {
			return nil, fmt.Errorf("postgres: marshal fee breakdown %s: %w", o.ID, err)
		}
		royaltyJSON, err := json.Marshal(o.MissingRoyalties)
		if err != nil {
			return nil, fmt.Errorf("postgres: marshal missing royalties %s: %w", o.ID, err)
		}

		base := i * orderColsPerRow
		nums := make([]string, orderColsPerRow)
		for j := range nums {
			nums[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(nums, ", ")+")")

		args = append(args,
			o.ID, string(o.Protocol), string(o.Side),
			string(o.Fillability), string(o.Approval),
			o.TokenSetID, o.Maker, o.Taker,
			bigStr(o.Price), bigStr(o.Value), bigStr(o.NormalizedValue),
			o.Currency, bigStr(o.CurrencyPrice), bigStr(o.CurrencyValue),
			o.FeeBps, feeJSON, royaltyJSON,
			o.Nonce, o.SourceID, o.ValidFrom, o.ValidTo, rawJSON(o.RawData),
		)
	}

	query := `INSERT INTO orders (` + orderInsertCols + `) VALUES ` +
		strings.Join(placeholders, ", ") +
		` ON CONFLICT (id) DO NOTHING RETURNING id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert order batch: %w", err)
	}
	defer rows.Close()

	var inserted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan inserted order id: %w", err)
		}
		inserted = append(inserted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: insert order batch rows: %w", err)
	}
	return inserted, nil
}

// Exists reports whether an order with the given id is already stored.
func (s *OrderStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: order exists %s: %w", id, err)
	}
	return exists, nil
}

const orderSelectCols = orderInsertCols + `, created_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Order, error) {
	var o domain.Order
	var protocol, side, fillability, approval string
	var price, value, normalized, currencyPrice, currencyValue string
	var feeJSON, royaltyJSON, rawData []byte

	err := scanner.Scan(
		&o.ID, &protocol, &side, &fillability, &approval,
		&o.TokenSetID, &o.Maker, &o.Taker,
		&price, &value, &normalized,
		&o.Currency, &currencyPrice, &currencyValue,
		&o.FeeBps, &feeJSON, &royaltyJSON,
		&o.Nonce, &o.SourceID, &o.ValidFrom, &o.ValidTo, &rawData,
		&o.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Protocol = domain.ProtocolKind(protocol)
	o.Side = domain.OrderSide(side)
	o.Fillability = domain.FillabilityStatus(fillability)
	o.Approval = domain.ApprovalStatus(approval)
	o.RawData = rawData

	o.Price = parseBig(price)
	o.Value = parseBig(value)
	o.NormalizedValue = parseBig(normalized)
	o.CurrencyPrice = parseBig(currencyPrice)
	o.CurrencyValue = parseBig(currencyValue)

	if err := json.Unmarshal(feeJSON, &o.FeeBreakdown); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal fee breakdown: %w", err)
	}
	if err := json.Unmarshal(royaltyJSON, &o.MissingRoyalties); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal missing royalties: %w", err)
	}

	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order by its order hash.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListByMaker returns orders created by the given maker with pagination.
func (s *OrderStore) ListByMaker(ctx context.Context, maker string, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE maker = $1`
	args := []any{maker}
	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by maker: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders by maker: %w", err)
	}
	return orders, nil
}

// ListByTokenSet returns orders scoped to the given token set with pagination.
func (s *OrderStore) ListByTokenSet(ctx context.Context, tokenSetID string, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE token_set_id = $1`
	args := []any{tokenSetID}
	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by token set: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders by token set: %w", err)
	}
	return orders, nil
}

// applyListOpts appends time filters, ordering and pagination to a query that
// already holds one positional argument.
func applyListOpts(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// rawJSON coerces an absent payload to an empty JSON object so it satisfies
// the NOT NULL jsonb column.
func rawJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

func bigStr(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func parseBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
