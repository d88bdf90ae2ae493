package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coquipos/backend/internal/domain/sales"
)

var _ sales.Repository = (*SalesRepository)(nil)

// SalesRepository implements sales.Repository backed by PostgreSQL. The
// per-date buckets live in a JSONB column; the whole row is rewritten on
// every Save, matching the wholesale-write contract.
type SalesRepository struct {
	pool *pgxpool.Pool
}

// NewSalesRepository returns a SalesRepository that uses the given pool.
func NewSalesRepository(pool *pgxpool.Pool) *SalesRepository {
	return &SalesRepository{pool: pool}
}

// Load reads the aggregate row, returning a zero-valued aggregate when the
// row does not exist yet.
func (r *SalesRepository) Load(ctx context.Context) (*sales.Aggregate, error) {
	agg := sales.NewAggregate()

	var byDate []byte
	err := r.pool.QueryRow(ctx, `
		SELECT total_sales, total_orders, sales_by_date
		FROM sales_aggregate WHERE id = 1`).
		Scan(&agg.TotalSales, &agg.TotalOrders, &byDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return agg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query aggregate")
	}

	if err := json.Unmarshal(byDate, &agg.ByDate); err != nil {
		return nil, errors.Wrap(err, "decode date buckets")
	}
	if agg.ByDate == nil {
		agg.ByDate = make(map[string]sales.Bucket)
	}
	return agg, nil
}

// Save upserts the single aggregate row.
func (r *SalesRepository) Save(ctx context.Context, a *sales.Aggregate) error {
	byDate, err := json.Marshal(a.ByDate)
	if err != nil {
		return errors.Wrap(err, "encode date buckets")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sales_aggregate (id, total_sales, total_orders, sales_by_date)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET total_sales = EXCLUDED.total_sales,
		    total_orders = EXCLUDED.total_orders,
		    sales_by_date = EXCLUDED.sales_by_date`,
		a.TotalSales, a.TotalOrders, byDate,
	)
	return errors.Wrap(err, "upsert aggregate")
}
