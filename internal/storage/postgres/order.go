package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coquipos/backend/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items are serialized to JSON for the JSONB column.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `order_id, items, subtotal, tax, tip, total,
	payment_method, ts, user_role, refunded, refunded_at, refunded_by`

// Append inserts the order at the end of the log.
func (r *OrderRepository) Append(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "encode items")
	}
	if o.Items == nil {
		items = []byte("[]")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, items, o.Subtotal, o.Tax, o.Tip, o.Total,
		o.PaymentMethod, o.Timestamp, o.UserRole, o.Refunded, o.RefundedAt, o.RefundedBy,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

// List returns the full log in insertion order.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	var log []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		log = append(log, *o)
	}
	return log, errors.Wrap(rows.Err(), "iterate orders")
}

// Find returns the first order with the given id in insertion order.
func (r *OrderRepository) Find(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE order_id = $1 ORDER BY seq LIMIT 1`, id)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	return o, err
}

// MarkRefunded flags the first order matching id.
func (r *OrderRepository) MarkRefunded(ctx context.Context, id, refundedBy, refundedAt string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET refunded = TRUE, refunded_at = $2, refunded_by = $3
		WHERE seq = (SELECT seq FROM orders WHERE order_id = $1 ORDER BY seq LIMIT 1)
		RETURNING `+orderColumns, id, refundedAt, refundedBy)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	return o, err
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o     order.Order
		items []byte
	)
	err := row.Scan(
		&o.ID, &items, &o.Subtotal, &o.Tax, &o.Tip, &o.Total,
		&o.PaymentMethod, &o.Timestamp, &o.UserRole, &o.Refunded, &o.RefundedAt, &o.RefundedBy,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, errors.Wrap(err, "decode items")
	}
	return &o, nil
}
