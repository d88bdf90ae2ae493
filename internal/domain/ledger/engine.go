// Package ledger is the command/query engine over the order log and the
// derived sales aggregate. Every mutating command runs under one exclusive
// lock covering the whole read-modify-persist sequence; queries share the
// lock in read mode so they observe a consistent snapshot.
package ledger

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/coquipos/backend/internal/domain/analytics"
	"github.com/coquipos/backend/internal/domain/order"
	"github.com/coquipos/backend/internal/domain/sales"
)

// ErrUnauthorized is returned when the manager credential does not match the
// configured shared secret.
var ErrUnauthorized = errors.New("invalid manager password")

// Sizing for the order-id membership filter. False positives only cost a log
// scan, so the estimate does not need to track the real order count closely.
const (
	bloomCapacity = 1 << 20
	bloomFPR      = 0.001
)

// Config holds non-dependency configuration for the engine.
type Config struct {
	// ManagerPassword is the shared secret required to authorize refunds.
	ManagerPassword string
	// Now supplies the engine's clock; nil means time.Now. Creation-time
	// bucketing and refund timestamps are derived from it.
	Now func() time.Time
}

// Engine owns the two stores and serializes access to them.
type Engine struct {
	mu         sync.RWMutex
	orders     order.Repository
	aggregates sales.Repository

	// seen tracks every appended order id. A negative membership test
	// short-circuits Find and Refund without scanning the log; positives
	// fall through to the store.
	seen *bloom.BloomFilter

	secret []byte
	now    func() time.Time
}

// New creates an Engine over the given stores.
func New(cfg Config, orders order.Repository, aggregates sales.Repository) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		orders:     orders,
		aggregates: aggregates,
		seen:       bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		secret:     []byte(cfg.ManagerPassword),
		now:        now,
	}
}

// Warm seeds the order-id filter from the persisted log. Call once at
// startup before serving requests.
func (e *Engine) Warm(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	all, err := e.orders.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list orders")
	}
	for i := range all {
		e.seen.AddString(all[i].ID)
	}
	return nil
}

// CreateOrder appends the order to the log and records the sale in the
// aggregate, bucketed under the current clock date. Malformed input is not
// rejected: zero amounts and empty item lists are stored as-is.
//
// The append and the aggregate update run under the same lock but persist as
// two writes; if the second fails the command reports a storage error and the
// aggregate row is repaired by the next successful wholesale write.
func (e *Engine) CreateOrder(ctx context.Context, o *order.Order) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.orders.Append(ctx, o); err != nil {
		return "", errors.Wrap(err, "append order")
	}
	e.seen.AddString(o.ID)

	agg, err := e.aggregates.Load(ctx)
	if err != nil {
		return "", errors.Wrap(err, "load aggregate")
	}
	agg.Record(o.Total, sales.DateKey(e.now()))
	if err := e.aggregates.Save(ctx, agg); err != nil {
		return "", errors.Wrap(err, "save aggregate")
	}
	return o.ID, nil
}

// ListFilter narrows and truncates ListOrders results.
type ListFilter struct {
	// Date keeps orders whose timestamp contains it as a substring. This is
	// deliberately not strict date equality.
	Date string
	// Limit > 0 keeps only the last Limit orders, in insertion order.
	Limit int
}

// ListOrders returns the log in insertion order, optionally filtered.
func (e *Engine) ListOrders(ctx context.Context, f ListFilter) ([]order.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	all, err := e.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	if f.Date != "" {
		filtered := make([]order.Order, 0, len(all))
		for _, o := range all {
			if strings.Contains(o.Timestamp, f.Date) {
				filtered = append(filtered, o)
			}
		}
		all = filtered
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[len(all)-f.Limit:]
	}
	return all, nil
}

// GetOrder finds the first order with the given id in insertion order.
func (e *Engine) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.seen.TestString(id) {
		return nil, order.ErrNotFound
	}
	return e.orders.Find(ctx, id)
}

// RefundResult reports a completed (or idempotently repeated) refund.
type RefundResult struct {
	OrderID string
	Amount  decimal.Decimal
}

// RefundOrder flags the first order matching id as refunded and reverses its
// contribution to the aggregate. An unknown id fails with order.ErrNotFound
// before the credential is considered; a bad credential fails with
// ErrUnauthorized. Refunding an already-refunded order is a no-op that
// reports success without touching the aggregate again.
//
// The lifetime totals always decrement; the date bucket decrements only when
// a bucket exists for the date recorded on the order itself.
func (e *Engine) RefundOrder(ctx context.Context, id, managerPassword, userRole string) (*RefundResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.seen.TestString(id) {
		return nil, order.ErrNotFound
	}
	existing, err := e.orders.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(managerPassword), e.secret) != 1 {
		return nil, ErrUnauthorized
	}

	if existing.Refunded {
		return &RefundResult{OrderID: id, Amount: existing.Total}, nil
	}

	refundedBy := userRole
	if refundedBy == "" {
		refundedBy = "Manager"
	}
	updated, err := e.orders.MarkRefunded(ctx, id, refundedBy, e.now().Format(time.RFC3339))
	if err != nil {
		return nil, errors.Wrap(err, "mark refunded")
	}

	agg, err := e.aggregates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aggregate")
	}
	agg.Reverse(updated.Total, updated.BucketDate())
	if err := e.aggregates.Save(ctx, agg); err != nil {
		return nil, errors.Wrap(err, "save aggregate")
	}

	return &RefundResult{OrderID: id, Amount: updated.Total}, nil
}

// Stats returns a snapshot of the aggregate.
func (e *Engine) Stats(ctx context.Context) (*sales.Aggregate, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agg, err := e.aggregates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aggregate")
	}
	return agg.Clone(), nil
}

// TodaySummary is the current clock date's bucket plus the popularity ranking.
type TodaySummary struct {
	Date         string
	Revenue      decimal.Decimal
	Orders       int
	PopularItems []analytics.ItemCount
}

// GetTodaySummary reports today's bucket, zero-valued when nothing sold yet.
func (e *Engine) GetTodaySummary(ctx context.Context) (*TodaySummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agg, err := e.aggregates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aggregate")
	}
	ranked, err := e.rankItems(ctx)
	if err != nil {
		return nil, err
	}

	today := sales.DateKey(e.now())
	b := agg.DateSummary(today)
	return &TodaySummary{
		Date:         today,
		Revenue:      b.Revenue,
		Orders:       b.Orders,
		PopularItems: ranked,
	}, nil
}

// WeekReport pairs a weekly span summary with the popularity ranking.
type WeekReport struct {
	Week         sales.WeekSummary
	PopularItems []analytics.ItemCount
}

// GetWeekSummary sums the requested 7-day span of the current month.
func (e *Engine) GetWeekSummary(ctx context.Context, week int) (*WeekReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agg, err := e.aggregates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aggregate")
	}
	ranked, err := e.rankItems(ctx)
	if err != nil {
		return nil, err
	}
	return &WeekReport{
		Week:         agg.WeekSummary(e.now(), week),
		PopularItems: ranked,
	}, nil
}

// MonthReport pairs the fixed four-week month summary with the ranking.
type MonthReport struct {
	Month        sales.MonthSummary
	PopularItems []analytics.ItemCount
}

// GetMonthSummary sums the four fixed weekly spans of the current month.
func (e *Engine) GetMonthSummary(ctx context.Context) (*MonthReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agg, err := e.aggregates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aggregate")
	}
	ranked, err := e.rankItems(ctx)
	if err != nil {
		return nil, err
	}
	return &MonthReport{
		Month:        agg.MonthSummary(e.now()),
		PopularItems: ranked,
	}, nil
}

// GetPopularItems ranks items across all non-refunded orders.
func (e *Engine) GetPopularItems(ctx context.Context) ([]analytics.ItemCount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rankItems(ctx)
}

// rankItems must be called with at least the read lock held.
func (e *Engine) rankItems(ctx context.Context) ([]analytics.ItemCount, error) {
	all, err := e.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return analytics.PopularItems(all, analytics.TopItems), nil
}
