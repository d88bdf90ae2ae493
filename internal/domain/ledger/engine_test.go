package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coquipos/backend/internal/domain/order"
	"github.com/coquipos/backend/internal/domain/sales"
)

// --- Mock implementations ---

type memOrderRepo struct {
	log       []order.Order
	appendErr error
}

func (m *memOrderRepo) Append(_ context.Context, o *order.Order) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.log = append(m.log, *o)
	return nil
}

func (m *memOrderRepo) List(_ context.Context) ([]order.Order, error) {
	return append([]order.Order{}, m.log...), nil
}

func (m *memOrderRepo) Find(_ context.Context, id string) (*order.Order, error) {
	for i := range m.log {
		if m.log[i].ID == id {
			o := m.log[i]
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrderRepo) MarkRefunded(_ context.Context, id, refundedBy, refundedAt string) (*order.Order, error) {
	for i := range m.log {
		if m.log[i].ID != id {
			continue
		}
		m.log[i].Refunded = true
		m.log[i].RefundedAt = refundedAt
		m.log[i].RefundedBy = refundedBy
		o := m.log[i]
		return &o, nil
	}
	return nil, order.ErrNotFound
}

type memSalesRepo struct {
	agg     *sales.Aggregate
	saveErr error
}

func (m *memSalesRepo) Load(_ context.Context) (*sales.Aggregate, error) {
	if m.agg == nil {
		return sales.NewAggregate(), nil
	}
	return m.agg.Clone(), nil
}

func (m *memSalesRepo) Save(_ context.Context, a *sales.Aggregate) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.agg = a.Clone()
	return nil
}

// --- Helpers ---

const testPassword = "admin123"

func fixedClock(date string) func() time.Time {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func newTestEngine(date string) (*Engine, *memOrderRepo, *memSalesRepo) {
	orders := &memOrderRepo{}
	aggregates := &memSalesRepo{}
	e := New(Config{
		ManagerPassword: testPassword,
		Now:             fixedClock(date),
	}, orders, aggregates)
	return e, orders, aggregates
}

func newTestOrder(id, timestamp string, total string, items ...order.Item) *order.Order {
	return &order.Order{
		ID:        id,
		Items:     items,
		Total:     decimal.RequireFromString(total),
		Timestamp: timestamp,
	}
}

// --- Tests ---

func TestCreateOrder_RecordsSale(t *testing.T) {
	e, _, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	id, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-03-01,10:00", "25",
		order.Item{Name: "Mofongo", Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, "X1", id)

	agg, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25", agg.TotalSales.String())
	assert.Equal(t, 1, agg.TotalOrders)
	assert.Equal(t, "25", agg.ByDate["2024-03-01"].Revenue.String())
	assert.Equal(t, 1, agg.ByDate["2024-03-01"].Orders)
}

func TestRefundOrder_ReversesSale(t *testing.T) {
	e, _, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-03-01,10:00", "25",
		order.Item{Name: "Mofongo", Quantity: 2}))
	require.NoError(t, err)

	res, err := e.RefundOrder(ctx, "X1", testPassword, "Manager")
	require.NoError(t, err)
	assert.Equal(t, "X1", res.OrderID)
	assert.Equal(t, "25", res.Amount.String())

	agg, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, agg.TotalSales.IsZero())
	assert.Equal(t, 0, agg.TotalOrders)
	assert.True(t, agg.ByDate["2024-03-01"].Revenue.IsZero())
	assert.Equal(t, 0, agg.ByDate["2024-03-01"].Orders)

	o, err := e.GetOrder(ctx, "X1")
	require.NoError(t, err)
	assert.True(t, o.Refunded)
	assert.Equal(t, "Manager", o.RefundedBy)
	assert.NotEmpty(t, o.RefundedAt)
}

func TestRefundOrder_Idempotent(t *testing.T) {
	e, _, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-03-01,10:00", "25"))
	require.NoError(t, err)

	_, err = e.RefundOrder(ctx, "X1", testPassword, "Manager")
	require.NoError(t, err)
	after, err := e.Stats(ctx)
	require.NoError(t, err)

	res, err := e.RefundOrder(ctx, "X1", testPassword, "Manager")
	require.NoError(t, err)
	assert.Equal(t, "25", res.Amount.String())

	again, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, after.TotalSales.String(), again.TotalSales.String())
	assert.Equal(t, after.TotalOrders, again.TotalOrders)
	assert.Equal(t, after.ByDate["2024-03-01"], again.ByDate["2024-03-01"])
}

func TestRefundOrder_BadPassword(t *testing.T) {
	e, _, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-03-01,10:00", "25"))
	require.NoError(t, err)

	_, err = e.RefundOrder(ctx, "X1", "wrong", "Manager")
	assert.ErrorIs(t, err, ErrUnauthorized)

	agg, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.TotalOrders)
}

func TestRefundOrder_UnknownID(t *testing.T) {
	e, _, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	// Unknown orders report NotFound regardless of credential correctness.
	_, err := e.RefundOrder(ctx, "missing", testPassword, "Manager")
	assert.ErrorIs(t, err, order.ErrNotFound)

	_, err = e.RefundOrder(ctx, "missing", "wrong", "Manager")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestRefundOrder_CrossDayKeepsOriginalBucketRule(t *testing.T) {
	// Created while the clock said 2024-03-01 but the order itself records
	// 2024-02-28: lifetime totals reverse, the per-date map is untouched.
	e, _, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-02-28,22:00", "25"))
	require.NoError(t, err)

	_, err = e.RefundOrder(ctx, "X1", testPassword, "Manager")
	require.NoError(t, err)

	agg, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, agg.TotalSales.IsZero())
	assert.Equal(t, 0, agg.TotalOrders)
	assert.Equal(t, "25", agg.ByDate["2024-03-01"].Revenue.String())
	assert.Equal(t, 1, agg.ByDate["2024-03-01"].Orders)
}

func TestRefundOrder_DefaultsRefundedBy(t *testing.T) {
	e, orders, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-03-01,10:00", "25"))
	require.NoError(t, err)

	_, err = e.RefundOrder(ctx, "X1", testPassword, "")
	require.NoError(t, err)
	assert.Equal(t, "Manager", orders.log[0].RefundedBy)
}

func TestListOrders(t *testing.T) {
	e, _, _ := newTestEngine("2024-01-15")
	ctx := context.Background()

	for _, o := range []*order.Order{
		newTestOrder("A", "2024-01-15,09:00", "10"),
		newTestOrder("B", "2024-01-15,12:00", "20"),
		newTestOrder("C", "2024-01-16,09:00", "30"),
	} {
		_, err := e.CreateOrder(ctx, o)
		require.NoError(t, err)
	}

	t.Run("no filter returns insertion order", func(t *testing.T) {
		got, err := e.ListOrders(ctx, ListFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "A", got[0].ID)
		assert.Equal(t, "C", got[2].ID)
	})

	t.Run("date filter is substring match on timestamp", func(t *testing.T) {
		got, err := e.ListOrders(ctx, ListFilter{Date: "2024-01-15"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].ID)
		assert.Equal(t, "B", got[1].ID)
	})

	t.Run("limit keeps the tail in insertion order", func(t *testing.T) {
		got, err := e.ListOrders(ctx, ListFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "B", got[0].ID)
		assert.Equal(t, "C", got[1].ID)
	})

	t.Run("filter and limit combine", func(t *testing.T) {
		got, err := e.ListOrders(ctx, ListFilter{Date: "2024-01-15", Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "B", got[0].ID)
	})
}

func TestGetOrder(t *testing.T) {
	e, _, _ := newTestEngine("2024-01-15")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-01-15,09:00", "10"))
	require.NoError(t, err)

	o, err := e.GetOrder(ctx, "X1")
	require.NoError(t, err)
	assert.Equal(t, "X1", o.ID)

	_, err = e.GetOrder(ctx, "nope")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestDuplicateIDs_FirstMatchWins(t *testing.T) {
	e, orders, _ := newTestEngine("2024-01-15")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("dup", "2024-01-15,09:00", "10"))
	require.NoError(t, err)
	_, err = e.CreateOrder(ctx, newTestOrder("dup", "2024-01-15,10:00", "99"))
	require.NoError(t, err)

	o, err := e.GetOrder(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "10", o.Total.String())

	res, err := e.RefundOrder(ctx, "dup", testPassword, "Manager")
	require.NoError(t, err)
	assert.Equal(t, "10", res.Amount.String())
	assert.True(t, orders.log[0].Refunded)
	assert.False(t, orders.log[1].Refunded)
}

func TestWarm_SeedsExistingIDs(t *testing.T) {
	orders := &memOrderRepo{log: []order.Order{
		{ID: "old", Total: decimal.RequireFromString("5"), Timestamp: "2024-01-01,08:00"},
	}}
	e := New(Config{ManagerPassword: testPassword, Now: fixedClock("2024-01-15")}, orders, &memSalesRepo{})

	ctx := context.Background()
	require.NoError(t, e.Warm(ctx))

	o, err := e.GetOrder(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "old", o.ID)
}

func TestAggregateConsistency(t *testing.T) {
	// After any sequence of creates and refunds, the aggregate must equal a
	// recomputation over the not-refunded part of the log.
	e, orders, _ := newTestEngine("2024-05-10")
	ctx := context.Background()

	totals := []string{"10", "20.5", "7", "3.25", "100"}
	for i, total := range totals {
		o := newTestOrder(string(rune('a'+i)), "2024-05-10,10:00", total)
		_, err := e.CreateOrder(ctx, o)
		require.NoError(t, err)
	}
	for _, id := range []string{"b", "d"} {
		_, err := e.RefundOrder(ctx, id, testPassword, "Manager")
		require.NoError(t, err)
	}

	wantSales := decimal.Zero
	wantOrders := 0
	for _, o := range orders.log {
		if o.Refunded {
			continue
		}
		wantSales = wantSales.Add(o.Total)
		wantOrders++
	}

	agg, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantSales.String(), agg.TotalSales.String())
	assert.Equal(t, wantOrders, agg.TotalOrders)
	assert.Equal(t, wantSales.String(), agg.ByDate["2024-05-10"].Revenue.String())
	assert.Equal(t, wantOrders, agg.ByDate["2024-05-10"].Orders)
}

func TestGetTodaySummary(t *testing.T) {
	e, _, _ := newTestEngine("2024-03-01")
	ctx := context.Background()

	t.Run("empty day is zero-valued", func(t *testing.T) {
		s, err := e.GetTodaySummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-01", s.Date)
		assert.True(t, s.Revenue.IsZero())
		assert.Equal(t, 0, s.Orders)
		assert.Empty(t, s.PopularItems)
	})

	_, err := e.CreateOrder(ctx, newTestOrder("X1", "2024-03-01,10:00", "25",
		order.Item{Name: "Mofongo", Quantity: 2}))
	require.NoError(t, err)

	t.Run("reflects today's sales", func(t *testing.T) {
		s, err := e.GetTodaySummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, "25", s.Revenue.String())
		assert.Equal(t, 1, s.Orders)
		require.Len(t, s.PopularItems, 1)
		assert.Equal(t, "Mofongo", s.PopularItems[0].Name)
		assert.Equal(t, 2, s.PopularItems[0].TimesOrdered)
	})
}

func TestGetWeekAndMonthSummary(t *testing.T) {
	e, _, _ := newTestEngine("2024-01-03")
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, newTestOrder("A", "2024-01-03,09:00", "10",
		order.Item{Name: "Mofongo", Quantity: 1}))
	require.NoError(t, err)
	_, err = e.CreateOrder(ctx, newTestOrder("B", "2024-01-03,11:00", "20",
		order.Item{Name: "Tostones", Quantity: 3}))
	require.NoError(t, err)

	week, err := e.GetWeekSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "30", week.Week.Revenue.String())
	assert.Equal(t, 2, week.Week.Orders)
	require.Len(t, week.PopularItems, 2)
	assert.Equal(t, "Tostones", week.PopularItems[0].Name)

	month, err := e.GetMonthSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01", month.Month.Month)
	assert.Equal(t, "30", month.Month.TotalRevenue.String())
	assert.Equal(t, 2, month.Month.TotalOrders)
}

func TestCreateOrder_SaveFailureSurfaces(t *testing.T) {
	orders := &memOrderRepo{}
	aggregates := &memSalesRepo{saveErr: assert.AnError}
	e := New(Config{ManagerPassword: testPassword, Now: fixedClock("2024-03-01")}, orders, aggregates)

	_, err := e.CreateOrder(context.Background(), newTestOrder("X1", "2024-03-01,10:00", "25"))
	assert.ErrorIs(t, err, assert.AnError)
}
