// Package sales maintains the derived sales aggregate: lifetime totals plus
// per-date buckets, kept in lockstep with the order log by the ledger engine.
package sales

import (
	"context"

	"github.com/shopspring/decimal"
)

// Bucket is the per-calendar-date slice of the aggregate.
type Bucket struct {
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// Aggregate is the single derived summary row. At any point TotalSales and
// TotalOrders equal the sum/count over all orders currently not refunded, and
// ByDate[d] equals the sum/count over not-refunded orders bucketed under d.
type Aggregate struct {
	TotalSales  decimal.Decimal   `json:"totalSales"`
	TotalOrders int               `json:"totalOrders"`
	ByDate      map[string]Bucket `json:"salesByDate"`
}

// NewAggregate returns a zero-valued aggregate with an initialized date map.
func NewAggregate() *Aggregate {
	return &Aggregate{
		TotalSales: decimal.Zero,
		ByDate:     make(map[string]Bucket),
	}
}

// Record adds one sale to the lifetime totals and to the bucket for date,
// creating the bucket when absent. The date is the clock date at creation
// time, not the one recorded on the order.
func (a *Aggregate) Record(total decimal.Decimal, date string) {
	a.TotalSales = a.TotalSales.Add(total)
	a.TotalOrders++

	b := a.ByDate[date]
	b.Revenue = b.Revenue.Add(total)
	b.Orders++
	a.ByDate[date] = b
}

// Reverse removes one sale from the aggregate. Lifetime totals decrement
// unconditionally; the date bucket decrements only when a bucket already
// exists for date. A refund whose order was bucketed under a date never seen
// by Record leaves the per-date map untouched while the lifetime totals still
// shrink. Callers key date by the order's own recorded date, so a refund on a
// later calendar day still targets the original bucket.
func (a *Aggregate) Reverse(total decimal.Decimal, date string) {
	a.TotalSales = a.TotalSales.Sub(total)
	a.TotalOrders--

	b, ok := a.ByDate[date]
	if !ok {
		return
	}
	b.Revenue = b.Revenue.Sub(total)
	b.Orders--
	a.ByDate[date] = b
}

// DateSummary returns the bucket for date, or a zero-valued bucket when no
// sales were recorded under it.
func (a *Aggregate) DateSummary(date string) Bucket {
	if b, ok := a.ByDate[date]; ok {
		return b
	}
	return Bucket{Revenue: decimal.Zero}
}

// Clone returns a deep copy safe to hand out while the original keeps
// mutating under the engine's lock.
func (a *Aggregate) Clone() *Aggregate {
	c := &Aggregate{
		TotalSales:  a.TotalSales,
		TotalOrders: a.TotalOrders,
		ByDate:      make(map[string]Bucket, len(a.ByDate)),
	}
	for d, b := range a.ByDate {
		c.ByDate[d] = b
	}
	return c
}

// Repository persists the single aggregate row. Load returns a zero-valued
// aggregate when none has been stored yet; Save writes the row wholesale.
type Repository interface {
	Load(ctx context.Context) (*Aggregate, error)
	Save(ctx context.Context, a *Aggregate) error
}
