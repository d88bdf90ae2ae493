package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no order matches the requested id.
var ErrNotFound = errors.New("order not found")

// Item is a single line item on an order. Quantity is at least 1; callers
// that omit it get the default applied at the transport boundary.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is one recorded point-of-sale transaction. The id and timestamp are
// caller-supplied and opaque to the ledger: ids are not required to be unique
// (duplicates coexist in the log), and the timestamp is only expected to
// start with a date-like prefix used for bucketing.
type Order struct {
	ID            string          `json:"orderId"`
	Items         []Item          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Tip           decimal.Decimal `json:"tip"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	Timestamp     string          `json:"timestamp"`
	UserRole      string          `json:"userRole"`
	Refunded      bool            `json:"refunded"`
	RefundedAt    string          `json:"refundedAt,omitempty"`
	RefundedBy    string          `json:"refundedBy,omitempty"`
}

// BucketDate extracts the date bucket key recorded on the order itself: the
// first comma-delimited segment of its timestamp.
func (o *Order) BucketDate() string {
	date, _, _ := strings.Cut(o.Timestamp, ",")
	return date
}

// Repository is the append-only order log. Orders are never deleted; the only
// permitted mutation is flipping the refund flag. Every mutation persists the
// full store state before returning.
//
// When multiple orders share an id, Find and MarkRefunded act on the first
// match in insertion order.
type Repository interface {
	Append(ctx context.Context, o *Order) error
	List(ctx context.Context) ([]Order, error)
	Find(ctx context.Context, id string) (*Order, error)
	MarkRefunded(ctx context.Context, id, refundedBy, refundedAt string) (*Order, error)
}
