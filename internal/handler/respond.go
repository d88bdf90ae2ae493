package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/coquipos/backend/internal/domain/analytics"
	"github.com/coquipos/backend/internal/domain/ledger"
	"github.com/coquipos/backend/internal/domain/order"
)

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the uniform failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("error")
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// respondError maps engine errors to HTTP statuses: 404 for unknown orders,
// 403 for a bad manager credential, 500 for storage and unexpected failures.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Invalid manager password")
	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// encodeOrder writes an order in its wire shape. Refund metadata appears only
// once the order has been refunded.
func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(o.ID)

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	e.Float64(o.Subtotal.InexactFloat64())
	e.FieldStart("tax")
	e.Float64(o.Tax.InexactFloat64())
	e.FieldStart("tip")
	e.Float64(o.Tip.InexactFloat64())
	e.FieldStart("total")
	e.Float64(o.Total.InexactFloat64())

	e.FieldStart("paymentMethod")
	e.Str(o.PaymentMethod)
	e.FieldStart("timestamp")
	e.Str(o.Timestamp)
	e.FieldStart("userRole")
	e.Str(o.UserRole)

	e.FieldStart("refunded")
	e.Bool(o.Refunded)
	if o.Refunded {
		e.FieldStart("refundedAt")
		e.Str(o.RefundedAt)
		e.FieldStart("refundedBy")
		e.Str(o.RefundedBy)
	}
	e.ObjEnd()
}

func encodePopularItems(e *jx.Encoder, items []analytics.ItemCount) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("timesOrdered")
		e.Int(it.TimesOrdered)
		e.ObjEnd()
	}
	e.ArrEnd()
}
