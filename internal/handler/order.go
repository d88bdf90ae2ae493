package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/coquipos/backend/internal/domain/ledger"
	"github.com/coquipos/backend/internal/domain/order"
)

// decodeAmount reads a JSON number into a decimal, treating null as zero.
func decodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.Null {
		if err := d.Null(); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, nil
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

// decodeCreateOrder is deliberately lenient: absent numeric fields become
// zero, absent items an empty list, absent item quantity 1. Unknown fields
// are skipped.
func decodeCreateOrder(data []byte) (*order.Order, error) {
	o := &order.Order{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Tip:      decimal.Zero,
		Total:    decimal.Zero,
	}

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			o.ID, err = d.Str()
		case "items":
			o.Items = []order.Item{}
			return d.Arr(func(d *jx.Decoder) error {
				it := order.Item{Quantity: 1}
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "name":
						it.Name, err = d.Str()
					case "quantity":
						it.Quantity, err = d.Int()
					default:
						return d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "subtotal":
			o.Subtotal, err = decodeAmount(d)
		case "tax":
			o.Tax, err = decodeAmount(d)
		case "tip":
			o.Tip, err = decodeAmount(d)
		case "total":
			o.Total, err = decodeAmount(d)
		case "paymentMethod":
			o.PaymentMethod, err = d.Str()
		case "timestamp":
			o.Timestamp, err = d.Str()
		case "userRole":
			o.UserRole, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return o, nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	o, err := decodeCreateOrder(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.engine.CreateOrder(r.Context(), o)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("message")
	e.Str("Order created successfully")
	e.FieldStart("orderId")
	e.Str(id)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f := ledger.ListFilter{Date: r.URL.Query().Get("date")}
	// An unparsable limit is ignored, matching the lenient query contract.
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}

	orders, err := h.engine.ListOrders(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("count")
	e.Int(len(orders))
	e.FieldStart("orders")
	e.ArrStart()
	for _, o := range orders {
		encodeOrder(&e, o)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.engine.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("order")
	encodeOrder(&e, *o)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func decodeRefundRequest(data []byte) (managerPassword, userRole string, err error) {
	d := jx.DecodeBytes(data)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "managerPassword":
			managerPassword, err = d.Str()
		case "userRole":
			userRole, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return "", "", errors.Wrap(err, "decode refund request")
	}
	return managerPassword, userRole, nil
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	managerPassword, userRole, err := decodeRefundRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engine.RefundOrder(r.Context(), r.PathValue("id"), managerPassword, userRole)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("message")
	e.Str("Order refunded successfully")
	e.FieldStart("orderId")
	e.Str(res.OrderID)
	e.FieldStart("refundAmount")
	e.Float64(res.Amount.InexactFloat64())
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
