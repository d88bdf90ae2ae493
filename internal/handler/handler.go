// Package handler is the HTTP adapter over the ledger engine. It parses and
// validates requests, fills in input defaults, and serializes engine results
// into the uniform status envelopes.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/coquipos/backend/internal/domain/ledger"
)

// Version reported by the home endpoint.
const Version = "1.0.0"

// Handler holds the engine and implements all REST endpoints.
type Handler struct {
	engine *ledger.Engine
}

// New constructs a Handler over the given engine.
func New(engine *ledger.Engine) *Handler {
	return &Handler{engine: engine}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.home)

	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/refund", h.refundOrder)

	mux.HandleFunc("GET /api/sales/stats", h.stats)
	mux.HandleFunc("GET /api/sales/today", h.todaySummary)
	mux.HandleFunc("GET /api/sales/week", h.weekSummary)
	mux.HandleFunc("GET /api/sales/month", h.monthSummary)

	mux.HandleFunc("GET /api/analytics/popular-items", h.popularItems)
}

func (h *Handler) home(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("online")
	e.FieldStart("message")
	e.Str("Coqui POS API is running")
	e.FieldStart("version")
	e.Str(Version)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
