package handler

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/coquipos/backend/internal/domain/sales"
)

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	agg, err := h.engine.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("stats")
	e.ObjStart()
	e.FieldStart("totalSales")
	e.Float64(agg.TotalSales.InexactFloat64())
	e.FieldStart("totalOrders")
	e.Int(agg.TotalOrders)
	e.FieldStart("salesByDate")
	e.ObjStart()
	for _, date := range sortedDates(agg.ByDate) {
		e.FieldStart(date)
		encodeBucket(&e, agg.ByDate[date])
	}
	e.ObjEnd()
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) todaySummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.GetTodaySummary(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("date")
	e.Str(s.Date)
	e.FieldStart("revenue")
	e.Float64(s.Revenue.InexactFloat64())
	e.FieldStart("orders")
	e.Int(s.Orders)
	e.FieldStart("popularItems")
	encodePopularItems(&e, s.PopularItems)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) weekSummary(w http.ResponseWriter, r *http.Request) {
	week := 1
	if raw := r.URL.Query().Get("week"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			week = n
		}
	}

	rep, err := h.engine.GetWeekSummary(r.Context(), week)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("weekData")
	encodeWeek(&e, rep.Week)
	e.FieldStart("popularItems")
	encodePopularItems(&e, rep.PopularItems)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) monthSummary(w http.ResponseWriter, r *http.Request) {
	rep, err := h.engine.GetMonthSummary(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("monthData")
	e.ObjStart()
	e.FieldStart("month")
	e.Str(rep.Month.Month)
	e.FieldStart("totalRevenue")
	e.Float64(rep.Month.TotalRevenue.InexactFloat64())
	e.FieldStart("totalOrders")
	e.Int(rep.Month.TotalOrders)
	e.FieldStart("weeks")
	e.ArrStart()
	for _, wk := range rep.Month.Weeks {
		encodeWeek(&e, wk)
	}
	e.ArrEnd()
	e.ObjEnd()
	e.FieldStart("popularItems")
	encodePopularItems(&e, rep.PopularItems)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) popularItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.GetPopularItems(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str("success")
	e.FieldStart("popularItems")
	encodePopularItems(&e, items)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeBucket(e *jx.Encoder, b sales.Bucket) {
	e.ObjStart()
	e.FieldStart("revenue")
	e.Float64(b.Revenue.InexactFloat64())
	e.FieldStart("orders")
	e.Int(b.Orders)
	e.ObjEnd()
}

func encodeWeek(e *jx.Encoder, wk sales.WeekSummary) {
	e.ObjStart()
	e.FieldStart("week")
	e.Int(wk.Week)
	e.FieldStart("startDate")
	e.Str(wk.StartDate)
	e.FieldStart("endDate")
	e.Str(wk.EndDate)
	e.FieldStart("revenue")
	e.Float64(wk.Revenue.InexactFloat64())
	e.FieldStart("orders")
	e.Int(wk.Orders)
	e.FieldStart("days")
	e.ArrStart()
	for _, d := range wk.Days {
		e.ObjStart()
		e.FieldStart("date")
		e.Str(d.Date)
		e.FieldStart("revenue")
		e.Float64(d.Revenue.InexactFloat64())
		e.FieldStart("orders")
		e.Int(d.Orders)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// sortedDates keeps the salesByDate object deterministic on the wire.
func sortedDates(byDate map[string]sales.Bucket) []string {
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
