package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// monthWeeks is the fixed number of 7-day spans a month summary covers.
// Months longer than 28 days have tail days (29-31) that fall outside the
// partition and are not summed. Callers depend on this partition, so it is
// kept as-is rather than extended to a fifth partial week.
const monthWeeks = 4

// DaySales is one day's slice of a weekly breakdown.
type DaySales struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// WeekSummary aggregates one 7-day span of the current calendar month.
// Days is the daily breakdown; days with no bucket are omitted from it but
// still contribute zero to the totals.
type WeekSummary struct {
	Week      int             `json:"week"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Revenue   decimal.Decimal `json:"revenue"`
	Orders    int             `json:"orders"`
	Days      []DaySales      `json:"days"`
}

// MonthSummary aggregates the fixed four weekly spans of the current month.
type MonthSummary struct {
	Month        string          `json:"month"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TotalOrders  int             `json:"totalOrders"`
	Weeks        []WeekSummary   `json:"weeks"`
}

// WeekSummary partitions the calendar month containing now into 7-day spans
// (start = (week-1)*7+1, end = min(week*7, daysInMonth)) and sums the date
// buckets falling inside the requested span. Weeks below 1 are clamped to 1;
// a span starting past the end of the month yields an empty summary.
func (a *Aggregate) WeekSummary(now time.Time, week int) WeekSummary {
	if week < 1 {
		week = 1
	}

	year, month, _ := now.Date()
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, now.Location()).Day()

	start := (week-1)*7 + 1
	end := week * 7
	if end > daysInMonth {
		end = daysInMonth
	}

	ws := WeekSummary{
		Week:    week,
		Revenue: decimal.Zero,
	}
	if start <= daysInMonth {
		ws.StartDate = dateKey(year, month, start)
		ws.EndDate = dateKey(year, month, end)
	}

	for day := start; day <= end; day++ {
		b, ok := a.ByDate[dateKey(year, month, day)]
		if !ok {
			continue
		}
		ws.Revenue = ws.Revenue.Add(b.Revenue)
		ws.Orders += b.Orders
		ws.Days = append(ws.Days, DaySales{
			Date:    dateKey(year, month, day),
			Revenue: b.Revenue,
			Orders:  b.Orders,
		})
	}
	return ws
}

// MonthSummary sums exactly four weekly spans of the month containing now.
func (a *Aggregate) MonthSummary(now time.Time) MonthSummary {
	year, month, _ := now.Date()
	ms := MonthSummary{
		Month:        fmt.Sprintf("%04d-%02d", year, int(month)),
		TotalRevenue: decimal.Zero,
		Weeks:        make([]WeekSummary, 0, monthWeeks),
	}
	for week := 1; week <= monthWeeks; week++ {
		ws := a.WeekSummary(now, week)
		ms.TotalRevenue = ms.TotalRevenue.Add(ws.Revenue)
		ms.TotalOrders += ws.Orders
		ms.Weeks = append(ms.Weeks, ws)
	}
	return ms
}

// DateKey formats the bucket key used for the aggregate's per-date map.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func dateKey(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}
