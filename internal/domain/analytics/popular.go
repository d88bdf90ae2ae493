// Package analytics derives item popularity rankings from the order log.
package analytics

import (
	"sort"

	"github.com/coquipos/backend/internal/domain/order"
)

// TopItems is the ranking cutoff returned to callers.
const TopItems = 10

// ItemCount is one entry of the popularity ranking.
type ItemCount struct {
	Name         string `json:"name"`
	TimesOrdered int    `json:"timesOrdered"`
}

// PopularItems ranks item names by total quantity ordered across all
// non-refunded orders, descending, returning at most limit entries. Ties keep
// first-encountered order. Names are compared by exact string equality.
func PopularItems(orders []order.Order, limit int) []ItemCount {
	counts := make([]ItemCount, 0)
	index := make(map[string]int)

	for _, o := range orders {
		if o.Refunded {
			continue
		}
		for _, it := range o.Items {
			i, ok := index[it.Name]
			if !ok {
				i = len(counts)
				index[it.Name] = i
				counts = append(counts, ItemCount{Name: it.Name})
			}
			counts[i].TimesOrdered += it.Quantity
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].TimesOrdered > counts[j].TimesOrdered
	})

	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
