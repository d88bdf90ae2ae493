package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coquipos/backend/internal/domain/order"
)

func orderWith(items ...order.Item) order.Order {
	return order.Order{Items: items}
}

func TestPopularItems_RanksByQuantity(t *testing.T) {
	orders := []order.Order{
		orderWith(order.Item{Name: "Mofongo", Quantity: 2}),
		orderWith(order.Item{Name: "Tostones", Quantity: 5}),
		orderWith(order.Item{Name: "Mofongo", Quantity: 1}),
	}

	ranked := PopularItems(orders, TopItems)
	require.Len(t, ranked, 2)
	assert.Equal(t, ItemCount{Name: "Tostones", TimesOrdered: 5}, ranked[0])
	assert.Equal(t, ItemCount{Name: "Mofongo", TimesOrdered: 3}, ranked[1])
}

func TestPopularItems_TiesKeepFirstEncounteredOrder(t *testing.T) {
	orders := []order.Order{
		orderWith(order.Item{Name: "Alcapurria", Quantity: 2}),
		orderWith(order.Item{Name: "Bacalaito", Quantity: 2}),
		orderWith(order.Item{Name: "Coquito", Quantity: 2}),
	}

	ranked := PopularItems(orders, TopItems)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Alcapurria", ranked[0].Name)
	assert.Equal(t, "Bacalaito", ranked[1].Name)
	assert.Equal(t, "Coquito", ranked[2].Name)
}

func TestPopularItems_ExcludesRefundedOrders(t *testing.T) {
	refunded := orderWith(order.Item{Name: "Mofongo", Quantity: 10})
	refunded.Refunded = true

	orders := []order.Order{
		refunded,
		orderWith(order.Item{Name: "Tostones", Quantity: 1}),
	}

	ranked := PopularItems(orders, TopItems)
	require.Len(t, ranked, 1)
	assert.Equal(t, "Tostones", ranked[0].Name)
}

func TestPopularItems_ExactNameEquality(t *testing.T) {
	orders := []order.Order{
		orderWith(order.Item{Name: "Mofongo", Quantity: 1}),
		orderWith(order.Item{Name: "mofongo", Quantity: 1}),
	}

	ranked := PopularItems(orders, TopItems)
	assert.Len(t, ranked, 2)
}

func TestPopularItems_TopTenCutoff(t *testing.T) {
	var orders []order.Order
	for i := 0; i < 12; i++ {
		orders = append(orders, orderWith(order.Item{
			Name:     fmt.Sprintf("item-%d", i),
			Quantity: 20 - i,
		}))
	}

	ranked := PopularItems(orders, TopItems)
	require.Len(t, ranked, TopItems)
	assert.Equal(t, "item-0", ranked[0].Name)
	assert.Equal(t, "item-9", ranked[9].Name)
}
