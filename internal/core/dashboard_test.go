package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeProducts(t *testing.T) {
	products := []Product{
		{Name: "Tapa", Category: "Plásticos", Stock: 3, Location: "P1-E1-N1"},
		{Name: "Frasco", Category: "Vidrio", Stock: 9, Location: "P2-E1-N1"},
		{Name: "Balde", Category: "Plásticos", Stock: 0, Location: "bad"},
		{Name: "Caja", Category: "Cartón", Stock: 40, Location: "P1-E1-N1"},
	}

	stats := SummarizeProducts(products)

	assert.Equal(t, 4, stats.TotalProducts)
	assert.Equal(t, 52, stats.TotalStock)
	assert.Equal(t, 3, stats.LowStockCount)
	require.Len(t, stats.LowStock, 2)
	assert.Equal(t, "Plásticos", stats.LowStock[0].Category)
	assert.Equal(t, []string{"Balde", "Tapa"}, []string{stats.LowStock[0].Products[0].Name, stats.LowStock[0].Products[1].Name})
	assert.Equal(t, "Vidrio", stats.LowStock[1].Category)

	assert.Equal(t, 36, stats.Warehouse.TotalSlots)
	assert.Equal(t, 2, stats.Warehouse.OccupiedSlots)
	assert.Equal(t, 1, stats.Warehouse.Unplaced)
}

func TestSummarizeProducts_Empty(t *testing.T) {
	stats := SummarizeProducts(nil)
	assert.Zero(t, stats.TotalProducts)
	assert.NotNil(t, stats.LowStock)
	assert.Empty(t, stats.LowStock)
}
