package core

import (
	"context"
	"sort"
)

// LowStockThreshold marks products with fewer units as low on stock.
const LowStockThreshold = 10

// CategoryLowStock groups low-stock products of one category.
type CategoryLowStock struct {
	Category string    `json:"category"`
	Products []Product `json:"products"`
}

// DashboardStats is the landing-page summary.
type DashboardStats struct {
	TotalProducts   int                `json:"totalProducts"`
	TotalStock      int                `json:"totalStock"`
	TotalCategories int                `json:"totalCategories"`
	LowStockCount   int                `json:"lowStockCount"`
	LowStock        []CategoryLowStock `json:"lowStock"`
	Warehouse       GridSummary        `json:"warehouse"`
}

// Dashboard computes totals and low-stock groups.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	cats, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	stats := SummarizeProducts(products)
	stats.TotalCategories = len(cats)
	return stats, nil
}

// SummarizeProducts computes dashboard figures from a product list.
// Groups are ordered by category and products within a group by stock.
func SummarizeProducts(products []Product) *DashboardStats {
	stats := &DashboardStats{TotalProducts: len(products), LowStock: []CategoryLowStock{}}

	groups := make(map[string][]Product)
	for _, p := range products {
		stats.TotalStock += p.Stock
		if p.Stock < LowStockThreshold {
			stats.LowStockCount++
			groups[p.Category] = append(groups[p.Category], p)
		}
	}

	for cat, ps := range groups {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Stock < ps[j].Stock })
		stats.LowStock = append(stats.LowStock, CategoryLowStock{Category: cat, Products: ps})
	}
	sort.Slice(stats.LowStock, func(i, j int) bool { return stats.LowStock[i].Category < stats.LowStock[j].Category })

	stats.Warehouse = BuildGrid(products).Summary
	return stats
}
