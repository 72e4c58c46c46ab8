// Package derive holds the pure functions that compute status labels
// and money figures from stored numeric fields. Derived values are
// never written back to the database; every read recomputes them so a
// partial update can never leave a stale label behind.
package derive

import "github.com/shopspring/decimal"

// Stock status labels.
const (
	StatusHealthy  = "Healthy"
	StatusLowStock = "Low Stock"
	StatusCritical = "Critical"
)

// Product status labels.
const (
	ProductActive   = "Active"
	ProductLowStock = "Low Stock"
	ProductInactive = "Inactive"
)

// StockStatus classifies a stock level against its reorder point.
// Both boundaries are inclusive: Critical at stock <= point/2,
// Low Stock at stock <= point, Healthy above. The half point keeps
// fractional precision (point 15 -> critical at 7.5, so 7 is critical
// and 8 is low stock).
func StockStatus(stock, reorderPoint int) string {
	if reorderPoint <= 0 {
		return StatusHealthy
	}
	half := float64(reorderPoint) / 2
	switch {
	case float64(stock) <= half:
		return StatusCritical
	case stock <= reorderPoint:
		return StatusLowStock
	default:
		return StatusHealthy
	}
}

// ProductStatus maps the active flag and stock level to the label the
// product list shows.
func ProductStatus(active bool, stock, reorderPoint int) string {
	if !active {
		return ProductInactive
	}
	if reorderPoint > 0 && stock <= reorderPoint {
		return ProductLowStock
	}
	return ProductActive
}

// Margin returns the profit margin as a percentage of the selling
// price, rounded to one decimal place. Zero or negative prices yield
// a zero margin rather than dividing by zero.
func Margin(price, cost float64) float64 {
	if price <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(price)
	c := decimal.NewFromFloat(cost)
	m := p.Sub(c).Div(p).Mul(decimal.NewFromInt(100))
	f, _ := m.Round(1).Float64()
	return f
}

// StockValue returns price * qty rounded to cents.
func StockValue(price float64, qty int) float64 {
	v := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
	f, _ := v.Round(2).Float64()
	return f
}

// LineTotal returns unit price * qty rounded to cents.
func LineTotal(unitPrice float64, qty int) float64 {
	return StockValue(unitPrice, qty)
}

// Line is the minimal shape OrderTotal needs.
type Line struct {
	Qty       int
	UnitPrice float64
}

// OrderTotal sums line totals with decimal arithmetic so repeated
// float addition cannot drift.
func OrderTotal(lines []Line) float64 {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	f, _ := total.Round(2).Float64()
	return f
}
