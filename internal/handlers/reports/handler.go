// Package reports implements the read-only reporting endpoints. Every
// report is computed from the live tables and can be downloaded as
// CSV or Excel with ?format=.
package reports

import (
	"database/sql"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"invdash/internal/export"
	"invdash/internal/response"
	"invdash/internal/websocket"
)

// Handler holds dependencies for report handlers.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

// CategoryValuation is one row of the inventory report.
type CategoryValuation struct {
	Category   string  `json:"category"`
	Products   int     `json:"products"`
	Units      int     `json:"units"`
	StockValue float64 `json:"stock_value"`
	CostValue  float64 `json:"cost_value"`
}

// Inventory handles GET /api/v1/reports/inventory: stock and cost
// valuation grouped by category.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	// Aggregate in Go so stock values are summed with decimal
	// arithmetic rather than SQL floats.
	byCat := map[string]*CategoryValuation{}
	var order []string
	type sums struct{ stock, cost decimal.Decimal }
	totals := map[string]*sums{}

	rows, err := h.DB.Query(`SELECT COALESCE(c.name,'Uncategorised'), p.price, p.cost, p.stock
		FROM products p LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.active = 1
		ORDER BY c.name`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var price, cost float64
		var stock int
		if err := rows.Scan(&cat, &price, &cost, &stock); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		v, ok := byCat[cat]
		if !ok {
			v = &CategoryValuation{Category: cat}
			byCat[cat] = v
			totals[cat] = &sums{}
			order = append(order, cat)
		}
		v.Products++
		v.Units += stock
		qty := decimal.NewFromInt(int64(stock))
		totals[cat].stock = totals[cat].stock.Add(decimal.NewFromFloat(price).Mul(qty))
		totals[cat].cost = totals[cat].cost.Add(decimal.NewFromFloat(cost).Mul(qty))
	}

	report := []CategoryValuation{}
	for _, cat := range order {
		v := byCat[cat]
		v.StockValue, _ = totals[cat].stock.Round(2).Float64()
		v.CostValue, _ = totals[cat].cost.Round(2).Float64()
		report = append(report, *v)
	}

	if wantsDownload(r) {
		headers := []string{"Category", "Products", "Units", "Stock Value", "Cost Value"}
		var data [][]string
		for _, v := range report {
			data = append(data, []string{v.Category, strconv.Itoa(v.Products), strconv.Itoa(v.Units),
				fmt.Sprintf("%.2f", v.StockValue), fmt.Sprintf("%.2f", v.CostValue)})
		}
		export.Tabular(w, r, "Inventory Report", headers, data)
		return
	}
	response.JSON(w, report)
}

// MonthlySales is one row of the sales report.
type MonthlySales struct {
	Month  string  `json:"month"`
	Orders int     `json:"orders"`
	Units  int     `json:"units"`
	Value  float64 `json:"value"`
}

// Sales handles GET /api/v1/reports/sales: sales order volume by
// month over the last 12 months. Cancelled orders are excluded.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(-1, 0, 0).Format("2006-01-02")
	rows, err := h.DB.Query(`SELECT substr(o.date, 1, 7), COUNT(DISTINCT o.id),
		COALESCE(SUM(l.qty),0), COALESCE(SUM(l.qty * l.unit_price),0)
		FROM orders o JOIN order_lines l ON l.order_id = o.id
		WHERE o.type='Sales' AND o.status <> 'Cancelled' AND o.date >= ?
		GROUP BY substr(o.date, 1, 7)
		ORDER BY substr(o.date, 1, 7)`, since)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	report := []MonthlySales{}
	for rows.Next() {
		var m MonthlySales
		var value float64
		if err := rows.Scan(&m.Month, &m.Orders, &m.Units, &value); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		m.Value = math.Round(value*100) / 100
		report = append(report, m)
	}

	if wantsDownload(r) {
		headers := []string{"Month", "Orders", "Units", "Value"}
		var data [][]string
		for _, m := range report {
			data = append(data, []string{m.Month, strconv.Itoa(m.Orders), strconv.Itoa(m.Units), fmt.Sprintf("%.2f", m.Value)})
		}
		export.Tabular(w, r, "Sales Report", headers, data)
		return
	}
	response.JSON(w, report)
}

// TopProduct is one row of the top products report.
type TopProduct struct {
	ProductID int     `json:"product_id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	UnitsSold int     `json:"units_sold"`
	Revenue   float64 `json:"revenue"`
}

// TopProducts handles GET /api/v1/reports/top-products, ranked by
// revenue from non-cancelled sales orders. ?limit= caps the list,
// default 10.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	rows, err := h.DB.Query(`SELECT p.id, p.sku, p.name, COALESCE(SUM(l.qty),0), COALESCE(SUM(l.qty * l.unit_price),0) AS revenue
		FROM order_lines l
		JOIN orders o ON l.order_id = o.id
		JOIN products p ON l.product_id = p.id
		WHERE o.type='Sales' AND o.status <> 'Cancelled'
		GROUP BY p.id, p.sku, p.name
		ORDER BY revenue DESC
		LIMIT ?`, limit)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	report := []TopProduct{}
	for rows.Next() {
		var t TopProduct
		var revenue float64
		if err := rows.Scan(&t.ProductID, &t.SKU, &t.Name, &t.UnitsSold, &revenue); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		t.Revenue = math.Round(revenue*100) / 100
		report = append(report, t)
	}

	if wantsDownload(r) {
		headers := []string{"SKU", "Name", "Units Sold", "Revenue"}
		var data [][]string
		for _, t := range report {
			data = append(data, []string{t.SKU, t.Name, strconv.Itoa(t.UnitsSold), fmt.Sprintf("%.2f", t.Revenue)})
		}
		export.Tabular(w, r, "Top Products", headers, data)
		return
	}
	response.JSON(w, report)
}

// CategoryPerformance is one row of the category report.
type CategoryPerformance struct {
	Category  string  `json:"category"`
	Revenue   float64 `json:"revenue"`
	Prior     float64 `json:"prior_revenue"`
	GrowthPct float64 `json:"growth_pct"`
}

// Categories handles GET /api/v1/reports/category-performance,
// comparing the last 30 days of sales revenue per category against
// the 30 days before.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	mid := now.AddDate(0, 0, -30).Format("2006-01-02")
	start := now.AddDate(0, 0, -60).Format("2006-01-02")

	rows, err := h.DB.Query(`SELECT COALESCE(c.name,'Uncategorised'),
		COALESCE(SUM(CASE WHEN o.date >= ? THEN l.qty * l.unit_price ELSE 0 END),0),
		COALESCE(SUM(CASE WHEN o.date >= ? AND o.date < ? THEN l.qty * l.unit_price ELSE 0 END),0)
		FROM order_lines l
		JOIN orders o ON l.order_id = o.id
		JOIN products p ON l.product_id = p.id
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE o.type='Sales' AND o.status <> 'Cancelled' AND o.date >= ?
		GROUP BY c.name
		ORDER BY c.name`, mid, start, mid, start)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	report := []CategoryPerformance{}
	for rows.Next() {
		var cp CategoryPerformance
		if err := rows.Scan(&cp.Category, &cp.Revenue, &cp.Prior); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		cp.Revenue = math.Round(cp.Revenue*100) / 100
		cp.Prior = math.Round(cp.Prior*100) / 100
		if cp.Prior > 0 {
			cp.GrowthPct = math.Round((cp.Revenue-cp.Prior)/cp.Prior*1000) / 10
		} else if cp.Revenue > 0 {
			cp.GrowthPct = 100
		}
		report = append(report, cp)
	}

	if wantsDownload(r) {
		headers := []string{"Category", "Revenue (30d)", "Prior (30d)", "Growth %"}
		var data [][]string
		for _, cp := range report {
			data = append(data, []string{cp.Category, fmt.Sprintf("%.2f", cp.Revenue),
				fmt.Sprintf("%.2f", cp.Prior), fmt.Sprintf("%.1f", cp.GrowthPct)})
		}
		export.Tabular(w, r, "Category Performance", headers, data)
		return
	}
	response.JSON(w, report)
}

// SupplierRow is one row of the supplier report.
type SupplierRow struct {
	Supplier    string  `json:"supplier"`
	Orders      int     `json:"orders"`
	TotalValue  float64 `json:"total_value"`
	Delivered   int     `json:"delivered"`
	DeliveredPc float64 `json:"delivered_pct"`
}

// Suppliers handles GET /api/v1/reports/supplier-performance:
// purchase order volume and completion rate per supplier.
func (h *Handler) Suppliers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT o.supplier, COUNT(DISTINCT o.id),
		COALESCE(SUM(l.qty * l.unit_price),0),
		COUNT(DISTINCT CASE WHEN o.status='Delivered' THEN o.id END)
		FROM orders o LEFT JOIN order_lines l ON l.order_id = o.id
		WHERE o.type='Purchase'
		GROUP BY o.supplier
		ORDER BY o.supplier`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	report := []SupplierRow{}
	for rows.Next() {
		var sr SupplierRow
		if err := rows.Scan(&sr.Supplier, &sr.Orders, &sr.TotalValue, &sr.Delivered); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		sr.TotalValue = math.Round(sr.TotalValue*100) / 100
		if sr.Orders > 0 {
			sr.DeliveredPc = math.Round(float64(sr.Delivered)/float64(sr.Orders)*1000) / 10
		}
		report = append(report, sr)
	}

	if wantsDownload(r) {
		headers := []string{"Supplier", "Orders", "Total Value", "Delivered", "Delivered %"}
		var data [][]string
		for _, sr := range report {
			data = append(data, []string{sr.Supplier, strconv.Itoa(sr.Orders), fmt.Sprintf("%.2f", sr.TotalValue),
				strconv.Itoa(sr.Delivered), fmt.Sprintf("%.1f", sr.DeliveredPc)})
		}
		export.Tabular(w, r, "Supplier Performance", headers, data)
		return
	}
	response.JSON(w, report)
}

func wantsDownload(r *http.Request) bool {
	f := r.URL.Query().Get("format")
	return f == "csv" || f == "xlsx"
}
