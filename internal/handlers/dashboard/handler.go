// Package dashboard serves the landing page aggregates: headline
// KPIs, stock alerts and the recent activity feed.
package dashboard

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"invdash/internal/derive"
	"invdash/internal/models"
	"invdash/internal/response"
	"invdash/internal/websocket"
)

// Handler holds dependencies for dashboard handlers.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

// KPIs is the headline numbers block.
type KPIs struct {
	TotalProducts  int     `json:"total_products"`
	TotalValue     float64 `json:"total_value"`
	LowStockCount  int     `json:"low_stock_count"`
	CriticalCount  int     `json:"critical_count"`
	PendingOrders  int     `json:"pending_orders"`
	OpenPOValue    float64 `json:"open_po_value"`
	SalesThisMonth float64 `json:"sales_this_month"`
}

// Summary handles GET /api/v1/dashboard.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var k KPIs

	rows, err := h.DB.Query("SELECT price, stock, reorder_point FROM products WHERE active=1")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	total := decimal.Zero
	for rows.Next() {
		var price float64
		var stock, reorderPoint int
		if err := rows.Scan(&price, &stock, &reorderPoint); err != nil {
			rows.Close()
			response.Err(w, err.Error(), 500)
			return
		}
		k.TotalProducts++
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(stock))))
		switch derive.StockStatus(stock, reorderPoint) {
		case derive.StatusCritical:
			k.CriticalCount++
			k.LowStockCount++
		case derive.StatusLowStock:
			k.LowStockCount++
		}
	}
	rows.Close()
	k.TotalValue, _ = total.Round(2).Float64()

	if err := h.DB.QueryRow("SELECT COUNT(*) FROM orders WHERE status IN ('Pending','Processing')").Scan(&k.PendingOrders); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	err = h.DB.QueryRow(`SELECT COALESCE(SUM(l.qty * l.unit_price),0) FROM orders o
		JOIN order_lines l ON l.order_id = o.id
		WHERE o.type='Purchase' AND o.status IN ('Pending','Processing','Shipped')`).Scan(&k.OpenPOValue)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	monthStart := time.Now().Format("2006-01") + "-01"
	err = h.DB.QueryRow(`SELECT COALESCE(SUM(l.qty * l.unit_price),0) FROM orders o
		JOIN order_lines l ON l.order_id = o.id
		WHERE o.type='Sales' AND o.status <> 'Cancelled' AND o.date >= ?`, monthStart).Scan(&k.SalesThisMonth)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	response.JSON(w, k)
}

// Alert is one low or critical stock warning.
type Alert struct {
	ProductID    int    `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Stock        int    `json:"stock"`
	ReorderPoint int    `json:"reorder_point"`
	Status       string `json:"status"`
}

// Alerts handles GET /api/v1/dashboard/alerts. Critical items sort
// first, then by how far below the reorder point the stock sits.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`SELECT id, sku, name, stock, reorder_point FROM products
		WHERE active=1 AND reorder_point > 0 AND stock <= reorder_point
		ORDER BY CAST(stock AS REAL) / reorder_point, name`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ProductID, &a.SKU, &a.Name, &a.Stock, &a.ReorderPoint); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		a.Status = derive.StockStatus(a.Stock, a.ReorderPoint)
		alerts = append(alerts, a)
	}
	response.JSON(w, alerts)
}

// Activity handles GET /api/v1/dashboard/activity: the most recent
// audit entries, newest first. ?limit= caps the feed, default 20.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	rows, err := h.DB.Query(`SELECT id, username, action, module, record_id, summary, created_at
		FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.CreatedAt); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		entries = append(entries, e)
	}
	response.JSON(w, entries)
}
