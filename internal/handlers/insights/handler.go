// Package insights serves stock recommendations, demand predictions
// and trend summaries produced by the recommendation engine.
package insights

import (
	"database/sql"
	"fmt"
	"math"
	"net/http"
	"time"

	"invdash/internal/audit"
	"invdash/internal/models"
	"invdash/internal/recommend"
	"invdash/internal/response"
	"invdash/internal/validation"
	"invdash/internal/websocket"
)

// Handler holds dependencies for insight handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	Engine recommend.Engine
}

const recSelect = `SELECT r.id, r.product_id, p.name, r.type, r.current_stock, r.suggested_qty,
	r.action, r.reasoning, r.confidence, r.status, r.expires_at, r.created_at
	FROM recommendations r JOIN products p ON r.product_id = p.id`

func scanRec(scan func(dest ...any) error) (models.Recommendation, error) {
	var rec models.Recommendation
	err := scan(&rec.ID, &rec.ProductID, &rec.Product, &rec.Type, &rec.CurrentStock, &rec.SuggestedQty,
		&rec.Action, &rec.Reasoning, &rec.Confidence, &rec.Status, &rec.ExpiresAt, &rec.CreatedAt)
	return rec, err
}

// List handles GET /api/v1/insights with type and
// status filters. Expired pending recommendations are excluded.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := recSelect + " WHERE 1=1"
	var args []interface{}
	ve := &validation.ValidationErrors{}
	if t := q.Get("type"); t != "" && t != "all" {
		validation.ValidateEnum(ve, "type", t, validation.ValidRecommendationTypes)
		query += " AND r.type = ?"
		args = append(args, t)
	}
	if s := q.Get("status"); s != "" && s != "all" {
		validation.ValidateEnum(ve, "status", s, validation.ValidRecommendationStatus)
		query += " AND r.status = ?"
		args = append(args, s)
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	query += " AND NOT (r.status = 'pending' AND r.expires_at <> '' AND r.expires_at < ?)"
	args = append(args, now)
	query += " ORDER BY r.confidence DESC, r.created_at DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	recs := []models.Recommendation{}
	for rows.Next() {
		rec, err := scanRec(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		recs = append(recs, rec)
	}
	response.JSON(w, recs)
}

// Generate handles POST /api/v1/insights/generate. A fresh run
// replaces all pending recommendations; approved and rejected ones
// are history and stay.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Engine.Generate(h.DB)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM recommendations WHERE status='pending'"); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for _, rec := range recs {
		if _, err := tx.Exec(`INSERT INTO recommendations (id, product_id, type, current_stock, suggested_qty, action, reasoning, confidence, status, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.ProductID, rec.Type, rec.CurrentStock, rec.SuggestedQty,
			rec.Action, rec.Reasoning, rec.Confidence, rec.Status, rec.ExpiresAt); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionGenerate, "insights", "-",
		fmt.Sprintf("Generated %d recommendations", len(recs)))
	response.JSON(w, recs)
}

// Approve handles POST /api/v1/insights/:id/approve.
// Approving a reorder raises a Pending purchase order for the
// suggested quantity at the product's current cost.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(recSelect+" WHERE r.id=?", id)
	rec, err := scanRec(row.Scan)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	if rec.Status != "pending" {
		response.Err(w, "recommendation is not pending", 400)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var orderNumber string
	if rec.Type == "reorder" && rec.SuggestedQty > 0 {
		orderNumber, err = h.raisePurchaseOrder(tx, rec)
		if err != nil {
			response.Err(w, err.Error(), 400)
			return
		}
	}
	if _, err := tx.Exec("UPDATE recommendations SET status='approved' WHERE id=?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	summary := "Approved recommendation for " + rec.Product
	if orderNumber != "" {
		summary += ", raised " + orderNumber
	}
	audit.Log(h.DB, h.Hub, "system", audit.ActionApprove, "insights", id, summary)

	rec.Status = "approved"
	response.JSON(w, map[string]interface{}{"recommendation": rec, "order_number": orderNumber})
}

func (h *Handler) raisePurchaseOrder(tx *sql.Tx, rec models.Recommendation) (string, error) {
	var supplier string
	var cost float64
	err := tx.QueryRow(`SELECT COALESCE(s.name,''), p.cost FROM products p
		LEFT JOIN suppliers s ON p.supplier_id = s.id WHERE p.id=?`, rec.ProductID).Scan(&supplier, &cost)
	if err != nil {
		return "", err
	}
	if supplier == "" {
		return "", fmt.Errorf("product %s has no supplier to order from", rec.Product)
	}

	year := time.Now().Year()
	var n int
	err = tx.QueryRow(
		"SELECT COALESCE(MAX(CAST(substr(number, 9) AS INTEGER)), 0) FROM orders WHERE number LIKE ?",
		fmt.Sprintf("PO-%d-%%", year),
	).Scan(&n)
	if err != nil {
		return "", err
	}
	number := fmt.Sprintf("PO-%d-%03d", year, n+1)
	date := time.Now().Format("2006-01-02")

	res, err := tx.Exec(`INSERT INTO orders (number, type, supplier, date, priority, notes)
		VALUES (?, 'Purchase', ?, ?, 'High', ?)`,
		number, supplier, date, "Auto-raised from recommendation "+rec.ID)
	if err != nil {
		return "", err
	}
	orderID, _ := res.LastInsertId()
	if _, err := tx.Exec("INSERT INTO order_lines (order_id, product_id, product, qty, unit_price) VALUES (?, ?, ?, ?, ?)",
		orderID, rec.ProductID, rec.Product, rec.SuggestedQty, cost); err != nil {
		return "", err
	}
	return number, nil
}

// Reject handles POST /api/v1/insights/:id/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(recSelect+" WHERE r.id=?", id)
	rec, err := scanRec(row.Scan)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	if rec.Status != "pending" {
		response.Err(w, "recommendation is not pending", 400)
		return
	}
	if _, err := h.DB.Exec("UPDATE recommendations SET status='rejected' WHERE id=?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(h.DB, h.Hub, "system", audit.ActionReject, "insights", id, "Rejected recommendation for "+rec.Product)
	rec.Status = "rejected"
	response.JSON(w, rec)
}

// Prediction is a per-product demand forecast derived from movement
// history.
type Prediction struct {
	ProductID      int     `json:"product_id"`
	Product        string  `json:"product"`
	CurrentStock   int     `json:"current_stock"`
	DailySales     float64 `json:"daily_sales"`
	DaysUntilEmpty float64 `json:"days_until_empty"`
	ForecastDemand int     `json:"forecast_demand_30d"`
}

// Predictions handles GET /api/v1/insights/predictions. Velocity is
// average outbound quantity per day over the last 30 days.
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -30).Format("2006-01-02 15:04:05")
	rows, err := h.DB.Query(`SELECT p.id, p.name, p.stock, COALESCE(SUM(m.qty),0)
		FROM products p
		LEFT JOIN stock_movements m ON m.product_id = p.id AND m.type='out' AND m.created_at >= ?
		WHERE p.active = 1
		GROUP BY p.id, p.name, p.stock
		ORDER BY p.name`, since)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	preds := []Prediction{}
	for rows.Next() {
		var p Prediction
		var out float64
		if err := rows.Scan(&p.ProductID, &p.Product, &p.CurrentStock, &out); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		p.DailySales = math.Round(out/30*100) / 100
		if p.DailySales > 0 {
			p.DaysUntilEmpty = math.Round(float64(p.CurrentStock)/p.DailySales*10) / 10
		}
		p.ForecastDemand = int(math.Ceil(p.DailySales * 30))
		preds = append(preds, p)
	}
	response.JSON(w, preds)
}

// Trend summarises a category's demand direction over the last 60
// days.
type Trend struct {
	Category  string  `json:"category"`
	Recent    int     `json:"recent_30d"`
	Prior     int     `json:"prior_30d"`
	ChangePct float64 `json:"change_pct"`
	Direction string  `json:"direction"`
}

// Trends handles GET /api/v1/insights/trends, comparing outbound
// volume in the last 30 days against the 30 before that per category.
func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	mid := now.AddDate(0, 0, -30).Format("2006-01-02 15:04:05")
	start := now.AddDate(0, 0, -60).Format("2006-01-02 15:04:05")

	rows, err := h.DB.Query(`SELECT COALESCE(c.name,'Uncategorised'),
		COALESCE(SUM(CASE WHEN m.created_at >= ? THEN m.qty ELSE 0 END),0),
		COALESCE(SUM(CASE WHEN m.created_at >= ? AND m.created_at < ? THEN m.qty ELSE 0 END),0)
		FROM stock_movements m
		JOIN products p ON m.product_id = p.id
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE m.type='out' AND m.created_at >= ?
		GROUP BY c.name
		ORDER BY c.name`, mid, start, mid, start)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	trends := []Trend{}
	for rows.Next() {
		var t Trend
		if err := rows.Scan(&t.Category, &t.Recent, &t.Prior); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		switch {
		case t.Prior == 0 && t.Recent > 0:
			t.ChangePct = 100
		case t.Prior > 0:
			t.ChangePct = math.Round((float64(t.Recent)-float64(t.Prior))/float64(t.Prior)*1000) / 10
		}
		switch {
		case t.ChangePct > 10:
			t.Direction = "up"
		case t.ChangePct < -10:
			t.Direction = "down"
		default:
			t.Direction = "flat"
		}
		trends = append(trends, t)
	}
	response.JSON(w, trends)
}
