// Package inventory implements stock level views and adjustments.
// Stock status is derived from the current level and reorder point on
// every read.
package inventory

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"invdash/internal/audit"
	"invdash/internal/derive"
	"invdash/internal/models"
	"invdash/internal/response"
	"invdash/internal/validation"
	"invdash/internal/websocket"
)

// Handler holds dependencies for inventory handlers.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

const itemSelect = `SELECT p.id, p.sku, p.name, COALESCE(c.name,''), p.stock, p.reorder_point, p.max_stock,
	COALESCE(p.location,''), p.price, p.cost, p.updated_at
	FROM products p
	LEFT JOIN categories c ON p.category_id = c.id
	WHERE p.active = 1`

func (h *Handler) scanItem(scan func(dest ...any) error) (models.InventoryItem, error) {
	var it models.InventoryItem
	err := scan(&it.ProductID, &it.SKU, &it.Name, &it.Category, &it.Stock, &it.ReorderPoint,
		&it.MaxStock, &it.Location, &it.Price, &it.Cost, &it.UpdatedAt)
	if err != nil {
		return it, err
	}
	it.Status = derive.StockStatus(it.Stock, it.ReorderPoint)
	it.StockValue = derive.StockValue(it.Price, it.Stock)
	return it, nil
}

// List handles GET /api/v1/inventory. Supports ?status=Critical|Low
// Stock|Healthy and ?low_stock=true; the status filter is applied
// after derivation since status is never stored.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(itemSelect + " ORDER BY p.name")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	wantStatus := r.URL.Query().Get("status")
	lowOnly := r.URL.Query().Get("low_stock") == "true"

	items := []models.InventoryItem{}
	for rows.Next() {
		it, err := h.scanItem(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		if wantStatus != "" && wantStatus != "all" && it.Status != wantStatus {
			continue
		}
		if lowOnly && it.Status == derive.StatusHealthy {
			continue
		}
		items = append(items, it)
	}
	response.JSON(w, items)
}

// Get handles GET /api/v1/inventory/:id, returning the item with its
// most recent movement.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(itemSelect+" AND p.id=?", id)
	it, err := h.scanItem(row.Scan)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}

	var m models.StockMovement
	err = h.DB.QueryRow(`SELECT id, product_id, type, qty, COALESCE(reason,''), COALESCE(reference,''),
		stock_before, stock_after, COALESCE(unit_cost,0), COALESCE(total_cost,0), COALESCE(created_by,''), created_at
		FROM stock_movements WHERE product_id=? ORDER BY id DESC LIMIT 1`, id).
		Scan(&m.ID, &m.ProductID, &m.Type, &m.Qty, &m.Reason, &m.Reference,
			&m.StockBefore, &m.StockAfter, &m.UnitCost, &m.TotalCost, &m.CreatedBy, &m.CreatedAt)
	if err == nil {
		it.LastMovement = &m
	}
	response.JSON(w, it)
}

// AdjustInput is the stock adjustment request body. Delta may be
// negative but the resulting level may not be.
type AdjustInput struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
	Type   string `json:"type"`
}

// Adjust handles POST /api/v1/inventory/:id/adjust. The movement row
// records the level before and after so history replays cleanly.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request, id string) {
	var in AdjustInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "reason", in.Reason)
	if in.Delta == 0 {
		ve.Add("delta", "must be non-zero")
	}
	mtype := in.Type
	if mtype == "" {
		mtype = "adjustment"
	}
	validation.ValidateEnum(ve, "type", mtype, validation.ValidMovementTypes)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var stock int
	var cost float64
	var sku string
	err = tx.QueryRow("SELECT stock, cost, sku FROM products WHERE id=? AND active=1", id).Scan(&stock, &cost, &sku)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}

	after := stock + in.Delta
	if after < 0 {
		response.Err(w, "Adjustment would result in negative stock", 400)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := tx.Exec("UPDATE products SET stock=?, updated_at=? WHERE id=?", after, now, id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	qty := in.Delta
	if qty < 0 {
		qty = -qty
	}
	if _, err := tx.Exec(`INSERT INTO stock_movements (product_id, type, qty, reason, reference, stock_before, stock_after, unit_cost, total_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, mtype, signQty(mtype, in.Delta, qty), in.Reason, uuid.NewString(), stock, after, cost, cost*float64(qty), now); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionAdjust, "inventory", id,
		fmt.Sprintf("Adjusted %s by %+d (%s)", sku, in.Delta, in.Reason))

	row := h.DB.QueryRow(itemSelect+" AND p.id=?", id)
	it, err := h.scanItem(row.Scan)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, it)
}

// signQty keeps the signed delta for adjustments while in/out
// movements carry the unsigned quantity their type implies.
func signQty(mtype string, delta, abs int) int {
	if mtype == "adjustment" {
		return delta
	}
	return abs
}

// Movements handles GET /api/v1/inventory/:id/movements.
func (h *Handler) Movements(w http.ResponseWriter, r *http.Request, id string) {
	rows, err := h.DB.Query(`SELECT id, product_id, type, qty, COALESCE(reason,''), COALESCE(reference,''),
		stock_before, stock_after, COALESCE(unit_cost,0), COALESCE(total_cost,0), COALESCE(created_by,''), created_at
		FROM stock_movements WHERE product_id=? ORDER BY id DESC LIMIT 100`, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	moves := []models.StockMovement{}
	for rows.Next() {
		var m models.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Qty, &m.Reason, &m.Reference,
			&m.StockBefore, &m.StockAfter, &m.UnitCost, &m.TotalCost, &m.CreatedBy, &m.CreatedAt); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		moves = append(moves, m)
	}
	response.JSON(w, moves)
}
