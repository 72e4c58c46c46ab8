// Package orders implements purchase and sales order management.
// Order totals are derived from lines on read; status changes follow
// a fixed transition table, and delivering a purchase order receives
// its lines into stock.
package orders

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"invdash/internal/audit"
	"invdash/internal/derive"
	"invdash/internal/models"
	"invdash/internal/response"
	"invdash/internal/validation"
	"invdash/internal/websocket"
)

// Handler holds dependencies for order handlers.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

const orderSelect = `SELECT id, number, type, supplier, customer, date, status, delivery_date, delivered_at, priority, notes, created_at, updated_at FROM orders`

func scanOrder(scan func(dest ...any) error) (models.Order, error) {
	var o models.Order
	err := scan(&o.ID, &o.Number, &o.Type, &o.Supplier, &o.Customer, &o.Date, &o.Status,
		&o.DeliveryDate, &o.DeliveredAt, &o.Priority, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (h *Handler) loadLines(o *models.Order) error {
	rows, err := h.DB.Query("SELECT id, order_id, COALESCE(product_id,0), product, qty, unit_price FROM order_lines WHERE order_id=?", o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var totals []derive.Line
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Product, &l.Qty, &l.UnitPrice); err != nil {
			return err
		}
		o.Lines = append(o.Lines, l)
		totals = append(totals, derive.Line{Qty: l.Qty, UnitPrice: l.UnitPrice})
	}
	o.Total = derive.OrderTotal(totals)
	return nil
}

// List handles GET /api/v1/orders. Type and status filters are exact
// matches and compose with AND regardless of the order they were
// given in.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := orderSelect + " WHERE 1=1"
	var args []interface{}
	if t := q.Get("type"); t != "" && t != "all" {
		query += " AND type = ?"
		args = append(args, t)
	}
	if s := q.Get("status"); s != "" && s != "all" {
		query += " AND status = ?"
		args = append(args, s)
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		orders = append(orders, o)
	}
	for i := range orders {
		if err := h.loadLines(&orders[i]); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	response.JSON(w, orders)
}

// Get handles GET /api/v1/orders/:id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	o, err := h.fetch(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, o)
}

func (h *Handler) fetch(id string) (models.Order, error) {
	row := h.DB.QueryRow(orderSelect+" WHERE id=?", id)
	o, err := scanOrder(row.Scan)
	if err != nil {
		return o, err
	}
	err = h.loadLines(&o)
	return o, err
}

// LineInput is one order line in the create request.
type LineInput struct {
	ProductID int     `json:"product_id"`
	Product   string  `json:"product"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

// OrderInput is the create request body.
type OrderInput struct {
	Type         string      `json:"type"`
	Supplier     string      `json:"supplier"`
	Customer     string      `json:"customer"`
	Date         string      `json:"date"`
	DeliveryDate string      `json:"delivery_date"`
	Priority     string      `json:"priority"`
	Notes        string      `json:"notes"`
	Lines        []LineInput `json:"lines"`
}

// Create handles POST /api/v1/orders. Purchase orders carry a supplier
// and sales orders a customer, never both; the counterparty must match
// the type. Numbers are PO-YYYY-NNN / SO-YYYY-NNN, sequential within
// the year.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in OrderInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "type", in.Type)
	validation.ValidateEnum(ve, "type", in.Type, validation.ValidOrderTypes)
	validation.RequireField(ve, "date", in.Date)
	validation.ValidateDate(ve, "date", in.Date)
	validation.ValidateDate(ve, "delivery_date", in.DeliveryDate)
	if in.Priority == "" {
		in.Priority = "Medium"
	}
	validation.ValidateEnum(ve, "priority", in.Priority, validation.ValidOrderPriorities)
	switch in.Type {
	case "Purchase":
		if in.Supplier == "" {
			ve.Add("supplier", "is required for purchase orders")
		}
		if in.Customer != "" {
			ve.Add("customer", "must be empty for purchase orders")
		}
	case "Sales":
		if in.Customer == "" {
			ve.Add("customer", "is required for sales orders")
		}
		if in.Supplier != "" {
			ve.Add("supplier", "must be empty for sales orders")
		}
	}
	if len(in.Lines) == 0 {
		ve.Add("lines", "at least one line is required")
	}
	for i, l := range in.Lines {
		if l.Qty <= 0 {
			ve.Add(fmt.Sprintf("lines[%d].qty", i), "must be a positive integer")
		}
		if l.UnitPrice < 0 {
			ve.Add(fmt.Sprintf("lines[%d].unit_price", i), "must be non-negative")
		}
		if l.Product == "" && l.ProductID == 0 {
			ve.Add(fmt.Sprintf("lines[%d].product", i), "is required")
		}
	}
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

	number, err := nextNumber(tx, in.Type, in.Date)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	res, err := tx.Exec(`INSERT INTO orders (number, type, supplier, customer, date, delivery_date, priority, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		number, in.Type, in.Supplier, in.Customer, in.Date, in.DeliveryDate, in.Priority, in.Notes)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	orderID, _ := res.LastInsertId()

	for _, l := range in.Lines {
		name := l.Product
		var productID interface{}
		if l.ProductID != 0 {
			productID = l.ProductID
			if name == "" {
				if err := tx.QueryRow("SELECT name FROM products WHERE id=?", l.ProductID).Scan(&name); err != nil {
					response.Err(w, fmt.Sprintf("unknown product id %d", l.ProductID), 400)
					return
				}
			}
		}
		if _, err := tx.Exec("INSERT INTO order_lines (order_id, product_id, product, qty, unit_price) VALUES (?, ?, ?, ?, ?)",
			orderID, productID, name, l.Qty, l.UnitPrice); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionCreate, "orders", number, "Created "+in.Type+" order "+number)

	o, err := h.fetch(fmt.Sprintf("%d", orderID))
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, o)
}

// nextNumber allocates the next order number within the order's year.
func nextNumber(tx *sql.Tx, orderType, date string) (string, error) {
	prefix := "PO"
	if orderType == "Sales" {
		prefix = "SO"
	}
	year := time.Now().Year()
	if d, err := time.Parse("2006-01-02", date); err == nil {
		year = d.Year()
	}
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)
	var n int
	err := tx.QueryRow(
		"SELECT COALESCE(MAX(CAST(substr(number, 9) AS INTEGER)), 0) FROM orders WHERE number LIKE ?",
		pattern,
	).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%03d", prefix, year, n+1), nil
}

// StatusInput is the status update request body.
type StatusInput struct {
	Status string `json:"status"`
}

// UpdateStatus handles POST /api/v1/orders/:id/status. Transitions are
// guarded; marking a purchase order Delivered receives each line into
// stock with a matching movement row.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, id string) {
	var in StatusInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "status", in.Status)
	validation.ValidateEnum(ve, "status", in.Status, validation.ValidOrderStatuses)
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

	var number, orderType, current string
	err = tx.QueryRow("SELECT number, type, status FROM orders WHERE id=?", id).Scan(&number, &orderType, &current)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	if !validation.CanTransition(current, in.Status) {
		response.Err(w, fmt.Sprintf("cannot transition from %s to %s", current, in.Status), 400)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	if in.Status == "Delivered" {
		if _, err := tx.Exec("UPDATE orders SET status=?, delivered_at=?, updated_at=? WHERE id=?", in.Status, now, now, id); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		if orderType == "Purchase" {
			if err := receiveLines(tx, id, number, now); err != nil {
				response.Err(w, err.Error(), 500)
				return
			}
		}
	} else {
		if _, err := tx.Exec("UPDATE orders SET status=?, updated_at=? WHERE id=?", in.Status, now, id); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionUpdate, "orders", number,
		fmt.Sprintf("Order %s: %s -> %s", number, current, in.Status))

	o, err := h.fetch(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, o)
}

// receiveLines adds each delivered purchase line to stock. Lines with
// no product reference are skipped; they were free-text entries.
func receiveLines(tx *sql.Tx, orderID, number, now string) error {
	rows, err := tx.Query("SELECT COALESCE(product_id,0), qty, unit_price FROM order_lines WHERE order_id=?", orderID)
	if err != nil {
		return err
	}
	type line struct {
		productID int
		qty       int
		unitPrice float64
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty, &l.unitPrice); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	rows.Close()

	for _, l := range lines {
		if l.productID == 0 {
			continue
		}
		var stock int
		if err := tx.QueryRow("SELECT stock FROM products WHERE id=?", l.productID).Scan(&stock); err != nil {
			return err
		}
		after := stock + l.qty
		if _, err := tx.Exec("UPDATE products SET stock=?, updated_at=? WHERE id=?", after, now, l.productID); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO stock_movements (product_id, type, qty, reason, reference, stock_before, stock_after, unit_cost, total_cost, created_at)
			VALUES (?, 'in', ?, 'Order received', ?, ?, ?, ?, ?, ?)`,
			l.productID, l.qty, number, stock, after, l.unitPrice, l.unitPrice*float64(l.qty), now); err != nil {
			return err
		}
	}
	return nil
}

// Delete handles DELETE /api/v1/orders/:id. Only Pending orders may
// be deleted; anything further along must be cancelled instead.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	var number, status string
	err := h.DB.QueryRow("SELECT number, status FROM orders WHERE id=?", id).Scan(&number, &status)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	if status != "Pending" {
		response.Err(w, "only pending orders can be deleted", 400)
		return
	}
	if _, err := h.DB.Exec("DELETE FROM orders WHERE id=?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(h.DB, h.Hub, "system", audit.ActionDelete, "orders", number, "Deleted order "+number)
	response.JSON(w, map[string]string{"status": "ok"})
}
