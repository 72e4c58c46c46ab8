// Package products implements the product catalog endpoints: CRUD,
// search and category filtering, derived stats, and export.
package products

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invdash/internal/audit"
	"invdash/internal/derive"
	"invdash/internal/export"
	"invdash/internal/models"
	"invdash/internal/response"
	"invdash/internal/validation"
	"invdash/internal/websocket"
)

// Handler holds dependencies for product handlers.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

const productSelect = `SELECT p.id, p.sku, p.name, COALESCE(p.description,''), COALESCE(c.name,''),
	p.price, p.cost, p.stock, p.reorder_point, p.max_stock, COALESCE(s.name,''),
	COALESCE(p.location,''), p.active, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON p.category_id = c.id
	LEFT JOIN suppliers s ON p.supplier_id = s.id`

func scanProduct(scan func(dest ...any) error) (models.Product, error) {
	var p models.Product
	var active int
	err := scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category,
		&p.Price, &p.Cost, &p.Stock, &p.ReorderPoint, &p.MaxStock, &p.Supplier,
		&p.Location, &active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Active = active != 0
	p.Margin = derive.Margin(p.Price, p.Cost)
	p.Status = derive.ProductStatus(p.Active, p.Stock, p.ReorderPoint)
	return p, nil
}

// List handles GET /api/v1/products. Search matches name or SKU
// case-insensitively; category is an exact match with "all" as the
// wildcard. The two filters compose with AND.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := productSelect + " WHERE 1=1"
	var args []interface{}

	if search := q.Get("search"); search != "" {
		term := "%" + search + "%"
		query += " AND (p.name LIKE ? OR p.sku LIKE ?)"
		args = append(args, term, term)
	}
	if category := q.Get("category"); category != "" && category != "all" {
		query += " AND c.name = ?"
		args = append(args, category)
	}
	query += " ORDER BY p.name"

	page, limit := pagination(r)
	countQuery := "SELECT COUNT(*) FROM (" + query + ")"
	var total int
	if err := h.DB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		items = append(items, p)
	}
	response.JSONMeta(w, items, total, page, limit)
}

// Get handles GET /api/v1/products/:id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.fetch(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, p)
}

func (h *Handler) fetch(id string) (models.Product, error) {
	row := h.DB.QueryRow(productSelect+" WHERE p.id=?", id)
	return scanProduct(row.Scan)
}

// ProductInput is the create/update request body. Pointer fields
// distinguish "absent" from zero on update.
type ProductInput struct {
	SKU          *string  `json:"sku"`
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Category     *string  `json:"category"`
	Price        *float64 `json:"price"`
	Cost         *float64 `json:"cost"`
	Stock        *int     `json:"stock"`
	ReorderPoint *int     `json:"reorder_point"`
	MaxStock     *int     `json:"max_stock"`
	Supplier     *string  `json:"supplier"`
	Location     *string  `json:"location"`
	Active       *bool    `json:"active"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func f64(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func i(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Create handles POST /api/v1/products. An unknown category is
// created on the fly; an unknown supplier is rejected so a typo never
// silently orphans the reference.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "sku", str(in.SKU))
	validation.RequireField(ve, "name", str(in.Name))
	validation.ValidateNonNegativeFloat(ve, "price", f64(in.Price))
	validation.ValidateNonNegativeFloat(ve, "cost", f64(in.Cost))
	validation.ValidateNonNegativeInt(ve, "stock", i(in.Stock))
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	categoryID, err := h.resolveCategory(str(in.Category))
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	supplierID, err := h.resolveSupplier(str(in.Supplier))
	if err != nil {
		response.Err(w, err.Error(), 400)
		return
	}

	active := 1
	if in.Active != nil && !*in.Active {
		active = 0
	}
	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO products (sku, name, description, category_id, price, cost, stock, reorder_point, max_stock, supplier_id, location, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		str(in.SKU), str(in.Name), str(in.Description), categoryID, f64(in.Price), f64(in.Cost),
		i(in.Stock), i(in.ReorderPoint), i(in.MaxStock), supplierID, str(in.Location), active)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	id, _ := res.LastInsertId()

	if i(in.Stock) > 0 {
		now := time.Now().Format("2006-01-02 15:04:05")
		_, err = tx.Exec(`INSERT INTO stock_movements (product_id, type, qty, reason, reference, stock_before, stock_after, unit_cost, total_cost, created_at)
			VALUES (?, 'in', ?, 'Initial stock', ?, 0, ?, ?, ?, ?)`,
			id, i(in.Stock), uuid.NewString(), i(in.Stock), f64(in.Cost), f64(in.Cost)*float64(i(in.Stock)), now)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionCreate, "products", strconv.FormatInt(id, 10), "Created product "+str(in.SKU))

	p, err := h.fetch(strconv.FormatInt(id, 10))
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, p)
}

// Update handles PUT /api/v1/products/:id. Absent fields keep their
// stored value; margin and status are derived on read so nothing here
// can go stale.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	current, err := h.fetch(id)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}

	var in ProductInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	name := current.Name
	if in.Name != nil {
		name = *in.Name
	}
	description := current.Description
	if in.Description != nil {
		description = *in.Description
	}
	price := current.Price
	if in.Price != nil {
		price = *in.Price
	}
	cost := current.Cost
	if in.Cost != nil {
		cost = *in.Cost
	}
	stock := current.Stock
	if in.Stock != nil {
		stock = *in.Stock
	}
	reorderPoint := current.ReorderPoint
	if in.ReorderPoint != nil {
		reorderPoint = *in.ReorderPoint
	}
	maxStock := current.MaxStock
	if in.MaxStock != nil {
		maxStock = *in.MaxStock
	}
	location := current.Location
	if in.Location != nil {
		location = *in.Location
	}
	active := current.Active
	if in.Active != nil {
		active = *in.Active
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", name)
	validation.ValidateNonNegativeFloat(ve, "price", price)
	validation.ValidateNonNegativeFloat(ve, "cost", cost)
	validation.ValidateNonNegativeInt(ve, "stock", stock)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	categoryID, err := h.resolveCategory(current.Category)
	if in.Category != nil {
		categoryID, err = h.resolveCategory(*in.Category)
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	supplierName := current.Supplier
	if in.Supplier != nil {
		supplierName = *in.Supplier
	}
	supplierID, err := h.resolveSupplier(supplierName)
	if err != nil {
		response.Err(w, err.Error(), 400)
		return
	}

	activeInt := 0
	if active {
		activeInt = 1
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE products SET name=?, description=?, category_id=?, price=?, cost=?, stock=?, reorder_point=?, max_stock=?, supplier_id=?, location=?, active=?, updated_at=? WHERE id=?`,
		name, description, categoryID, price, cost, stock, reorderPoint, maxStock, supplierID, location, activeInt, now, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	if stock != current.Stock {
		delta := stock - current.Stock
		_, err = tx.Exec(`INSERT INTO stock_movements (product_id, type, qty, reason, reference, stock_before, stock_after, unit_cost, created_at)
			VALUES (?, 'adjustment', ?, 'Product edit', ?, ?, ?, ?, ?)`,
			current.ID, delta, uuid.NewString(), current.Stock, stock, cost, now)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionUpdate, "products", id, "Updated product "+current.SKU)

	p, err := h.fetch(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, p)
}

// Delete handles DELETE /api/v1/products/:id. Removes exactly the one
// matching row; movements and supplier links cascade. A product still
// referenced by order lines cannot be removed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	var inUse int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM order_lines WHERE product_id=?", id).Scan(&inUse); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if inUse > 0 {
		response.Err(w, fmt.Sprintf("product is referenced by %d order lines", inUse), 400)
		return
	}
	res, err := h.DB.Exec("DELETE FROM products WHERE id=?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		response.Err(w, "not found", 404)
		return
	}
	audit.Log(h.DB, h.Hub, "system", audit.ActionDelete, "products", id, "Deleted product "+id)
	response.JSON(w, map[string]string{"status": "ok"})
}

// Stats handles GET /api/v1/products/stats. All aggregates are
// recomputed from the live table on every call.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query("SELECT price, cost, stock, reorder_point FROM products WHERE active=1")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var count, lowStock int
	totalValue := decimal.Zero
	marginSum := decimal.Zero
	for rows.Next() {
		var price, cost float64
		var stock, reorderPoint int
		if err := rows.Scan(&price, &cost, &stock, &reorderPoint); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		count++
		if reorderPoint > 0 && stock <= reorderPoint {
			lowStock++
		}
		totalValue = totalValue.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(stock))))
		marginSum = marginSum.Add(decimal.NewFromFloat(derive.Margin(price, cost)))
	}

	avgMargin := 0.0
	if count > 0 {
		avgMargin, _ = marginSum.Div(decimal.NewFromInt(int64(count))).Round(1).Float64()
	}
	total, _ := totalValue.Round(2).Float64()

	response.JSON(w, map[string]interface{}{
		"total_products":  count,
		"low_stock_count": lowStock,
		"total_value":     total,
		"average_margin":  avgMargin,
	})
}

// Export handles GET /api/v1/products/export?format=csv|xlsx with the
// same search/category filters as List.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := productSelect + " WHERE 1=1"
	var args []interface{}
	if search := q.Get("search"); search != "" {
		term := "%" + search + "%"
		query += " AND (p.name LIKE ? OR p.sku LIKE ?)"
		args = append(args, term, term)
	}
	if category := q.Get("category"); category != "" && category != "all" {
		query += " AND c.name = ?"
		args = append(args, category)
	}
	query += " ORDER BY p.name"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"SKU", "Name", "Category", "Price", "Cost", "Margin %", "Stock", "Supplier", "Status"}
	var data [][]string
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		data = append(data, []string{
			p.SKU, p.Name, p.Category,
			fmt.Sprintf("%.2f", p.Price), fmt.Sprintf("%.2f", p.Cost), fmt.Sprintf("%.1f", p.Margin),
			strconv.Itoa(p.Stock), p.Supplier, p.Status,
		})
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionExport, "products", "-", fmt.Sprintf("Exported %d products", len(data)))
	export.Tabular(w, r, "Products", headers, data)
}

func (h *Handler) resolveCategory(name string) (interface{}, error) {
	if name == "" {
		return nil, nil
	}
	if _, err := h.DB.Exec("INSERT OR IGNORE INTO categories (name) VALUES (?)", name); err != nil {
		return nil, err
	}
	var id int
	if err := h.DB.QueryRow("SELECT id FROM categories WHERE name=?", name).Scan(&id); err != nil {
		return nil, err
	}
	return id, nil
}

func (h *Handler) resolveSupplier(name string) (interface{}, error) {
	if name == "" {
		return nil, nil
	}
	var id int
	err := h.DB.QueryRow("SELECT id FROM suppliers WHERE name=?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown supplier %q", name)
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}

func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, 50
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	return page, limit
}
