// Package suppliers implements the supplier directory and the
// order-derived performance view.
package suppliers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"invdash/internal/audit"
	"invdash/internal/export"
	"invdash/internal/models"
	"invdash/internal/response"
	"invdash/internal/validation"
	"invdash/internal/websocket"
)

// Handler holds dependencies for supplier handlers.
type Handler struct {
	DB  *sql.DB
	Hub *websocket.Hub
}

const supplierSelect = `SELECT id, name, contact_person, email, phone, address, category, rating, lead_time_days, payment_terms, status, created_at FROM suppliers`

func scanSupplier(scan func(dest ...any) error) (models.Supplier, error) {
	var s models.Supplier
	err := scan(&s.ID, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.Address,
		&s.Category, &s.Rating, &s.LeadTimeDays, &s.PaymentTerms, &s.Status, &s.CreatedAt)
	return s, err
}

// List handles GET /api/v1/suppliers with category and status filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := supplierSelect + " WHERE 1=1"
	var args []interface{}
	if c := q.Get("category"); c != "" && c != "all" {
		query += " AND category = ?"
		args = append(args, c)
	}
	if s := q.Get("status"); s != "" && s != "all" {
		query += " AND status = ?"
		args = append(args, s)
	}
	if search := q.Get("search"); search != "" {
		query += " AND (name LIKE ? OR contact_person LIKE ?)"
		term := "%" + search + "%"
		args = append(args, term, term)
	}
	query += " ORDER BY name"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	suppliers := []models.Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		suppliers = append(suppliers, s)
	}
	response.JSON(w, suppliers)
}

// Get handles GET /api/v1/suppliers/:id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(supplierSelect+" WHERE id=?", id)
	s, err := scanSupplier(row.Scan)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	response.JSON(w, s)
}

// SupplierInput is the create/update request body.
type SupplierInput struct {
	Name          *string  `json:"name"`
	ContactPerson *string  `json:"contact_person"`
	Email         *string  `json:"email"`
	Phone         *string  `json:"phone"`
	Address       *string  `json:"address"`
	Category      *string  `json:"category"`
	Rating        *float64 `json:"rating"`
	LeadTimeDays  *int     `json:"lead_time_days"`
	PaymentTerms  *string  `json:"payment_terms"`
	Status        *string  `json:"status"`
}

// Create handles POST /api/v1/suppliers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in SupplierInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	name := ""
	if in.Name != nil {
		name = *in.Name
	}
	email := ""
	if in.Email != nil {
		email = *in.Email
	}
	rating := 0.0
	if in.Rating != nil {
		rating = *in.Rating
	}
	status := "Active"
	if in.Status != nil {
		status = *in.Status
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", name)
	validation.ValidateEmail(ve, "email", email)
	validation.ValidateFloatRange(ve, "rating", rating, 0, 5)
	validation.ValidateEnum(ve, "status", status, validation.ValidSupplierStatuses)
	if in.LeadTimeDays != nil && *in.LeadTimeDays < 0 {
		ve.Add("lead_time_days", "must be non-negative")
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	lead := 0
	if in.LeadTimeDays != nil {
		lead = *in.LeadTimeDays
	}
	res, err := h.DB.Exec(`INSERT INTO suppliers (name, contact_person, email, phone, address, category, rating, lead_time_days, payment_terms, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		name, strOr(in.ContactPerson), email, strOr(in.Phone), strOr(in.Address),
		strOr(in.Category), rating, lead, strOr(in.PaymentTerms), status)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	id, _ := res.LastInsertId()

	audit.Log(h.DB, h.Hub, "system", audit.ActionCreate, "suppliers", strconv.FormatInt(id, 10), "Created supplier "+name)

	row := h.DB.QueryRow(supplierSelect+" WHERE id=?", id)
	s, err := scanSupplier(row.Scan)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, s)
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Update handles PUT /api/v1/suppliers/:id. Absent fields keep their
// stored value.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(supplierSelect+" WHERE id=?", id)
	current, err := scanSupplier(row.Scan)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}

	var in SupplierInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	if in.Name != nil {
		current.Name = *in.Name
	}
	if in.ContactPerson != nil {
		current.ContactPerson = *in.ContactPerson
	}
	if in.Email != nil {
		current.Email = *in.Email
	}
	if in.Phone != nil {
		current.Phone = *in.Phone
	}
	if in.Address != nil {
		current.Address = *in.Address
	}
	if in.Category != nil {
		current.Category = *in.Category
	}
	if in.Rating != nil {
		current.Rating = *in.Rating
	}
	if in.LeadTimeDays != nil {
		current.LeadTimeDays = *in.LeadTimeDays
	}
	if in.PaymentTerms != nil {
		current.PaymentTerms = *in.PaymentTerms
	}
	if in.Status != nil {
		current.Status = *in.Status
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", current.Name)
	validation.ValidateEmail(ve, "email", current.Email)
	validation.ValidateFloatRange(ve, "rating", current.Rating, 0, 5)
	validation.ValidateEnum(ve, "status", current.Status, validation.ValidSupplierStatuses)
	if current.LeadTimeDays < 0 {
		ve.Add("lead_time_days", "must be non-negative")
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	_, err = h.DB.Exec(`UPDATE suppliers SET name=?, contact_person=?, email=?, phone=?, address=?, category=?, rating=?, lead_time_days=?, payment_terms=?, status=? WHERE id=?`,
		current.Name, current.ContactPerson, current.Email, current.Phone, current.Address,
		current.Category, current.Rating, current.LeadTimeDays, current.PaymentTerms, current.Status, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionUpdate, "suppliers", id, "Updated supplier "+current.Name)
	response.JSON(w, current)
}

// Delete handles DELETE /api/v1/suppliers/:id. A supplier still
// referenced by products cannot be removed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	var inUse int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM products WHERE supplier_id=?", id).Scan(&inUse); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if inUse > 0 {
		response.Err(w, fmt.Sprintf("supplier is referenced by %d products", inUse), 400)
		return
	}
	res, err := h.DB.Exec("DELETE FROM suppliers WHERE id=?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		response.Err(w, "not found", 404)
		return
	}
	audit.Log(h.DB, h.Hub, "system", audit.ActionDelete, "suppliers", id, "Deleted supplier "+id)
	response.JSON(w, map[string]string{"status": "ok"})
}

// Performance handles GET /api/v1/suppliers/performance. Everything
// here is derived from delivered purchase orders at read time.
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(supplierSelect + " WHERE status='Active' ORDER BY name")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	var list []models.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows.Scan)
		if err != nil {
			rows.Close()
			response.Err(w, err.Error(), 500)
			return
		}
		list = append(list, s)
	}
	rows.Close()

	perf := []models.SupplierPerformance{}
	for _, s := range list {
		p, err := h.performanceFor(s)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		perf = append(perf, p)
	}
	response.JSON(w, perf)
}

// PerformanceOne handles GET /api/v1/suppliers/:id/performance.
func (h *Handler) PerformanceOne(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(supplierSelect+" WHERE id=?", id)
	s, err := scanSupplier(row.Scan)
	if err != nil {
		response.Err(w, "not found", 404)
		return
	}
	p, err := h.performanceFor(s)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, p)
}

func (h *Handler) performanceFor(s models.Supplier) (models.SupplierPerformance, error) {
	p := models.SupplierPerformance{SupplierID: s.ID, Name: s.Name}

	rows, err := h.DB.Query(`SELECT o.id, o.date, o.delivery_date, o.delivered_at, o.status
		FROM orders o WHERE o.type='Purchase' AND o.supplier=?`, s.Name)
	if err != nil {
		return p, err
	}
	defer rows.Close()

	total := decimal.Zero
	var delivered, onTime int
	var deliveryDaysSum float64
	for rows.Next() {
		var id int
		var date, deliveryDate, status string
		var deliveredAt *string
		if err := rows.Scan(&id, &date, &deliveryDate, &deliveredAt, &status); err != nil {
			return p, err
		}
		p.TotalOrders++
		if date > p.LastOrder {
			p.LastOrder = date
		}

		var value float64
		if err := h.DB.QueryRow("SELECT COALESCE(SUM(qty * unit_price),0) FROM order_lines WHERE order_id=?", id).Scan(&value); err != nil {
			return p, err
		}
		total = total.Add(decimal.NewFromFloat(value))

		if status != "Delivered" || deliveredAt == nil {
			continue
		}
		actual, err := time.Parse("2006-01-02 15:04:05", *deliveredAt)
		if err != nil {
			continue
		}
		delivered++
		if ordered, err := time.Parse("2006-01-02", date); err == nil {
			deliveryDaysSum += actual.Sub(ordered).Hours() / 24
		}
		if promised, err := time.Parse("2006-01-02", deliveryDate); err == nil {
			if !actual.After(promised.Add(24 * time.Hour)) {
				onTime++
			}
		}
	}

	p.TotalValue, _ = total.Round(2).Float64()
	if delivered > 0 {
		p.OnTimeDelivery = float64(onTime) / float64(delivered) * 100
		p.AvgDeliveryDays = deliveryDaysSum / float64(delivered)
	}
	return p, nil
}

// Export handles GET /api/v1/suppliers/export?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(supplierSelect + " ORDER BY name")
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"Name", "Contact", "Email", "Phone", "Category", "Rating", "Lead Time (days)", "Payment Terms", "Status"}
	var data [][]string
	for rows.Next() {
		s, err := scanSupplier(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		data = append(data, []string{
			s.Name, s.ContactPerson, s.Email, s.Phone, s.Category,
			fmt.Sprintf("%.1f", s.Rating), strconv.Itoa(s.LeadTimeDays), s.PaymentTerms, s.Status,
		})
	}

	audit.Log(h.DB, h.Hub, "system", audit.ActionExport, "suppliers", "-", fmt.Sprintf("Exported %d suppliers", len(data)))
	export.Tabular(w, r, "Suppliers", headers, data)
}
