package suppliers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"invdash/internal/models"
	"invdash/internal/testutil"
	"invdash/internal/websocket"
)

func setupHandler(t *testing.T) *Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return &Handler{DB: db, Hub: websocket.NewHub()}
}

func TestCreateSupplier(t *testing.T) {
	h := setupHandler(t)

	body, _ := json.Marshal(map[string]interface{}{
		"name": "TechSupply Co.", "contact_person": "John Smith",
		"email": "orders@techsupply.com", "category": "Electronics",
		"rating": 4.5, "lead_time_days": 7, "payment_terms": "Net 30",
	})
	r := httptest.NewRequest("POST", "/api/v1/suppliers", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, r)
	testutil.AssertStatus(t, w, 200)

	var s models.Supplier
	testutil.DecodeEnvelope(t, w, &s)
	if s.Rating != 4.5 || s.LeadTimeDays != 7 {
		t.Errorf("got rating=%v lead=%d, want 4.5/7", s.Rating, s.LeadTimeDays)
	}
	if s.Status != "Active" {
		t.Errorf("default status = %q, want Active", s.Status)
	}
}

func TestCreateSupplierValidation(t *testing.T) {
	h := setupHandler(t)

	cases := []map[string]interface{}{
		{"name": ""},
		{"name": "X", "rating": 5.5},
		{"name": "X", "rating": -1.0},
		{"name": "X", "email": "not-an-email"},
		{"name": "X", "lead_time_days": -3},
		{"name": "X", "status": "Dormant"},
	}
	for _, c := range cases {
		body, _ := json.Marshal(c)
		r := httptest.NewRequest("POST", "/api/v1/suppliers", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.Create(w, r)
		if w.Code != 400 {
			t.Errorf("input %v: status = %d, want 400", c, w.Code)
		}
	}
}

func TestUpdateSupplierPartial(t *testing.T) {
	h := setupHandler(t)
	id := testutil.CreateTestSupplier(t, h.DB, "BookWorld", 5)

	body, _ := json.Marshal(map[string]interface{}{"rating": 4.8})
	r := httptest.NewRequest("PUT", "/api/v1/suppliers/1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Update(w, r, strconv.Itoa(id))
	testutil.AssertStatus(t, w, 200)

	var s models.Supplier
	testutil.DecodeEnvelope(t, w, &s)
	if s.Rating != 4.8 {
		t.Errorf("rating = %v, want 4.8", s.Rating)
	}
	if s.Name != "BookWorld" || s.LeadTimeDays != 5 {
		t.Errorf("partial update clobbered fields: %+v", s)
	}
}

func TestDeleteSupplierInUseRejected(t *testing.T) {
	h := setupHandler(t)
	sid := testutil.CreateTestSupplier(t, h.DB, "TechSupply", 7)
	testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A", Name: "Widget", SupplierID: sid})

	r := httptest.NewRequest("DELETE", "/api/v1/suppliers/"+strconv.Itoa(sid), nil)
	w := httptest.NewRecorder()
	h.Delete(w, r, strconv.Itoa(sid))
	testutil.AssertStatus(t, w, 400)

	// Unreferenced supplier deletes cleanly.
	other := testutil.CreateTestSupplier(t, h.DB, "Idle Corp", 3)
	w = httptest.NewRecorder()
	h.Delete(w, r, strconv.Itoa(other))
	testutil.AssertStatus(t, w, 200)
}

func TestListFilters(t *testing.T) {
	h := setupHandler(t)
	h.DB.Exec("INSERT INTO suppliers (name, category, status) VALUES ('A', 'Electronics', 'Active')")
	h.DB.Exec("INSERT INTO suppliers (name, category, status) VALUES ('B', 'Electronics', 'Inactive')")
	h.DB.Exec("INSERT INTO suppliers (name, category, status) VALUES ('C', 'Books', 'Active')")

	r := httptest.NewRequest("GET", "/api/v1/suppliers?category=Electronics&status=Active", nil)
	w := httptest.NewRecorder()
	h.List(w, r)
	var list []models.Supplier
	testutil.DecodeEnvelope(t, w, &list)
	if len(list) != 1 || list[0].Name != "A" {
		t.Errorf("got %+v, want just A", list)
	}
}

func TestPerformanceDerivedFromOrders(t *testing.T) {
	h := setupHandler(t)
	testutil.CreateTestSupplier(t, h.DB, "TechSupply", 7)

	// One delivered on time, one delivered late, one still pending.
	h.DB.Exec(`INSERT INTO orders (number, type, supplier, date, status, delivery_date, delivered_at)
		VALUES ('PO-2026-001', 'Purchase', 'TechSupply', '2026-08-01', 'Delivered', '2026-08-08', '2026-08-07 10:00:00')`)
	h.DB.Exec(`INSERT INTO orders (number, type, supplier, date, status, delivery_date, delivered_at)
		VALUES ('PO-2026-002', 'Purchase', 'TechSupply', '2026-08-10', 'Delivered', '2026-08-15', '2026-08-20 10:00:00')`)
	h.DB.Exec(`INSERT INTO orders (number, type, supplier, date, status)
		VALUES ('PO-2026-003', 'Purchase', 'TechSupply', '2026-08-25', 'Pending')`)
	h.DB.Exec(`INSERT INTO order_lines (order_id, product, qty, unit_price) VALUES (1, 'Laptop', 10, 800)`)
	h.DB.Exec(`INSERT INTO order_lines (order_id, product, qty, unit_price) VALUES (2, 'Phone', 5, 600)`)

	r := httptest.NewRequest("GET", "/api/v1/suppliers/performance", nil)
	w := httptest.NewRecorder()
	h.Performance(w, r)
	testutil.AssertStatus(t, w, 200)

	var perf []models.SupplierPerformance
	testutil.DecodeEnvelope(t, w, &perf)
	if len(perf) != 1 {
		t.Fatalf("got %d rows, want 1", len(perf))
	}
	p := perf[0]
	if p.TotalOrders != 3 {
		t.Errorf("total_orders = %d, want 3", p.TotalOrders)
	}
	if p.TotalValue != 11000 {
		t.Errorf("total_value = %v, want 11000", p.TotalValue)
	}
	if p.OnTimeDelivery != 50 {
		t.Errorf("on_time_delivery = %v, want 50", p.OnTimeDelivery)
	}
	if p.LastOrder != "2026-08-25" {
		t.Errorf("last_order = %q, want 2026-08-25", p.LastOrder)
	}
}

func TestExportCSV(t *testing.T) {
	h := setupHandler(t)
	testutil.CreateTestSupplier(t, h.DB, "TechSupply", 7)

	r := httptest.NewRequest("GET", "/api/v1/suppliers/export", nil)
	w := httptest.NewRecorder()
	h.Export(w, r)
	testutil.AssertStatus(t, w, 200)
	if !bytes.Contains(w.Body.Bytes(), []byte("TechSupply")) {
		t.Errorf("CSV missing supplier: %s", w.Body.String())
	}
}
