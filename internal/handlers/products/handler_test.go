package products

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

func TestCreateProductDerivesMarginAndStatus(t *testing.T) {
	h := setupHandler(t)
	testutil.CreateTestSupplier(t, h.DB, "TechSupply Co.", 7)

	body, _ := json.Marshal(map[string]interface{}{
		"sku": "LAPTOP-001", "name": "Professional Laptop", "category": "Electronics",
		"price": 1299.99, "cost": 800.00, "stock": 25, "reorder_point": 15,
		"supplier": "TechSupply Co.",
	})
	r := httptest.NewRequest("POST", "/api/v1/products", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, r)

	testutil.AssertStatus(t, w, 200)
	var p models.Product
	testutil.DecodeEnvelope(t, w, &p)
	if p.Margin != 38.5 {
		t.Errorf("margin = %v, want 38.5", p.Margin)
	}
	if p.Status != "Active" {
		t.Errorf("status = %q, want Active", p.Status)
	}
	if p.Category != "Electronics" {
		t.Errorf("category = %q, want Electronics", p.Category)
	}

	// Initial stock produces an 'in' movement.
	var mtype string
	var qty int
	if err := h.DB.QueryRow("SELECT type, qty FROM stock_movements WHERE product_id=?", p.ID).Scan(&mtype, &qty); err != nil {
		t.Fatalf("expected initial movement: %v", err)
	}
	if mtype != "in" || qty != 25 {
		t.Errorf("initial movement = %s/%d, want in/25", mtype, qty)
	}
}

func TestCreateProductUnknownSupplierRejected(t *testing.T) {
	h := setupHandler(t)

	body, _ := json.Marshal(map[string]interface{}{
		"sku": "X-001", "name": "Widget", "price": 10.0, "cost": 5.0,
		"supplier": "Nobody Inc.",
	})
	r := httptest.NewRequest("POST", "/api/v1/products", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, r)

	testutil.AssertStatus(t, w, 400)
}

func TestUpdateProductRecomputesMargin(t *testing.T) {
	h := setupHandler(t)
	id := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{
		SKU: "PHONE-001", Name: "Smartphone", Price: 100, Cost: 40, Stock: 50, ReorderPoint: 30,
	})

	body, _ := json.Marshal(map[string]interface{}{"cost": 55.0})
	r := httptest.NewRequest("PUT", "/api/v1/products/1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Update(w, r, itoa(id))

	testutil.AssertStatus(t, w, 200)
	var p models.Product
	testutil.DecodeEnvelope(t, w, &p)
	if p.Margin != 45.0 {
		t.Errorf("margin after cost edit = %v, want 45.0", p.Margin)
	}
	// Untouched fields survive the partial update.
	if p.Price != 100 || p.Stock != 50 {
		t.Errorf("partial update clobbered fields: price=%v stock=%d", p.Price, p.Stock)
	}
}

func TestUpdateStockRecordsAdjustment(t *testing.T) {
	h := setupHandler(t)
	id := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{
		SKU: "BOOK-001", Name: "Handbook", Price: 29.99, Cost: 15, Stock: 75, ReorderPoint: 40,
	})

	body, _ := json.Marshal(map[string]interface{}{"stock": 60})
	r := httptest.NewRequest("PUT", "/api/v1/products/1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Update(w, r, itoa(id))
	testutil.AssertStatus(t, w, 200)

	var mtype string
	var qty, before, after int
	err := h.DB.QueryRow(`SELECT type, qty, stock_before, stock_after FROM stock_movements WHERE product_id=?`, id).
		Scan(&mtype, &qty, &before, &after)
	if err != nil {
		t.Fatalf("expected adjustment movement: %v", err)
	}
	if mtype != "adjustment" || qty != -15 || before != 75 || after != 60 {
		t.Errorf("movement = %s/%d (%d->%d), want adjustment/-15 (75->60)", mtype, qty, before, after)
	}
}

func TestDeleteProductRemovesExactlyOne(t *testing.T) {
	h := setupHandler(t)
	keep := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A-001", Name: "Keep"})
	gone := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A-002", Name: "Gone"})

	r := httptest.NewRequest("DELETE", "/api/v1/products/2", nil)
	w := httptest.NewRecorder()
	h.Delete(w, r, itoa(gone))
	testutil.AssertStatus(t, w, 200)

	var count int
	h.DB.QueryRow("SELECT COUNT(*) FROM products").Scan(&count)
	if count != 1 {
		t.Fatalf("product count = %d, want 1", count)
	}
	var sku string
	h.DB.QueryRow("SELECT sku FROM products WHERE id=?", keep).Scan(&sku)
	if sku != "A-001" {
		t.Errorf("wrong product deleted, remaining sku = %q", sku)
	}

	// Deleting again is a 404.
	w = httptest.NewRecorder()
	h.Delete(w, r, itoa(gone))
	testutil.AssertStatus(t, w, 404)
}

func TestListFiltersComposeInAnyOrder(t *testing.T) {
	h := setupHandler(t)
	elec := testutil.CreateTestCategory(t, h.DB, "Electronics")
	cloth := testutil.CreateTestCategory(t, h.DB, "Clothing")
	testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "LAPTOP-001", Name: "Pro Laptop", CategoryID: elec})
	testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "PHONE-001", Name: "Pro Phone", CategoryID: elec})
	testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "SHIRT-001", Name: "Pro Shirt", CategoryID: cloth})

	for _, url := range []string{
		"/api/v1/products?search=Pro&category=Electronics",
		"/api/v1/products?category=Electronics&search=Pro",
	} {
		r := httptest.NewRequest("GET", url, nil)
		w := httptest.NewRecorder()
		h.List(w, r)
		testutil.AssertStatus(t, w, 200)
		var items []models.Product
		testutil.DecodeEnvelope(t, w, &items)
		if len(items) != 2 {
			t.Errorf("%s: got %d items, want 2", url, len(items))
		}
	}

	// "all" disables the category filter.
	r := httptest.NewRequest("GET", "/api/v1/products?category=all", nil)
	w := httptest.NewRecorder()
	h.List(w, r)
	var items []models.Product
	testutil.DecodeEnvelope(t, w, &items)
	if len(items) != 3 {
		t.Errorf("category=all: got %d items, want 3", len(items))
	}
}

func TestStats(t *testing.T) {
	h := setupHandler(t)
	testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A", Name: "A", Price: 100, Cost: 40, Stock: 10, ReorderPoint: 20})
	testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "B", Name: "B", Price: 50, Cost: 25, Stock: 100, ReorderPoint: 20})

	r := httptest.NewRequest("GET", "/api/v1/products/stats", nil)
	w := httptest.NewRecorder()
	h.Stats(w, r)
	testutil.AssertStatus(t, w, 200)

	var stats struct {
		TotalProducts int     `json:"total_products"`
		LowStockCount int     `json:"low_stock_count"`
		TotalValue    float64 `json:"total_value"`
		AverageMargin float64 `json:"average_margin"`
	}
	testutil.DecodeEnvelope(t, w, &stats)
	if stats.TotalProducts != 2 {
		t.Errorf("total_products = %d, want 2", stats.TotalProducts)
	}
	if stats.LowStockCount != 1 {
		t.Errorf("low_stock_count = %d, want 1", stats.LowStockCount)
	}
	if stats.TotalValue != 6000 {
		t.Errorf("total_value = %v, want 6000", stats.TotalValue)
	}
	if stats.AverageMargin != 55.0 {
		t.Errorf("average_margin = %v, want 55.0", stats.AverageMargin)
	}
}

func TestExportCSV(t *testing.T) {
	h := setupHandler(t)
	testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A-001", Name: "Widget", Price: 10, Cost: 4, Stock: 5})

	r := httptest.NewRequest("GET", "/api/v1/products/export", nil)
	w := httptest.NewRecorder()
	h.Export(w, r)

	testutil.AssertStatus(t, w, 200)
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("A-001")) {
		t.Errorf("CSV body missing product row: %s", w.Body.String())
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func TestNegativeStockRejected(t *testing.T) {
	h := setupHandler(t)

	body, _ := json.Marshal(map[string]interface{}{
		"sku": "N-001", "name": "Widget", "price": 10.0, "cost": 5.0, "stock": -5,
	})
	r := httptest.NewRequest("POST", "/api/v1/products", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, r)
	testutil.AssertStatus(t, w, 400)

	id := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{
		SKU: "N-002", Name: "Gadget", Price: 10, Cost: 5, Stock: 10, ReorderPoint: 5,
	})
	body, _ = json.Marshal(map[string]interface{}{"stock": -40})
	r = httptest.NewRequest("PUT", "/api/v1/products/"+itoa(id), bytes.NewReader(body))
	w = httptest.NewRecorder()
	h.Update(w, r, itoa(id))
	testutil.AssertStatus(t, w, 400)

	var stock int
	h.DB.QueryRow("SELECT stock FROM products WHERE id=?", id).Scan(&stock)
	if stock != 10 {
		t.Errorf("stock after rejected update = %d, want 10", stock)
	}
}

func TestDeleteProductReferencedByOrder(t *testing.T) {
	h := setupHandler(t)
	id := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "L-001", Name: "Laptop"})

	res, err := h.DB.Exec("INSERT INTO orders (number, type, supplier, date) VALUES ('PO-2026-001','Purchase','S','2026-08-01')")
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	oid, _ := res.LastInsertId()
	if _, err := h.DB.Exec("INSERT INTO order_lines (order_id, product_id, product, qty, unit_price) VALUES (?, ?, 'Laptop', 2, 800)", oid, id); err != nil {
		t.Fatalf("insert line: %v", err)
	}

	r := httptest.NewRequest("DELETE", "/api/v1/products/"+itoa(id), nil)
	w := httptest.NewRecorder()
	h.Delete(w, r, itoa(id))
	testutil.AssertStatus(t, w, 400)

	var count int
	h.DB.QueryRow("SELECT COUNT(*) FROM products WHERE id=?", id).Scan(&count)
	if count != 1 {
		t.Error("product was deleted despite order line reference")
	}
}
