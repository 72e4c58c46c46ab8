package insights

import (
	"database/sql"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"invdash/internal/models"
	"invdash/internal/recommend"
	"invdash/internal/testutil"
	"invdash/internal/websocket"
)

// stubEngine returns canned recommendations so handler behavior can be
// tested without movement fixtures.
type stubEngine struct {
	recs []models.Recommendation
	err  error
}

func (s *stubEngine) Generate(db *sql.DB) ([]models.Recommendation, error) {
	return s.recs, s.err
}

func setupHandler(t *testing.T, eng recommend.Engine) *Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	if eng == nil {
		eng = recommend.NewRuleEngine()
	}
	return &Handler{DB: db, Hub: websocket.NewHub(), Engine: eng}
}

func insertRec(t *testing.T, db *sql.DB, productID int, recType, status string) string {
	t.Helper()
	id := uuid.NewString()
	expires := time.Now().AddDate(0, 0, 7).Format("2006-01-02 15:04:05")
	_, err := db.Exec(`INSERT INTO recommendations (id, product_id, type, current_stock, suggested_qty, action, reasoning, confidence, status, expires_at)
		VALUES (?, ?, ?, 5, 75, 'Order 75 units', 'test fixture', 0.85, ?, ?)`,
		id, productID, recType, status, expires)
	if err != nil {
		t.Fatalf("insert recommendation: %v", err)
	}
	return id
}

func TestGenerateReplacesPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pid := testutil.CreateTestProduct(t, db, testutil.TestProduct{SKU: "A", Name: "Widget", Stock: 5, ReorderPoint: 20})

	eng := &stubEngine{recs: []models.Recommendation{{
		ID: uuid.NewString(), ProductID: pid, Type: "reorder", CurrentStock: 5,
		SuggestedQty: 35, Action: "Order 35 units", Reasoning: "low stock",
		Confidence: 0.7, Status: "pending",
		ExpiresAt: time.Now().AddDate(0, 0, 7).Format("2006-01-02 15:04:05"),
	}}}
	h := &Handler{DB: db, Hub: websocket.NewHub(), Engine: eng}

	stale := insertRec(t, db, pid, "overstock", "pending")
	kept := insertRec(t, db, pid, "reorder", "approved")

	r := httptest.NewRequest("POST", "/api/v1/insights/generate", nil)
	w := httptest.NewRecorder()
	h.Generate(w, r)
	testutil.AssertStatus(t, w, 200)

	var exists int
	db.QueryRow("SELECT COUNT(*) FROM recommendations WHERE id=?", stale).Scan(&exists)
	if exists != 0 {
		t.Error("stale pending recommendation survived regeneration")
	}
	db.QueryRow("SELECT COUNT(*) FROM recommendations WHERE id=?", kept).Scan(&exists)
	if exists != 1 {
		t.Error("approved recommendation was deleted by regeneration")
	}
	var pending int
	db.QueryRow("SELECT COUNT(*) FROM recommendations WHERE status='pending'").Scan(&pending)
	if pending != 1 {
		t.Errorf("pending count = %d, want 1", pending)
	}
}

func TestApproveReorderRaisesPurchaseOrder(t *testing.T) {
	h := setupHandler(t, nil)
	sid := testutil.CreateTestSupplier(t, h.DB, "TechSupply Co.", 7)
	pid := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{
		SKU: "PHONE-001", Name: "Smartphone", Cost: 600, Stock: 5, ReorderPoint: 20, SupplierID: sid,
	})
	id := insertRec(t, h.DB, pid, "reorder", "pending")

	r := httptest.NewRequest("POST", "/api/v1/insights/"+id+"/approve", nil)
	w := httptest.NewRecorder()
	h.Approve(w, r, id)
	testutil.AssertStatus(t, w, 200)

	var status string
	h.DB.QueryRow("SELECT status FROM recommendations WHERE id=?", id).Scan(&status)
	if status != "approved" {
		t.Errorf("recommendation status = %q, want approved", status)
	}

	var number, orderStatus, supplier string
	err := h.DB.QueryRow("SELECT number, status, supplier FROM orders WHERE type='Purchase'").Scan(&number, &orderStatus, &supplier)
	if err != nil {
		t.Fatalf("expected raised purchase order: %v", err)
	}
	if orderStatus != "Pending" || supplier != "TechSupply Co." {
		t.Errorf("order = %s %s from %s, want Pending from TechSupply Co.", number, orderStatus, supplier)
	}
	var qty int
	var price float64
	h.DB.QueryRow("SELECT qty, unit_price FROM order_lines WHERE product_id=?", pid).Scan(&qty, &price)
	if qty != 75 || price != 600 {
		t.Errorf("line = %d @ %v, want 75 @ 600", qty, price)
	}
}

func TestApproveWithoutSupplierFails(t *testing.T) {
	h := setupHandler(t, nil)
	pid := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A", Name: "Orphan", Stock: 5})
	id := insertRec(t, h.DB, pid, "reorder", "pending")

	r := httptest.NewRequest("POST", "/api/v1/insights/"+id+"/approve", nil)
	w := httptest.NewRecorder()
	h.Approve(w, r, id)
	testutil.AssertStatus(t, w, 400)

	// Still pending; nothing was committed.
	var status string
	h.DB.QueryRow("SELECT status FROM recommendations WHERE id=?", id).Scan(&status)
	if status != "pending" {
		t.Errorf("status = %q, want pending", status)
	}
}

func TestRejectAndDoubleDecision(t *testing.T) {
	h := setupHandler(t, nil)
	pid := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A", Name: "Widget", Stock: 5})
	id := insertRec(t, h.DB, pid, "reorder", "pending")

	r := httptest.NewRequest("POST", "/api/v1/insights/"+id+"/reject", nil)
	w := httptest.NewRecorder()
	h.Reject(w, r, id)
	testutil.AssertStatus(t, w, 200)

	// A decided recommendation cannot be decided again.
	w = httptest.NewRecorder()
	h.Reject(w, r, id)
	testutil.AssertStatus(t, w, 400)

	w = httptest.NewRecorder()
	h.Approve(w, r, id)
	testutil.AssertStatus(t, w, 400)
}

func TestListFiltersAndHidesExpired(t *testing.T) {
	h := setupHandler(t, nil)
	pid := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A", Name: "Widget", Stock: 5})

	insertRec(t, h.DB, pid, "reorder", "pending")
	insertRec(t, h.DB, pid, "overstock", "rejected")

	expired := uuid.NewString()
	past := time.Now().AddDate(0, 0, -1).Format("2006-01-02 15:04:05")
	h.DB.Exec(`INSERT INTO recommendations (id, product_id, type, status, expires_at) VALUES (?, ?, 'trend', 'pending', ?)`,
		expired, pid, past)

	r := httptest.NewRequest("GET", "/api/v1/insights", nil)
	w := httptest.NewRecorder()
	h.List(w, r)
	var recs []models.Recommendation
	testutil.DecodeEnvelope(t, w, &recs)
	if len(recs) != 2 {
		t.Errorf("unfiltered: got %d, want 2 (expired hidden)", len(recs))
	}

	r = httptest.NewRequest("GET", "/api/v1/insights?type=reorder&status=pending", nil)
	w = httptest.NewRecorder()
	h.List(w, r)
	testutil.DecodeEnvelope(t, w, &recs)
	if len(recs) != 1 || recs[0].Type != "reorder" {
		t.Errorf("filtered: got %+v, want one reorder", recs)
	}

	// Bad filter values are rejected, not silently ignored.
	r = httptest.NewRequest("GET", "/api/v1/insights?type=bogus", nil)
	w = httptest.NewRecorder()
	h.List(w, r)
	testutil.AssertStatus(t, w, 400)
}

func TestPredictions(t *testing.T) {
	h := setupHandler(t, nil)
	pid := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A", Name: "Mover", Stock: 60})
	recent := time.Now().AddDate(0, 0, -5).Format("2006-01-02 15:04:05")
	testutil.CreateTestMovement(t, h.DB, pid, "out", 30, recent)

	r := httptest.NewRequest("GET", "/api/v1/insights/predictions", nil)
	w := httptest.NewRecorder()
	h.Predictions(w, r)
	testutil.AssertStatus(t, w, 200)

	var preds []Prediction
	testutil.DecodeEnvelope(t, w, &preds)
	if len(preds) != 1 {
		t.Fatalf("got %d predictions, want 1", len(preds))
	}
	p := preds[0]
	if p.DailySales != 1.0 {
		t.Errorf("daily_sales = %v, want 1.0", p.DailySales)
	}
	if p.DaysUntilEmpty != 60 {
		t.Errorf("days_until_empty = %v, want 60", p.DaysUntilEmpty)
	}
	if p.ForecastDemand != 30 {
		t.Errorf("forecast_demand_30d = %d, want 30", p.ForecastDemand)
	}
}

func TestTrends(t *testing.T) {
	h := setupHandler(t, nil)
	cat := testutil.CreateTestCategory(t, h.DB, "Electronics")
	pid := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{SKU: "A", Name: "Hot", CategoryID: cat, Stock: 100})

	prior := time.Now().AddDate(0, 0, -45).Format("2006-01-02 15:04:05")
	recent := time.Now().AddDate(0, 0, -5).Format("2006-01-02 15:04:05")
	testutil.CreateTestMovement(t, h.DB, pid, "out", 10, prior)
	testutil.CreateTestMovement(t, h.DB, pid, "out", 20, recent)

	r := httptest.NewRequest("GET", "/api/v1/insights/trends", nil)
	w := httptest.NewRecorder()
	h.Trends(w, r)
	testutil.AssertStatus(t, w, 200)

	var trends []Trend
	testutil.DecodeEnvelope(t, w, &trends)
	if len(trends) != 1 {
		t.Fatalf("got %d trends, want 1", len(trends))
	}
	tr := trends[0]
	if tr.Category != "Electronics" || tr.Recent != 20 || tr.Prior != 10 {
		t.Errorf("trend = %+v, want Electronics 20/10", tr)
	}
	if tr.Direction != "up" || tr.ChangePct != 100 {
		t.Errorf("direction = %s %.1f%%, want up 100%%", tr.Direction, tr.ChangePct)
	}
}

func TestApproveNumbersPastExistingOrders(t *testing.T) {
	h := setupHandler(t, nil)
	sid := testutil.CreateTestSupplier(t, h.DB, "TechSupply Co.", 7)
	pid := testutil.CreateTestProduct(t, h.DB, testutil.TestProduct{
		SKU: "PHONE-001", Name: "Smartphone", Cost: 600, Stock: 5, ReorderPoint: 20, SupplierID: sid,
	})

	// A gap in the sequence (001 deleted, 003 remaining) must not make
	// the next allocation collide with a surviving number.
	year := time.Now().Year()
	existing := fmt.Sprintf("PO-%d-003", year)
	if _, err := h.DB.Exec("INSERT INTO orders (number, type, supplier, date) VALUES (?, 'Purchase', 'TechSupply Co.', '2026-08-01')", existing); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	id := insertRec(t, h.DB, pid, "reorder", "pending")
	r := httptest.NewRequest("POST", "/api/v1/insights/"+id+"/approve", nil)
	w := httptest.NewRecorder()
	h.Approve(w, r, id)
	testutil.AssertStatus(t, w, 200)

	want := fmt.Sprintf("PO-%d-004", year)
	var count int
	h.DB.QueryRow("SELECT COUNT(*) FROM orders WHERE number=?", want).Scan(&count)
	if count != 1 {
		t.Errorf("raised order %s not found", want)
	}
}
