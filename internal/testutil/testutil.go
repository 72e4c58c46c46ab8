// Package testutil provides shared helpers for handler tests: an
// in-memory SQLite database with the full schema, fixture inserters
// and response envelope decoders.
package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"invdash/internal/models"

	_ "modernc.org/sqlite"
)

var testDBCounter atomic.Int64

// SetupTestDB creates an in-memory SQLite database with foreign keys
// enabled and the full schema created.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	// A plain ":memory:" DSN gives every pooled connection its own empty
	// database; a uniquely named shared-cache DSN makes the pool share one.
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_pragma=foreign_keys(1)",
		testDBCounter.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	createTables(t, db)
	return db
}

func createTables(t *testing.T, db *sql.DB) {
	t.Helper()
	tables := []struct {
		name string
		ddl  string
	}{
		{"users", `CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			password_hash TEXT DEFAULT '',
			role TEXT DEFAULT 'staff' CHECK(role IN ('admin','manager','staff')),
			active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"categories", `CREATE TABLE categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"suppliers", `CREATE TABLE suppliers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			contact_person TEXT DEFAULT '',
			email TEXT DEFAULT '',
			phone TEXT DEFAULT '',
			address TEXT DEFAULT '',
			category TEXT DEFAULT '',
			rating REAL DEFAULT 0 CHECK(rating >= 0 AND rating <= 5),
			lead_time_days INTEGER DEFAULT 0 CHECK(lead_time_days >= 0),
			payment_terms TEXT DEFAULT '',
			status TEXT DEFAULT 'Active' CHECK(status IN ('Active','Inactive')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"products", `CREATE TABLE products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sku TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			description TEXT DEFAULT '',
			category_id INTEGER REFERENCES categories(id),
			price REAL DEFAULT 0 CHECK(price >= 0),
			cost REAL DEFAULT 0 CHECK(cost >= 0),
			stock INTEGER DEFAULT 0 CHECK(stock >= 0),
			reorder_point INTEGER DEFAULT 0 CHECK(reorder_point >= 0),
			max_stock INTEGER DEFAULT 0 CHECK(max_stock >= 0),
			supplier_id INTEGER REFERENCES suppliers(id),
			location TEXT DEFAULT '',
			active INTEGER DEFAULT 1,
			created_by INTEGER REFERENCES users(id),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"product_suppliers", `CREATE TABLE product_suppliers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			supplier_id INTEGER NOT NULL REFERENCES suppliers(id) ON DELETE CASCADE,
			supplier_sku TEXT DEFAULT '',
			supplier_price REAL DEFAULT 0 CHECK(supplier_price >= 0),
			lead_time_days INTEGER DEFAULT 0,
			min_order_qty INTEGER DEFAULT 0,
			preferred INTEGER DEFAULT 0
		)`},
		{"stock_movements", `CREATE TABLE stock_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			type TEXT NOT NULL CHECK(type IN ('in','out','adjustment','transfer','return')),
			qty INTEGER NOT NULL,
			reason TEXT DEFAULT '',
			reference TEXT DEFAULT '',
			stock_before INTEGER DEFAULT 0,
			stock_after INTEGER DEFAULT 0,
			unit_cost REAL DEFAULT 0,
			total_cost REAL DEFAULT 0,
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"orders", `CREATE TABLE orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			number TEXT UNIQUE NOT NULL,
			type TEXT NOT NULL CHECK(type IN ('Purchase','Sales')),
			supplier TEXT DEFAULT '',
			customer TEXT DEFAULT '',
			date TEXT NOT NULL,
			status TEXT DEFAULT 'Pending' CHECK(status IN ('Pending','Processing','Shipped','Delivered','Cancelled')),
			delivery_date TEXT DEFAULT '',
			delivered_at DATETIME,
			priority TEXT DEFAULT 'Medium' CHECK(priority IN ('Low','Medium','High')),
			notes TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CHECK ((supplier <> '') + (customer <> '') = 1)
		)`},
		{"order_lines", `CREATE TABLE order_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id INTEGER REFERENCES products(id),
			product TEXT NOT NULL,
			qty INTEGER NOT NULL CHECK(qty > 0),
			unit_price REAL DEFAULT 0 CHECK(unit_price >= 0)
		)`},
		{"recommendations", `CREATE TABLE recommendations (
			id TEXT PRIMARY KEY,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			type TEXT NOT NULL CHECK(type IN ('reorder','overstock','seasonal','trend')),
			current_stock INTEGER DEFAULT 0,
			suggested_qty INTEGER DEFAULT 0,
			action TEXT DEFAULT '',
			reasoning TEXT DEFAULT '',
			confidence REAL DEFAULT 0 CHECK(confidence >= 0 AND confidence <= 1),
			status TEXT DEFAULT 'pending' CHECK(status IN ('pending','approved','rejected')),
			expires_at TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"audit_log", `CREATE TABLE audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT 'system',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL,
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
	}
	for _, tbl := range tables {
		if _, err := db.Exec(tbl.ddl); err != nil {
			t.Fatalf("Failed to create table %s: %v", tbl.name, err)
		}
	}
}

// CreateTestCategory inserts a category and returns its id.
func CreateTestCategory(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	res, err := db.Exec("INSERT INTO categories (name) VALUES (?)", name)
	if err != nil {
		t.Fatalf("Failed to create category %s: %v", name, err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

// CreateTestSupplier inserts an active supplier and returns its id.
func CreateTestSupplier(t *testing.T, db *sql.DB, name string, leadTimeDays int) int {
	t.Helper()
	res, err := db.Exec("INSERT INTO suppliers (name, lead_time_days) VALUES (?, ?)", name, leadTimeDays)
	if err != nil {
		t.Fatalf("Failed to create supplier %s: %v", name, err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

// TestProduct describes a product fixture.
type TestProduct struct {
	SKU          string
	Name         string
	CategoryID   int
	SupplierID   int
	Price        float64
	Cost         float64
	Stock        int
	ReorderPoint int
	MaxStock     int
}

// CreateTestProduct inserts a product fixture and returns its id.
func CreateTestProduct(t *testing.T, db *sql.DB, p TestProduct) int {
	t.Helper()
	var categoryID, supplierID interface{}
	if p.CategoryID != 0 {
		categoryID = p.CategoryID
	}
	if p.SupplierID != 0 {
		supplierID = p.SupplierID
	}
	res, err := db.Exec(`INSERT INTO products (sku, name, category_id, price, cost, stock, reorder_point, max_stock, supplier_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SKU, p.Name, categoryID, p.Price, p.Cost, p.Stock, p.ReorderPoint, p.MaxStock, supplierID)
	if err != nil {
		t.Fatalf("Failed to create product %s: %v", p.SKU, err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

// CreateTestMovement inserts a stock movement with an explicit
// timestamp so velocity windows can be exercised.
func CreateTestMovement(t *testing.T, db *sql.DB, productID int, mtype string, qty int, createdAt string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO stock_movements (product_id, type, qty, reason, created_at)
		VALUES (?, ?, ?, 'test', ?)`, productID, mtype, qty, createdAt)
	if err != nil {
		t.Fatalf("Failed to create movement: %v", err)
	}
}

// DecodeAPIResponse decodes the standard response envelope.
func DecodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API response: %v", err)
	}
	return resp
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an API response envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}
