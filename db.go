package main

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	// Some drivers don't parse connection string params correctly
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=10000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			password_hash TEXT DEFAULT '',
			role TEXT DEFAULT 'staff' CHECK(role IN ('admin','manager','staff')),
			active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS suppliers (
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
		)`,
		`CREATE TABLE IF NOT EXISTS products (
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
		)`,
		`CREATE TABLE IF NOT EXISTS product_suppliers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			supplier_id INTEGER NOT NULL REFERENCES suppliers(id) ON DELETE CASCADE,
			supplier_sku TEXT DEFAULT '',
			supplier_price REAL DEFAULT 0 CHECK(supplier_price >= 0),
			lead_time_days INTEGER DEFAULT 0,
			min_order_qty INTEGER DEFAULT 0,
			preferred INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
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
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
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
		)`,
		`CREATE TABLE IF NOT EXISTS order_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id INTEGER REFERENCES products(id),
			product TEXT NOT NULL,
			qty INTEGER NOT NULL CHECK(qty > 0),
			unit_price REAL DEFAULT 0 CHECK(unit_price >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
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
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT 'system',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL,
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_products_category_id ON products(category_id)",
		"CREATE INDEX IF NOT EXISTS idx_products_supplier_id ON products(supplier_id)",
		"CREATE INDEX IF NOT EXISTS idx_products_stock ON products(stock, reorder_point)",
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_product_id ON stock_movements(product_id)",
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_created_at ON stock_movements(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_type ON orders(type)",
		"CREATE INDEX IF NOT EXISTS idx_orders_supplier ON orders(supplier)",
		"CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_recommendations_status ON recommendations(status)",
		"CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("index creation: %w\nSQL: %s", err, idx)
		}
	}

	return nil
}
