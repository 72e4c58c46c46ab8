package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"
)

// Seed fixtures. Products reference categories and suppliers by name;
// runSeed resolves the references and fails fast on a missing one.

type userFixture struct {
	Email string
	Name  string
	Role  string
}

type categoryFixture struct {
	Name        string
	Description string
}

type supplierFixture struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	Category      string
	Rating        float64
	LeadTimeDays  int
	PaymentTerms  string
}

type productFixture struct {
	SKU          string
	Name         string
	Description  string
	Price        float64
	Cost         float64
	Stock        int
	ReorderPoint int
	MaxStock     int
	Location     string
	CategoryName string
	SupplierName string
}

var seedUsers = []userFixture{
	{Email: "admin@invdash.com", Name: "System Administrator", Role: "admin"},
	{Email: "manager@invdash.com", Name: "Inventory Manager", Role: "manager"},
	{Email: "staff@invdash.com", Name: "Warehouse Staff", Role: "staff"},
}

var seedCategories = []categoryFixture{
	{Name: "Electronics", Description: "Electronic devices and accessories"},
	{Name: "Clothing", Description: "Apparel and fashion items"},
	{Name: "Books", Description: "Books and educational materials"},
	{Name: "Home & Garden", Description: "Home improvement and garden supplies"},
	{Name: "Sports & Outdoors", Description: "Sports equipment and outdoor gear"},
}

var seedSuppliers = []supplierFixture{
	{Name: "TechSupply Co.", ContactPerson: "John Smith", Email: "orders@techsupply.com",
		Phone: "+1-555-0101", Address: "123 Tech Street, San Francisco, USA",
		Category: "Electronics", Rating: 4.5, LeadTimeDays: 7, PaymentTerms: "Net 30"},
	{Name: "Fashion Forward Ltd.", ContactPerson: "Sarah Johnson", Email: "purchasing@fashionforward.com",
		Phone: "+1-555-0202", Address: "456 Fashion Ave, New York, USA",
		Category: "Clothing", Rating: 4.2, LeadTimeDays: 14, PaymentTerms: "Net 15"},
	{Name: "BookWorld Distributors", ContactPerson: "Mike Wilson", Email: "sales@bookworld.com",
		Phone: "+1-555-0303", Address: "789 Literary Lane, Chicago, USA",
		Category: "Books", Rating: 4.8, LeadTimeDays: 5, PaymentTerms: "COD"},
}

var seedProducts = []productFixture{
	{SKU: "LAPTOP-001", Name: `Professional Laptop 15"`, Description: "High-performance laptop for business use",
		Price: 1299.99, Cost: 800.00, Stock: 25, ReorderPoint: 15, MaxStock: 100,
		Location: "Warehouse A - Section 1", CategoryName: "Electronics", SupplierName: "TechSupply Co."},
	{SKU: "PHONE-001", Name: "Smartphone Pro", Description: "Latest generation smartphone with advanced features",
		Price: 999.99, Cost: 600.00, Stock: 50, ReorderPoint: 30, MaxStock: 200,
		Location: "Warehouse A - Section 2", CategoryName: "Electronics", SupplierName: "TechSupply Co."},
	{SKU: "SHIRT-001", Name: "Cotton T-Shirt (Medium)", Description: "Comfortable cotton t-shirt in various colors",
		Price: 19.99, Cost: 8.00, Stock: 150, ReorderPoint: 75, MaxStock: 500,
		Location: "Warehouse B - Section 1", CategoryName: "Clothing", SupplierName: "Fashion Forward Ltd."},
	{SKU: "BOOK-001", Name: "Business Strategy Handbook", Description: "Comprehensive guide to modern business strategies",
		Price: 29.99, Cost: 15.00, Stock: 75, ReorderPoint: 40, MaxStock: 200,
		Location: "Warehouse B - Section 2", CategoryName: "Books", SupplierName: "BookWorld Distributors"},
	{SKU: "TOOL-001", Name: "Professional Drill Set", Description: "Complete drill set with various bits and accessories",
		Price: 89.99, Cost: 45.00, Stock: 30, ReorderPoint: 15, MaxStock: 80,
		Location: "Warehouse A - Section 3", CategoryName: "Home & Garden", SupplierName: "TechSupply Co."},
}

// runSeed wipes and repopulates the database. It is one-shot and
// non-idempotent: deletions precede inserts, so a failure part way
// through leaves a partially empty database. Fixture data only.
func runSeed(db *sql.DB) error {
	log.Println("seed: cleaning existing data")

	// Reverse foreign-key order so deletes never trip a constraint.
	wipe := []string{
		"recommendations", "order_lines", "orders", "stock_movements",
		"product_suppliers", "products", "categories", "suppliers", "users",
	}
	for _, table := range wipe {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	// Users, categories and suppliers are independent of each other, so
	// they load concurrently; the group waits for all three.
	log.Println("seed: creating users, categories, suppliers")
	var g errgroup.Group
	g.Go(func() error {
		hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		for _, u := range seedUsers {
			if _, err := db.Exec("INSERT INTO users (email, name, password_hash, role) VALUES (?, ?, ?, ?)",
				u.Email, u.Name, string(hash), u.Role); err != nil {
				return fmt.Errorf("insert user %s: %w", u.Email, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, c := range seedCategories {
			if _, err := db.Exec("INSERT INTO categories (name, description) VALUES (?, ?)",
				c.Name, c.Description); err != nil {
				return fmt.Errorf("insert category %s: %w", c.Name, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, s := range seedSuppliers {
			if _, err := db.Exec(`INSERT INTO suppliers (name, contact_person, email, phone, address, category, rating, lead_time_days, payment_terms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.Category, s.Rating, s.LeadTimeDays, s.PaymentTerms); err != nil {
				return fmt.Errorf("insert supplier %s: %w", s.Name, err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var adminID int
	if err := db.QueryRow("SELECT id FROM users WHERE role='admin'").Scan(&adminID); err != nil {
		return fmt.Errorf("find admin user: %w", err)
	}

	log.Println("seed: creating products")
	now := time.Now().Format("2006-01-02 15:04:05")
	for _, p := range seedProducts {
		var categoryID int
		if err := db.QueryRow("SELECT id FROM categories WHERE name=?", p.CategoryName).Scan(&categoryID); err != nil {
			return fmt.Errorf("product %s: category %q not found: %w", p.SKU, p.CategoryName, err)
		}
		var supplierID int
		var leadTime int
		if err := db.QueryRow("SELECT id, lead_time_days FROM suppliers WHERE name=?", p.SupplierName).Scan(&supplierID, &leadTime); err != nil {
			return fmt.Errorf("product %s: supplier %q not found: %w", p.SKU, p.SupplierName, err)
		}

		res, err := db.Exec(`INSERT INTO products (sku, name, description, category_id, price, cost, stock, reorder_point, max_stock, supplier_id, location, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.SKU, p.Name, p.Description, categoryID, p.Price, p.Cost, p.Stock, p.ReorderPoint, p.MaxStock, supplierID, p.Location, adminID)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.SKU, err)
		}
		productID, _ := res.LastInsertId()

		if _, err := db.Exec(`INSERT INTO product_suppliers (product_id, supplier_id, supplier_sku, supplier_price, lead_time_days, min_order_qty, preferred)
			VALUES (?, ?, ?, ?, ?, ?, 1)`,
			productID, supplierID, "SUP-"+p.SKU, p.Cost, leadTime, 10); err != nil {
			return fmt.Errorf("link product %s: %w", p.SKU, err)
		}

		if _, err := db.Exec(`INSERT INTO stock_movements (product_id, type, qty, reason, reference, stock_before, stock_after, unit_cost, total_cost, created_by, created_at)
			VALUES (?, 'in', ?, 'Initial stock import', 'SEED-001', 0, ?, ?, ?, 'admin', ?)`,
			productID, p.Stock, p.Stock, p.Cost, p.Cost*float64(p.Stock), now); err != nil {
			return fmt.Errorf("initial movement %s: %w", p.SKU, err)
		}
	}

	log.Println("seed: creating sample order")
	var laptopID int
	var laptopCost float64
	if err := db.QueryRow("SELECT id, cost FROM products WHERE sku='LAPTOP-001'").Scan(&laptopID, &laptopCost); err != nil {
		return fmt.Errorf("laptop product not found for purchase order: %w", err)
	}

	year := time.Now().Format("2006")
	today := time.Now().Format("2006-01-02")
	expected := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	res, err := db.Exec(`INSERT INTO orders (number, type, supplier, date, status, delivery_date, priority, notes)
		VALUES (?, 'Purchase', 'TechSupply Co.', ?, 'Pending', ?, 'High', 'Quarterly laptop restocking order')`,
		"PO-"+year+"-001", today, expected)
	if err != nil {
		return fmt.Errorf("insert purchase order: %w", err)
	}
	orderID, _ := res.LastInsertId()
	if _, err := db.Exec(`INSERT INTO order_lines (order_id, product_id, product, qty, unit_price) VALUES (?, ?, ?, 20, ?)`,
		orderID, laptopID, `Professional Laptop 15"`, laptopCost); err != nil {
		return fmt.Errorf("insert purchase order line: %w", err)
	}

	log.Println("seed: creating sample recommendation")
	var phoneID, phoneStock int
	if err := db.QueryRow("SELECT id, stock FROM products WHERE sku='PHONE-001'").Scan(&phoneID, &phoneStock); err != nil {
		return fmt.Errorf("phone product not found for recommendation: %w", err)
	}
	expires := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	if _, err := db.Exec(`INSERT INTO recommendations (id, product_id, type, current_stock, suggested_qty, action, reasoning, confidence, status, expires_at)
		VALUES (?, ?, 'reorder', ?, 75, 'Order 75 units from TechSupply Co.',
			'Based on sales velocity and seasonal trends, current stock will be depleted in 12 days. Recommended reorder to maintain service levels.',
			0.85, 'pending', ?)`,
		uuid.NewString(), phoneID, phoneStock, expires); err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}

	log.Printf("seed: done (%d users, %d categories, %d suppliers, %d products, 1 order, 1 recommendation)",
		len(seedUsers), len(seedCategories), len(seedSuppliers), len(seedProducts))
	return nil
}
