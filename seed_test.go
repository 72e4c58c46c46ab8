package main

import (
	"testing"

	"invdash/internal/testutil"
)

func TestRunSeedPopulatesEverything(t *testing.T) {
	db := testutil.SetupTestDB(t)

	if err := runSeed(db); err != nil {
		t.Fatalf("runSeed: %v", err)
	}

	counts := map[string]int{
		"users":             len(seedUsers),
		"categories":        len(seedCategories),
		"suppliers":         len(seedSuppliers),
		"products":          len(seedProducts),
		"product_suppliers": len(seedProducts),
		"stock_movements":   len(seedProducts),
		"orders":            1,
		"order_lines":       1,
		"recommendations":   1,
	}
	for table, want := range counts {
		var got int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Errorf("%s: got %d rows, want %d", table, got, want)
		}
	}

	// Every product resolved its category and supplier references.
	var orphans int
	db.QueryRow("SELECT COUNT(*) FROM products WHERE category_id IS NULL OR supplier_id IS NULL").Scan(&orphans)
	if orphans != 0 {
		t.Errorf("%d products with unresolved references", orphans)
	}

	// The sample purchase order carries the laptop at cost.
	var qty int
	var price float64
	if err := db.QueryRow(`SELECT l.qty, l.unit_price FROM order_lines l
		JOIN orders o ON l.order_id = o.id WHERE o.type='Purchase'`).Scan(&qty, &price); err != nil {
		t.Fatalf("sample order line: %v", err)
	}
	if qty != 20 || price != 800.00 {
		t.Errorf("sample line = %d @ %v, want 20 @ 800", qty, price)
	}
}

func TestRunSeedIsRepeatable(t *testing.T) {
	db := testutil.SetupTestDB(t)

	if err := runSeed(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runSeed(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var products int
	db.QueryRow("SELECT COUNT(*) FROM products").Scan(&products)
	if products != len(seedProducts) {
		t.Errorf("products after reseed = %d, want %d", products, len(seedProducts))
	}
}

func TestRunSeedFailsOnUnknownSupplierReference(t *testing.T) {
	db := testutil.SetupTestDB(t)

	orig := seedProducts
	defer func() { seedProducts = orig }()

	broken := make([]productFixture, len(orig))
	copy(broken, orig)
	broken[0].SupplierName = "No Such Supplier"
	seedProducts = broken

	err := runSeed(db)
	if err == nil {
		t.Fatal("expected error for unknown supplier reference")
	}

	// Fail-fast: the broken product was never inserted.
	var count int
	db.QueryRow("SELECT COUNT(*) FROM products WHERE sku=?", broken[0].SKU).Scan(&count)
	if count != 0 {
		t.Errorf("broken product was inserted despite unresolved supplier")
	}
}
