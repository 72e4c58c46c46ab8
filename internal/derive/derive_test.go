package derive

import "testing"

func TestStockStatusBoundaries(t *testing.T) {
	tests := []struct {
		name         string
		stock        int
		reorderPoint int
		want         string
	}{
		{"well above point", 100, 30, StatusHealthy},
		{"just above point", 31, 30, StatusHealthy},
		{"exactly at point", 30, 30, StatusLowStock},
		{"below point", 23, 30, StatusLowStock},
		{"just above half", 16, 30, StatusLowStock},
		{"exactly at half", 15, 30, StatusCritical},
		{"below half", 10, 30, StatusCritical},
		{"zero stock", 0, 30, StatusCritical},
		{"odd point above half", 8, 15, StatusLowStock},
		{"odd point at fractional half", 7, 15, StatusCritical},
		{"no reorder point", 0, 0, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StockStatus(tt.stock, tt.reorderPoint); got != tt.want {
				t.Errorf("StockStatus(%d, %d) = %q, want %q", tt.stock, tt.reorderPoint, got, tt.want)
			}
		})
	}
}

func TestStockStatusRecoversAfterRestock(t *testing.T) {
	if got := StockStatus(23, 30); got != StatusLowStock {
		t.Fatalf("before restock: got %q, want %q", got, StatusLowStock)
	}
	if got := StockStatus(23+15, 30); got != StatusHealthy {
		t.Fatalf("after restock: got %q, want %q", got, StatusHealthy)
	}
}

func TestProductStatus(t *testing.T) {
	if got := ProductStatus(false, 100, 10); got != ProductInactive {
		t.Errorf("inactive product: got %q", got)
	}
	if got := ProductStatus(true, 5, 10); got != ProductLowStock {
		t.Errorf("low stock product: got %q", got)
	}
	if got := ProductStatus(true, 50, 10); got != ProductActive {
		t.Errorf("healthy product: got %q", got)
	}
}

func TestMargin(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		cost  float64
		want  float64
	}{
		{"laptop", 1299.99, 800.00, 38.5},
		{"phone", 999.99, 600.00, 40.0},
		{"shirt", 19.99, 8.00, 60.0},
		{"break even", 50, 50, 0},
		{"negative margin", 40, 50, -25.0},
		{"zero price", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Margin(tt.price, tt.cost); got != tt.want {
				t.Errorf("Margin(%v, %v) = %v, want %v", tt.price, tt.cost, got, tt.want)
			}
		})
	}
}

func TestMarginChangesWithCost(t *testing.T) {
	before := Margin(100, 40)
	after := Margin(100, 55)
	if before != 60.0 {
		t.Errorf("before cost change: got %v, want 60.0", before)
	}
	if after != 45.0 {
		t.Errorf("after cost change: got %v, want 45.0", after)
	}
}

func TestOrderTotal(t *testing.T) {
	lines := []Line{
		{Qty: 3, UnitPrice: 19.99},
		{Qty: 1, UnitPrice: 0.01},
		{Qty: 10, UnitPrice: 1.1},
	}
	if got := OrderTotal(lines); got != 70.98 {
		t.Errorf("OrderTotal = %v, want 70.98", got)
	}
	if got := OrderTotal(nil); got != 0 {
		t.Errorf("OrderTotal(nil) = %v, want 0", got)
	}
}

func TestStockValue(t *testing.T) {
	if got := StockValue(19.99, 150); got != 2998.50 {
		t.Errorf("StockValue = %v, want 2998.50", got)
	}
}
