package models

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// Product is the shared product record used by every handler.
// Margin and Status are derived on read, never stored.
type Product struct {
	ID           int     `json:"id"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Cost         float64 `json:"cost"`
	Stock        int     `json:"stock"`
	ReorderPoint int     `json:"reorder_point"`
	MaxStock     int     `json:"max_stock"`
	Supplier     string  `json:"supplier"`
	Location     string  `json:"location"`
	Active       bool    `json:"active"`
	Margin       float64 `json:"margin"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// InventoryItem is the stock-centric view of a product. Status is a
// pure function of Stock and ReorderPoint, computed at read time.
type InventoryItem struct {
	ProductID    int            `json:"product_id"`
	SKU          string         `json:"sku"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Stock        int            `json:"stock"`
	ReorderPoint int            `json:"reorder_point"`
	MaxStock     int            `json:"max_stock"`
	Location     string         `json:"location"`
	Price        float64        `json:"price"`
	Cost         float64        `json:"cost"`
	StockValue   float64        `json:"stock_value"`
	Status       string         `json:"status"`
	UpdatedAt    string         `json:"updated_at"`
	LastMovement *StockMovement `json:"last_movement,omitempty"`
}

type StockMovement struct {
	ID          int     `json:"id"`
	ProductID   int     `json:"product_id"`
	Type        string  `json:"type"`
	Qty         int     `json:"qty"`
	Reason      string  `json:"reason"`
	Reference   string  `json:"reference"`
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	UnitCost    float64 `json:"unit_cost"`
	TotalCost   float64 `json:"total_cost"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
}

// Order covers both purchase and sales orders. Exactly one of
// Supplier/Customer is set, matching Type. Total is derived from lines.
type Order struct {
	ID           int         `json:"id"`
	Number       string      `json:"number"`
	Type         string      `json:"type"`
	Supplier     string      `json:"supplier,omitempty"`
	Customer     string      `json:"customer,omitempty"`
	Date         string      `json:"date"`
	Status       string      `json:"status"`
	DeliveryDate string      `json:"delivery_date"`
	DeliveredAt  *string     `json:"delivered_at,omitempty"`
	Priority     string      `json:"priority"`
	Notes        string      `json:"notes"`
	Total        float64     `json:"total"`
	Lines        []OrderLine `json:"lines,omitempty"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

type OrderLine struct {
	ID        int     `json:"id"`
	OrderID   int     `json:"order_id"`
	ProductID int     `json:"product_id"`
	Product   string  `json:"product"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

type Supplier struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	ContactPerson string  `json:"contact_person"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Address       string  `json:"address"`
	Category      string  `json:"category"`
	Rating        float64 `json:"rating"`
	LeadTimeDays  int     `json:"lead_time_days"`
	PaymentTerms  string  `json:"payment_terms"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

// SupplierPerformance is derived from the orders table on read.
type SupplierPerformance struct {
	SupplierID      int     `json:"supplier_id"`
	Name            string  `json:"name"`
	TotalOrders     int     `json:"total_orders"`
	TotalValue      float64 `json:"total_value"`
	OnTimeDelivery  float64 `json:"on_time_delivery"`
	AvgDeliveryDays float64 `json:"avg_delivery_days"`
	LastOrder       string  `json:"last_order"`
}

type Recommendation struct {
	ID           string  `json:"id"`
	ProductID    int     `json:"product_id"`
	Product      string  `json:"product"`
	Type         string  `json:"type"`
	CurrentStock int     `json:"current_stock"`
	SuggestedQty int     `json:"suggested_qty"`
	Action       string  `json:"action"`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence"`
	Status       string  `json:"status"`
	ExpiresAt    string  `json:"expires_at"`
	CreatedAt    string  `json:"created_at"`
}

type AuditEntry struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}
