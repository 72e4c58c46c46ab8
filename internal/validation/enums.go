package validation

// Common enum values - these MUST match DB CHECK constraints in db.go.
var (
	ValidOrderTypes           = []string{"Purchase", "Sales"}
	ValidOrderStatuses        = []string{"Pending", "Processing", "Shipped", "Delivered", "Cancelled"}
	ValidOrderPriorities      = []string{"Low", "Medium", "High"}
	ValidMovementTypes        = []string{"in", "out", "adjustment", "transfer", "return"}
	ValidSupplierStatuses     = []string{"Active", "Inactive"}
	ValidRecommendationTypes  = []string{"reorder", "overstock", "seasonal", "trend"}
	ValidRecommendationStatus = []string{"pending", "approved", "rejected"}
	ValidUserRoles            = []string{"admin", "manager", "staff"}
)

// OrderTransitions maps each order status to the statuses it may move
// to. Cancellation is only possible before the order has shipped.
var OrderTransitions = map[string][]string{
	"Pending":    {"Processing", "Cancelled"},
	"Processing": {"Shipped", "Cancelled"},
	"Shipped":    {"Delivered"},
	"Delivered":  {},
	"Cancelled":  {},
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, s := range OrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
