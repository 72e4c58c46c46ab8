// Package recommend generates stock recommendations from movement
// history. The engine is rule based: sales velocity comes from recent
// outbound movements, and each rule produces a suggestion with a
// confidence score reflecting how much history backed it.
package recommend

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"invdash/internal/models"
)

// Engine produces recommendations for the current product set.
type Engine interface {
	Generate(db *sql.DB) ([]models.Recommendation, error)
}

// RuleEngine is the default Engine. VelocityWindow is the number of
// days of movement history considered; Now is injectable for tests.
type RuleEngine struct {
	VelocityWindow int
	Now            func() time.Time
}

// NewRuleEngine returns a RuleEngine with a 30 day window.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{VelocityWindow: 30, Now: time.Now}
}

// productFacts is everything the rules need about one product.
type productFacts struct {
	ID           int
	Name         string
	Stock        int
	ReorderPoint int
	MaxStock     int
	LeadTimeDays int

	DailySales float64
	OutMoves   int
	RecentOut  float64
	PriorOut   float64
}

// Generate runs every rule over every active product. At most one
// recommendation is produced per product, first matching rule wins:
// reorder beats overstock beats trend.
func (e *RuleEngine) Generate(db *sql.DB) ([]models.Recommendation, error) {
	facts, err := e.gather(db)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	expires := now.AddDate(0, 0, 7).Format("2006-01-02 15:04:05")

	var recs []models.Recommendation
	for _, f := range facts {
		var r *models.Recommendation
		for _, rule := range []func(productFacts) *models.Recommendation{e.reorder, e.overstock, e.trend} {
			if r = rule(f); r != nil {
				break
			}
		}
		if r == nil {
			continue
		}
		r.ID = uuid.NewString()
		r.Product = f.Name
		r.CurrentStock = f.Stock
		r.Status = "pending"
		r.ExpiresAt = expires
		recs = append(recs, *r)
	}
	return recs, nil
}

func (e *RuleEngine) gather(db *sql.DB) ([]productFacts, error) {
	rows, err := db.Query(`SELECT p.id, p.name, p.stock, p.reorder_point, p.max_stock, COALESCE(s.lead_time_days, 0)
		FROM products p LEFT JOIN suppliers s ON p.supplier_id = s.id
		WHERE p.active = 1`)
	if err != nil {
		return nil, err
	}
	var facts []productFacts
	for rows.Next() {
		var f productFacts
		if err := rows.Scan(&f.ID, &f.Name, &f.Stock, &f.ReorderPoint, &f.MaxStock, &f.LeadTimeDays); err != nil {
			rows.Close()
			return nil, err
		}
		facts = append(facts, f)
	}
	rows.Close()

	window := e.VelocityWindow
	if window <= 0 {
		window = 30
	}
	now := e.Now()
	since := now.AddDate(0, 0, -window).Format("2006-01-02 15:04:05")
	mid := now.AddDate(0, 0, -window/2).Format("2006-01-02 15:04:05")

	for i := range facts {
		f := &facts[i]
		err := db.QueryRow(`SELECT COALESCE(SUM(qty),0), COUNT(*) FROM stock_movements
			WHERE product_id = ? AND type = 'out' AND created_at >= ?`, f.ID, since).
			Scan(&f.RecentOut, &f.OutMoves)
		if err != nil {
			return nil, err
		}
		var recentHalf float64
		err = db.QueryRow(`SELECT COALESCE(SUM(qty),0) FROM stock_movements
			WHERE product_id = ? AND type = 'out' AND created_at >= ?`, f.ID, mid).
			Scan(&recentHalf)
		if err != nil {
			return nil, err
		}
		f.PriorOut = f.RecentOut - recentHalf
		f.RecentOut = recentHalf
		f.DailySales = (f.RecentOut + f.PriorOut) / float64(window)
	}
	return facts, nil
}

// reorder fires when projected stock cannot cover the supplier lead
// time plus safety stock. Suggested quantity refills to 30 days of
// cover, capped at max stock.
func (e *RuleEngine) reorder(f productFacts) *models.Recommendation {
	lead := f.LeadTimeDays
	if lead == 0 {
		lead = 7
	}
	safety := math.Ceil(f.DailySales * float64(lead) * 0.5)
	reorderAt := f.DailySales*float64(lead) + safety
	if float64(f.ReorderPoint) > reorderAt {
		reorderAt = float64(f.ReorderPoint)
	}
	if float64(f.Stock) > reorderAt {
		return nil
	}

	target := math.Ceil(f.DailySales * 30)
	if target < float64(f.ReorderPoint)*2 {
		target = float64(f.ReorderPoint) * 2
	}
	qty := int(target) - f.Stock
	if f.MaxStock > 0 && f.Stock+qty > f.MaxStock {
		qty = f.MaxStock - f.Stock
	}
	if qty <= 0 {
		return nil
	}

	daysLeft := math.Inf(1)
	if f.DailySales > 0 {
		daysLeft = float64(f.Stock) / f.DailySales
	}
	reasoning := fmt.Sprintf("Stock %d is at or below reorder level %.0f", f.Stock, reorderAt)
	if !math.IsInf(daysLeft, 1) {
		reasoning = fmt.Sprintf("Stock %d covers %.0f days at current velocity (%.1f/day); lead time is %d days",
			f.Stock, daysLeft, f.DailySales, lead)
	}
	return &models.Recommendation{
		ProductID:    f.ID,
		Type:         "reorder",
		SuggestedQty: qty,
		Action:       fmt.Sprintf("Order %d units", qty),
		Reasoning:    reasoning,
		Confidence:   confidence(0.6, f.OutMoves),
	}
}

// overstock fires when stock exceeds max stock, or sits above 90 days
// of cover with real sales history.
func (e *RuleEngine) overstock(f productFacts) *models.Recommendation {
	over := f.MaxStock > 0 && f.Stock > f.MaxStock
	slow := f.DailySales > 0 && float64(f.Stock)/f.DailySales > 90
	if !over && !slow {
		return nil
	}

	target := f.MaxStock
	if target == 0 || (slow && f.DailySales > 0) {
		t := int(math.Ceil(f.DailySales * 60))
		if target == 0 || t < target {
			target = t
		}
	}
	excess := f.Stock - target
	if excess <= 0 {
		return nil
	}

	reasoning := fmt.Sprintf("Stock %d exceeds maximum %d", f.Stock, f.MaxStock)
	if slow {
		reasoning = fmt.Sprintf("Stock %d covers over 90 days at current velocity (%.1f/day)", f.Stock, f.DailySales)
	}
	return &models.Recommendation{
		ProductID:    f.ID,
		Type:         "overstock",
		SuggestedQty: excess,
		Action:       fmt.Sprintf("Reduce stock by %d units", excess),
		Reasoning:    reasoning,
		Confidence:   confidence(0.5, f.OutMoves),
	}
}

// trend fires on a clear demand shift between the two halves of the
// velocity window.
func (e *RuleEngine) trend(f productFacts) *models.Recommendation {
	if f.PriorOut < 5 || f.RecentOut < 1 {
		return nil
	}
	ratio := f.RecentOut / f.PriorOut
	if ratio >= 0.6 && ratio <= 1.5 {
		return nil
	}

	if ratio > 1.5 {
		growth := (ratio - 1) * 100
		qty := int(math.Ceil((f.RecentOut - f.PriorOut) * 2))
		return &models.Recommendation{
			ProductID:    f.ID,
			Type:         "trend",
			SuggestedQty: qty,
			Action:       fmt.Sprintf("Consider ordering %d extra units", qty),
			Reasoning:    fmt.Sprintf("Demand up %.0f%% over the last %d days", growth, e.VelocityWindow/2),
			Confidence:   confidence(0.45, f.OutMoves),
		}
	}
	decline := (1 - ratio) * 100
	return &models.Recommendation{
		ProductID:    f.ID,
		Type:         "trend",
		SuggestedQty: 0,
		Action:       "Hold off on restocking",
		Reasoning:    fmt.Sprintf("Demand down %.0f%% over the last %d days", decline, e.VelocityWindow/2),
		Confidence:   confidence(0.45, f.OutMoves),
	}
}

// confidence scales a rule's base score by how many movements backed
// it, capped at 0.95.
func confidence(base float64, moves int) float64 {
	c := base + math.Min(float64(moves), 10)*0.035
	if c > 0.95 {
		c = 0.95
	}
	return math.Round(c*100) / 100
}
