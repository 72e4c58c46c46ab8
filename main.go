package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"invdash/internal/handlers/dashboard"
	"invdash/internal/handlers/insights"
	"invdash/internal/handlers/inventory"
	"invdash/internal/handlers/orders"
	"invdash/internal/handlers/products"
	"invdash/internal/handlers/reports"
	"invdash/internal/handlers/suppliers"
	"invdash/internal/recommend"
	"invdash/internal/websocket"
)

var companyName string

func main() {
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	configPath := flag.String("config", "", "Path to YAML config file")
	seed := flag.Bool("seed", false, "Wipe and reseed the database, then exit")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Config load failed: ", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	companyName = cfg.CompanyName

	if err := initDB(cfg.DBPath); err != nil {
		log.Fatal("DB init failed: ", err)
	}

	if *seed {
		if err := runSeed(db); err != nil {
			log.Print("Seed failed: ", err)
			os.Exit(1)
		}
		log.Print("Database seeded")
		return
	}

	hub := websocket.NewHub()

	productsH := &products.Handler{DB: db, Hub: hub}
	inventoryH := &inventory.Handler{DB: db, Hub: hub}
	ordersH := &orders.Handler{DB: db, Hub: hub}
	suppliersH := &suppliers.Handler{DB: db, Hub: hub}
	reportsH := &reports.Handler{DB: db, Hub: hub}
	insightsH := &insights.Handler{DB: db, Hub: hub, Engine: recommend.NewRuleEngine()}
	dashboardH := &dashboard.Handler{DB: db, Hub: hub}

	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.Handle(hub, w, r)
	})

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Dashboard
		case path == "dashboard" && r.Method == "GET":
			dashboardH.Summary(w, r)
		case path == "dashboard/alerts" && r.Method == "GET":
			dashboardH.Alerts(w, r)
		case path == "dashboard/activity" && r.Method == "GET":
			dashboardH.Activity(w, r)

		// Products
		case path == "products" && r.Method == "GET":
			productsH.List(w, r)
		case path == "products" && r.Method == "POST":
			productsH.Create(w, r)
		case path == "products/stats" && r.Method == "GET":
			productsH.Stats(w, r)
		case path == "products/export" && r.Method == "GET":
			productsH.Export(w, r)
		case parts[0] == "products" && len(parts) == 2 && r.Method == "GET":
			productsH.Get(w, r, parts[1])
		case parts[0] == "products" && len(parts) == 2 && r.Method == "PUT":
			productsH.Update(w, r, parts[1])
		case parts[0] == "products" && len(parts) == 2 && r.Method == "DELETE":
			productsH.Delete(w, r, parts[1])

		// Inventory
		case path == "inventory" && r.Method == "GET":
			inventoryH.List(w, r)
		case parts[0] == "inventory" && len(parts) == 2 && r.Method == "GET":
			inventoryH.Get(w, r, parts[1])
		case parts[0] == "inventory" && len(parts) == 3 && parts[2] == "adjust" && r.Method == "POST":
			inventoryH.Adjust(w, r, parts[1])
		case parts[0] == "inventory" && len(parts) == 3 && parts[2] == "movements" && r.Method == "GET":
			inventoryH.Movements(w, r, parts[1])

		// Orders
		case path == "orders" && r.Method == "GET":
			ordersH.List(w, r)
		case path == "orders" && r.Method == "POST":
			ordersH.Create(w, r)
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "GET":
			ordersH.Get(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "status" && r.Method == "POST":
			ordersH.UpdateStatus(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "DELETE":
			ordersH.Delete(w, r, parts[1])

		// Suppliers
		case path == "suppliers" && r.Method == "GET":
			suppliersH.List(w, r)
		case path == "suppliers" && r.Method == "POST":
			suppliersH.Create(w, r)
		case path == "suppliers/performance" && r.Method == "GET":
			suppliersH.Performance(w, r)
		case path == "suppliers/export" && r.Method == "GET":
			suppliersH.Export(w, r)
		case parts[0] == "suppliers" && len(parts) == 3 && parts[2] == "performance" && r.Method == "GET":
			suppliersH.PerformanceOne(w, r, parts[1])
		case parts[0] == "suppliers" && len(parts) == 2 && r.Method == "GET":
			suppliersH.Get(w, r, parts[1])
		case parts[0] == "suppliers" && len(parts) == 2 && r.Method == "PUT":
			suppliersH.Update(w, r, parts[1])
		case parts[0] == "suppliers" && len(parts) == 2 && r.Method == "DELETE":
			suppliersH.Delete(w, r, parts[1])

		// Reports
		case path == "reports/inventory" && r.Method == "GET":
			reportsH.Inventory(w, r)
		case path == "reports/sales" && r.Method == "GET":
			reportsH.Sales(w, r)
		case path == "reports/top-products" && r.Method == "GET":
			reportsH.TopProducts(w, r)
		case path == "reports/category-performance" && r.Method == "GET":
			reportsH.Categories(w, r)
		case path == "reports/supplier-performance" && r.Method == "GET":
			reportsH.Suppliers(w, r)

		// Insights
		case path == "insights" && r.Method == "GET":
			insightsH.List(w, r)
		case path == "insights/generate" && r.Method == "POST":
			insightsH.Generate(w, r)
		case parts[0] == "insights" && len(parts) == 3 && parts[2] == "approve" && r.Method == "POST":
			insightsH.Approve(w, r, parts[1])
		case parts[0] == "insights" && len(parts) == 3 && parts[2] == "reject" && r.Method == "POST":
			insightsH.Reject(w, r, parts[1])
		case path == "insights/predictions" && r.Method == "GET":
			insightsH.Predictions(w, r)
		case path == "insights/trends" && r.Method == "GET":
			insightsH.Trends(w, r)

		case path == "config" && r.Method == "GET":
			handleConfig(w, r)

		default:
			http.Error(w, `{"error": "not found"}`, 404)
		}
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("%s server starting on http://localhost%s", companyName, addr)
	log.Fatal(http.ListenAndServe(addr, logging(mux)))
}

func handleConfig(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, `{"data":{"company_name":%q}}`, companyName)
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
