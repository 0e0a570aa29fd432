package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/kot-api/internal/config"
	"github.com/kiwari-pos/kot-api/internal/database"
	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/events"
	"github.com/kiwari-pos/kot-api/internal/handler"
	mw "github.com/kiwari-pos/kot-api/internal/middleware"
	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/kiwari-pos/kot-api/internal/service"
	"github.com/kiwari-pos/kot-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, carts handler.CartStore, hub *ws.Hub, notifier events.Notifier) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{room}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	tax := pos.DefaultTaxConfig()
	if cgst, sgst, err := cfg.TaxRates(); err == nil {
		tax = pos.TaxConfig{CGSTRate: cgst, SGSTRate: sgst}
	} else {
		log.Printf("WARN: %v, using default GST rates", err)
	}

	kotService := service.NewKOTService(pool, func(db database.DBTX) service.KOTStore {
		return database.New(db)
	}, notifier)
	billingService := service.NewBillingService(pool, func(db database.DBTX) service.BillingStore {
		return database.New(db)
	}, tax, notifier)
	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	}, notifier)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		menuHandler := handler.NewMenuHandler(queries)
		r.Route("/menu", menuHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(queries, tableService)
		cartHandler := handler.NewCartHandler(carts, queries, kotService)
		r.Route("/tables", func(r chi.Router) {
			tableHandler.RegisterRoutes(r)
			r.Route("/{id}/cart", cartHandler.RegisterRoutes)
		})

		kotHandler := handler.NewKOTHandler(queries, kotService)
		billHandler := handler.NewBillHandler(billingService, handler.ReceiptHeader{
			RestaurantName: cfg.RestaurantName,
			GSTIN:          cfg.GSTIN,
		})
		r.Route("/kots", func(r chi.Router) {
			kotHandler.RegisterRoutes(r)
			r.Route("/{id}/bill", billHandler.RegisterRoutes)
		})

		customerHandler := handler.NewCustomerHandler(queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			reportsHandler := handler.NewReportsHandler(queries)
			r.Route("/reports", reportsHandler.RegisterRoutes)

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)
		})
	})

	return r
}
