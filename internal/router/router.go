package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hidangan/delivery-api/internal/cart"
	"github.com/hidangan/delivery-api/internal/config"
	"github.com/hidangan/delivery-api/internal/database"
	"github.com/hidangan/delivery-api/internal/enum"
	"github.com/hidangan/delivery-api/internal/handler"
	mw "github.com/hidangan/delivery-api/internal/middleware"
	"github.com/hidangan/delivery-api/internal/service"
	"github.com/hidangan/delivery-api/internal/ws"
	"go.uber.org/zap"
)

// Deps are the long-lived components the routes are served by.
type Deps struct {
	Queries *database.Queries
	Orders  *service.OrderService
	Cart    *cart.Service
	Hub     *ws.Hub
	Logger  *zap.Logger
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(deps.Queries, cfg.JWTSecret, logger.Named("auth"))
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(deps.Hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Visibility is enforced per order by the service, so every role
		// reaches the order routes.
		orderHandler := handler.NewOrderHandler(deps.Orders, logger.Named("orders"))
		r.Route("/orders", orderHandler.RegisterRoutes)
		r.Route("/alerts", orderHandler.RegisterAlertRoutes)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleRestaurant))
			reportsHandler := handler.NewReportsHandler(deps.Orders, logger.Named("reports"))
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			userHandler := handler.NewUserHandler(deps.Queries, logger.Named("users"))
			r.Route("/users", userHandler.RegisterRoutes)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleCustomer, enum.UserRoleUser))
			cartHandler := handler.NewCartHandler(deps.Cart, logger.Named("cart"))
			r.Route("/cart", cartHandler.RegisterRoutes)
		})
	})

	logger.Info("router initialized")
	return r
}
