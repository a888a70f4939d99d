package router

import (
	"net/http"

	"fruition-api/internal/handler"
	"fruition-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler             *handler.Handler
	InventoryHandler    *handler.InventoryHandler
	StatsHandler        *handler.StatsHandler
	NotificationHandler *handler.NotificationHandler
	ProfileHandler      *handler.ProfileHandler
	EventsHandler       *handler.EventsHandler
	FeedHandler         *handler.FeedHandler
	AuthHandler         *handler.AuthHandler
	AdminHandler        *handler.AdminHandler
	AuthMiddleware      func(http.Handler) http.Handler
	AdminMiddleware     func(http.Handler) http.Handler
	AllowedOrigins      []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Token",
			middleware.HeaderUserID, middleware.HeaderUserEmail, middleware.HeaderUserName, middleware.HeaderAdminKey},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// The feed is anonymized and public.
		if cfg.FeedHandler != nil {
			r.Get("/feed", cfg.FeedHandler.Recent)
		}

		if cfg.AdminHandler != nil && cfg.AdminMiddleware != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(cfg.AdminMiddleware)
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/health", cfg.AdminHandler.GetHealth)
				r.Get("/users/{id}", cfg.AdminHandler.GetUser)
				r.Put("/users/{id}/member-id", cfg.AdminHandler.SetMemberID)
				r.Put("/users/{id}/disabled", cfg.AdminHandler.SetDisabled)
				r.Post("/sessions/reap", cfg.AdminHandler.ReapSessions)
			})
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.InventoryHandler != nil {
				r.Route("/inventory", func(r chi.Router) {
					r.Get("/", cfg.InventoryHandler.List)
					r.Post("/", cfg.InventoryHandler.Add)
					r.Delete("/{id}", cfg.InventoryHandler.Remove)
					r.Post("/{id}/consume", cfg.InventoryHandler.Consume)
					r.Post("/{id}/waste", cfg.InventoryHandler.Waste)
				})
			}

			if cfg.StatsHandler != nil {
				r.Get("/stats", cfg.StatsHandler.Get)
				r.Get("/stats/summary", cfg.StatsHandler.Summary)
			}

			if cfg.NotificationHandler != nil {
				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", cfg.NotificationHandler.List)
					r.Delete("/", cfg.NotificationHandler.Clear)
					r.Post("/check", cfg.NotificationHandler.Check)
					r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
					r.Post("/{id}/read", cfg.NotificationHandler.MarkRead)
					r.Put("/permission", cfg.NotificationHandler.SetPermission)
				})
			}

			if cfg.ProfileHandler != nil {
				r.Get("/profile", cfg.ProfileHandler.Get)
				r.Put("/profile/settings", cfg.ProfileHandler.UpdateSettings)
				r.Post("/session/logout", cfg.ProfileHandler.Logout)

				r.Route("/household", func(r chi.Router) {
					r.Get("/", cfg.ProfileHandler.GetHousehold)
					r.Post("/", cfg.ProfileHandler.CreateHousehold)
					r.Post("/join", cfg.ProfileHandler.JoinHousehold)
					r.Post("/leave", cfg.ProfileHandler.LeaveHousehold)
				})
			}

			if cfg.AuthHandler != nil {
				r.Route("/session/token", func(r chi.Router) {
					r.Post("/", cfg.AuthHandler.GenerateToken)
					r.Post("/revoke", cfg.AuthHandler.RevokeToken)
					r.Post("/refresh", cfg.AuthHandler.RefreshToken)
				})
			}

			if cfg.EventsHandler != nil {
				r.Get("/events", cfg.EventsHandler.Stream)
			}
		})
	})

	return r
}
