package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/volkanakbulut73/sohbetchat/internal/api/middleware"
	"github.com/volkanakbulut73/sohbetchat/internal/config"
	"github.com/volkanakbulut73/sohbetchat/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(10, 30)
	r.Use(limiter.Middleware)

	// CORS - the chat frontend may be served from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := middleware.NewAdminAuth(cfg.AdminUser, cfg.AdminPasswordHash)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	// Room state and actions
	r.Get("/rooms", h.ListRooms)
	r.Post("/rooms/active", h.SwitchActive)
	r.Post("/rooms/private", h.StartPrivate)
	r.Get("/rooms/{id}/messages", h.GetRoomMessages)
	r.Post("/rooms/{id}/messages", h.PostMessage)
	r.Delete("/rooms/{id}", h.RemoveRoom)
	r.Post("/block/{id}", h.BlockParticipant)
	r.Delete("/block/{id}", h.UnblockParticipant)

	// Admin routes (basic auth)
	r.Group(func(r chi.Router) {
		r.Use(auth.Require)

		r.Get("/admin/registrations", h.ListRegistrations)
		r.Post("/admin/registrations/{id}/status", h.UpdateRegistrationStatus)
		r.Post("/admin/notify", h.Notify)
		r.Get("/admin/bot-config", h.GetBotConfig)
		r.Put("/admin/bot-config", h.SetBotConfig)
	})

	return r
}
