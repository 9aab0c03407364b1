package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/receiptlens/internal/auth"
	"github.com/frahmantamala/receiptlens/internal/insight"
	"github.com/frahmantamala/receiptlens/internal/nudge"
	"github.com/frahmantamala/receiptlens/internal/receipt"
	"github.com/frahmantamala/receiptlens/internal/transport/middleware"
	"github.com/frahmantamala/receiptlens/internal/transport/swagger"
)

// Handlers groups everything the router mounts. Nil handlers are skipped.
type Handlers struct {
	Health  *HealthHandler
	Auth    *auth.Handler
	Receipt *receipt.Handler
	Insight *insight.Handler
	Nudge   *nudge.Handler
	Spec    *swagger.Spec
}

func RegisterAllRoutes(router chi.Router, h Handlers, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	if h.Spec != nil {
		router.Method(http.MethodGet, swagger.SpecPath, h.Spec)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}

		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/logout", h.Auth.Logout)

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/user", h.Auth.Me)

			if h.Receipt != nil {
				pr.Route("/receipts", func(rr chi.Router) {
					rr.Get("/", h.Receipt.List)
					rr.Post("/upload", h.Receipt.Upload)
					rr.Get("/{id}", h.Receipt.Get)
				})
			}

			if h.Insight != nil {
				pr.Get("/insights", h.Insight.GetInsights)
			}

			if h.Nudge != nil {
				pr.Get("/nudges", h.Nudge.List)
				pr.Patch("/nudges/{id}/read", h.Nudge.MarkRead)
			}
		})
	})
}
