package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/diagnosis/reservations/internal/http/response"
	mw "github.com/diagnosis/reservations/pkg/middleware"
)

type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string
	MaxBodyBytes   int64
	// Store backs Idempotency-Key replay on the JSON API. Nil disables it.
	Store mw.IdempotencyStore
}

// NewRouter mounts the HTML form at / and the JSON API under /api.
func NewRouter(svc Submitter, flash *Flash, cfg RouterConfig) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("router: submitter is required")
	}
	if flash == nil {
		return nil, errors.New("router: flash is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "reservations"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName(cfg.ServiceName))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.Health)
	r.Use(mw.MaxBody(cfg.MaxBodyBytes))

	form := NewFormHandler(svc, flash)
	r.Get("/", form.show)
	r.Post("/reservations", form.submit)

	r.Route("/api", func(r chi.Router) {
		allowCredentials := true
		for _, o := range cfg.AllowedOrigins {
			if o == "*" {
				allowCredentials = false
			}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", mw.IdempotencyHeader},
			ExposedHeaders:   []string{"X-Request-ID", mw.ReplayedHeader},
			AllowCredentials: allowCredentials,
			MaxAge:           300,
		}))
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			response.NotFound(w, "no such endpoint")
		})
		if cfg.Store != nil {
			r.Use(mw.Idempotency(cfg.Store))
		}
		r.Mount("/reservations", NewAPIHandler(svc).Routes())
	})

	return r, nil
}
