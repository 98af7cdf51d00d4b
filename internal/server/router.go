package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"compounder/internal/handlers"
	applog "compounder/internal/log"
	"compounder/internal/metrics"
)

func newRouter(allowedOrigins []string, m *metrics.Metrics) http.Handler {
	applog.Debug(context.Background(), "registering http routes")

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", handlers.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/units", func(r chi.Router) {
			r.Get("/", handlers.ListUnits)
			r.Post("/", handlers.CreateUnit)
			r.Get("/{code}", handlers.ShowUnit)
			r.Put("/{code}", handlers.UpdateUnit)
			r.Delete("/{code}", handlers.DeleteUnit)
		})

		r.Route("/forms", func(r chi.Router) {
			r.Get("/", handlers.ListForms)
			r.Post("/", handlers.CreateForm)
		})

		r.Route("/ativos", func(r chi.Router) {
			r.Get("/", handlers.ListAtivos)
			r.Post("/", handlers.CreateAtivo)
			r.Get("/{id}", handlers.ShowAtivo)
			r.Put("/{id}", handlers.UpdateAtivo)
			r.Delete("/{id}", handlers.DeleteAtivo)
		})

		r.Route("/formulas", func(r chi.Router) {
			r.Get("/", handlers.ListFormulas)
			r.Post("/", handlers.CreateFormula)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handlers.ShowFormula)
				r.Put("/", handlers.UpdateFormula)
				r.Delete("/", handlers.DeleteFormula)
				r.Get("/items", handlers.ListFormulaItems)
				r.Put("/items", handlers.ReplaceFormulaItems)
				r.Get("/availability", handlers.FormulaAvailability)
			})
		})

		r.Route("/lots", func(r chi.Router) {
			r.Get("/", handlers.ListLots)
			r.Post("/", handlers.CreateLot)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handlers.ShowLot)
				r.Put("/", handlers.UpdateLot)
				r.Delete("/", handlers.DeleteLot)
				r.Post("/consume", handlers.ConsumeLot)
				r.Post("/receive", handlers.ReceiveLot)
				r.Post("/certificate", handlers.UploadCertificate)
				r.Get("/movements", handlers.LotMovements)
			})
		})

		r.Get("/movements", handlers.ListMovements)
		r.Get("/movements/totals", handlers.MovementTotals)
	})

	applog.Debug(context.Background(), "http routes registered")
	return r
}

// accessLog writes one line per request once the response is complete.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		applog.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
