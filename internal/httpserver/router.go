package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"rizzmate-gateway/internal/handlers"
	"rizzmate-gateway/internal/metrics"
	"rizzmate-gateway/internal/middleware"
)

// Handlers groups the endpoint handlers mounted under /v1.
type Handlers struct {
	Replies  *handlers.ReplyHandler
	Lines    *handlers.LinesHandler
	History  *handlers.HistoryHandler
	Insights *handlers.InsightsHandler
}

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h Handlers, opts Options) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	r.Route("/v1", func(r chi.Router) {
		// Generation retries can outlast a single attempt timeout several
		// times over, so the request budget is separate from it.
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Route("/replies", func(r chi.Router) {
			r.Post("/one", h.Replies.One)
			r.Post("/batch", h.Replies.Batch)
			r.Post("/all", h.Replies.All)
		})

		r.Route("/lines", func(r chi.Router) {
			r.Get("/", h.Lines.List)
			r.Post("/copy", h.Lines.Copy)
			r.Post("/save", h.Lines.Save)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.History.List)
			r.Post("/", h.History.Add)
			r.Delete("/", h.History.Clear)
			r.Delete("/{id}", h.History.Delete)
		})

		r.Post("/insights/compatibility", h.Insights.Compatibility)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
