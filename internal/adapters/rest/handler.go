package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/extract"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/services"
	"github.com/ewilliams-labs/tunnetilasi/internal/worker"
)

const defaultMaxUploadBytes = 50 << 20

// ImportQueue accepts library imports for background processing.
type ImportQueue interface {
	Submit(job worker.Job) (string, error)
	Status(id string) (worker.JobStatus, bool)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP interface drives.
type Deps struct {
	Sessions    *services.SessionOrchestrator
	Recommender *services.Recommender
	Extractor   *extract.Extractor
	Library     ports.LibraryRepository
	Archive     ports.PlaylistArchive
	Imports     ImportQueue
	// Store is pinged by /ready. Nil means always ready.
	Store Pinger
}

// Options tune the router.
type Options struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxUploadBytes    int64
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	deps   Deps
	opts   Options
	router chi.Router
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(deps Deps, opts Options) *Handler {
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	h := &Handler{
		deps:   deps,
		opts:   opts,
		router: chi.NewRouter(),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.router

	r.Use(requestLogger)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if len(h.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorWithCode(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorWithCode(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Probes and metrics are never rate limited.
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if h.opts.RateLimitRequests > 0 {
			r.Use(httprate.Limit(
				h.opts.RateLimitRequests,
				h.opts.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeErrorWithCode(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				}),
			))
		}

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Get("/summary", h.GetSessionSummary)
				r.Post("/messages", h.PostMessage)
				r.Post("/retry", h.RetrySession)
			})
		})

		r.Post("/matcher", h.Match)
		r.Post("/curator", h.Curate)
		r.Post("/genres", h.SelectGenres)
		r.Post("/extract/analysis", h.ExtractAnalysis)
		r.Post("/extract/playlist", h.ExtractPlaylist)

		r.Route("/library", func(r chi.Router) {
			r.Post("/import", h.ImportLibrary)
			r.Get("/import/{id}", h.GetImport)
			r.Get("/export", h.ExportLibrary)
			r.Get("/stats", h.LibraryStats)
		})

		r.Get("/playlists", h.ListPlaylists)
		r.Get("/playlists/{id}", h.GetPlaylist)
	})
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Tunnetilasi is live 🤘"})
}

// ReadyCheck reports whether storage answers.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Store.Ping(ctx); err != nil {
			writeErrorWithCode(w, http.StatusServiceUnavailable, "not_ready", "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
