// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// the records and cards services, and encode; business rules stay behind the
// service boundary.
package httptransport

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cardservice "tripsecretary/internal/cards/service"
	recordservice "tripsecretary/internal/records/service"
	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/httputil"
	authmw "tripsecretary/pkg/platform/middleware/auth"
	"tripsecretary/pkg/platform/middleware/metadata"
	"tripsecretary/pkg/platform/middleware/requesttime"
	"tripsecretary/pkg/requestcontext"
)

// Handler bundles the services the routes delegate to.
type Handler struct {
	records *recordservice.Service
	cards   *cardservice.Service
	logger  *slog.Logger
}

func NewHandler(records *recordservice.Service, cards *cardservice.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{records: records, cards: cards, logger: logger}
}

// NewRouter wires all endpoints. Everything under /v1 requires a bearer
// token; health and metrics stay open.
func NewRouter(h *Handler, validator authmw.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(recovery(h.logger))
	r.Use(metadata.RequestMetadata)
	r.Use(requesttime.Middleware)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, h.logger))

		r.Route("/forms/{formID}", func(r chi.Router) {
			r.Put("/fields", h.handleScheduleSave)
			r.Delete("/fields/{field}", h.handleClearField)
			r.Post("/save", h.handleSaveNow)
			r.Post("/flush", h.handleFlushForm)
			r.Delete("/", h.handleResetForm)
		})

		r.Route("/passports", func(r chi.Router) {
			r.Get("/", h.handleListPassports)
			r.Get("/{passportID}", h.handleGetPassport)
			r.Post("/{passportID}/primary", h.handleSetPrimaryPassport)
			r.Delete("/{passportID}", h.handleDeletePassport)
		})

		r.Get("/personal-info", h.handleGetPersonalInfo)

		r.Route("/funds", func(r chi.Router) {
			r.Get("/", h.handleListFundItems)
			r.Delete("/{fundItemID}", h.handleDeleteFundItem)
		})

		r.Route("/destinations/{destinationID}", func(r chi.Router) {
			r.Get("/completion", h.handleCompletion)
			r.Get("/entry", h.handleEntrySummary)
			r.Get("/travel-info", h.handleGetTravelInfo)
			r.Post("/documents", h.handleDocumentUploaded)
		})

		r.Get("/entries", h.handleListEntries)
		r.Route("/entries/{entryID}/cards", func(r chi.Router) {
			r.Post("/", h.handleSubmitCard)
			r.Get("/", h.handleCardHistory)
			r.Get("/latest", h.handleLatestCard)
		})

		r.Delete("/me", h.handleDeleteAllUserData)
	})
	return r
}

// userFrom pulls the authenticated user out of the request context. The auth
// middleware guarantees it is set on /v1 routes.
func (h *Handler) userFrom(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		h.logger.ErrorContext(r.Context(), "user missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.UserID{}, false
	}
	return userID, true
}

func recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic in handler",
						"panic", rec,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
