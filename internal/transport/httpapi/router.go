// Package httpapi exposes grievance intake and lifecycle over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/infrastructure/metrics"
	"civicdesk/internal/infrastructure/zones"
	grievanceuc "civicdesk/internal/usecase/grievance"
)

// DefaultMaxUploadBytes bounds a whole multipart submission.
const DefaultMaxUploadBytes int64 = 32 << 20

// OperatorHeader names the operator performing a lifecycle action, for the audit trail.
const OperatorHeader = "X-Operator"

const IdempotencyHeader = "Idempotency-Key"

type GrievanceService interface {
	SubmitText(ctx context.Context, input grievanceuc.SubmitTextInput) (domain.Grievance, error)
	SubmitAudio(ctx context.Context, input grievanceuc.SubmitAudioInput) (domain.Grievance, error)
	List(ctx context.Context, filter grievanceuc.ListFilter) ([]domain.Grievance, error)
	Get(ctx context.Context, id string) (domain.Grievance, error)
	History(ctx context.Context, id string) ([]domain.Event, error)
	Resolve(ctx context.Context, input grievanceuc.ResolveInput) (domain.Grievance, error)
	Reject(ctx context.Context, input grievanceuc.RejectInput) (domain.Grievance, error)
}

type ZoneLister interface {
	List() []zones.Zone
}

// Deps are the collaborators of the router. Zones, Events and MediaDir are optional.
type Deps struct {
	Service        GrievanceService
	Zones          ZoneLister
	Events         http.Handler
	MediaDir       string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type handler struct {
	svc            GrievanceService
	zones          ZoneLister
	maxUploadBytes int64
}

func NewRouter(deps Deps) http.Handler {
	h := &handler{
		svc:            deps.Service,
		zones:          deps.Zones,
		maxUploadBytes: deps.MaxUploadBytes,
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = DefaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(withRequestContext(deps.Logger))
	r.Use(metrics.Middleware(routePattern))
	r.Use(requestLogger)
	r.Use(recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, domain.KindNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, domain.KindValidation, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/grievances", func(r chi.Router) {
		r.Post("/", h.submitText)
		r.Post("/audio", h.submitAudio)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
		r.Patch("/{id}/resolve", h.resolve)
		r.Patch("/{id}/reject", h.reject)
	})
	r.Get("/zones", h.listZones)

	if deps.Events != nil {
		r.Method(http.MethodGet, "/events", deps.Events)
	}
	if dir := strings.TrimSpace(deps.MediaDir); dir != "" {
		r.Method(http.MethodGet, "/uploads/*", http.StripPrefix("/uploads/", mediaServer(dir)))
	}
	return r
}

// mediaServer serves stored files but never directory listings.
func mediaServer(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			writeFailure(w, http.StatusNotFound, domain.KindNotFound, "media not found")
			return
		}
		files.ServeHTTP(w, r)
	})
}
