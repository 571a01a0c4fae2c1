// Package httpapi serves the Group API as JSON over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/cameratogether/internal/metrics"
	"github.com/mmynk/cameratogether/internal/middleware"
	"github.com/mmynk/cameratogether/internal/service"
)

// DefaultMaxUploadBytes bounds a multipart upload body.
const DefaultMaxUploadBytes = service.DefaultMaxPhotoBytes + 1<<20

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Config wires the services behind the API.
type Config struct {
	Groups    *service.GroupService
	Photos    *service.PhotoService
	Templates *service.TemplateService
	Users     *service.UserService

	// Health reports whether the backing store is reachable. Nil means
	// always healthy.
	Health func(ctx context.Context) error

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics

	MaxUploadBytes int64
}

// Server routes HTTP requests to the services.
type Server struct {
	groups    *service.GroupService
	photos    *service.PhotoService
	templates *service.TemplateService
	users     *service.UserService

	health         func(ctx context.Context) error
	gatherer       prometheus.Gatherer
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{
		groups:         cfg.Groups,
		photos:         cfg.Photos,
		templates:      cfg.Templates,
		users:          cfg.Users,
		health:         cfg.Health,
		gatherer:       cfg.Gatherer,
		metrics:        cfg.Metrics,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Handler returns the routed API wrapped in the request id, logging and
// CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/groups", s.createGroup)
	mux.HandleFunc("GET /api/groups", s.listGroups)
	mux.HandleFunc("GET /api/groups/by-invitation", s.getGroupByInvitation)
	mux.HandleFunc("POST /api/groups/join/{token}", s.joinGroup)
	mux.HandleFunc("GET /api/groups/{id}", s.getGroup)
	mux.HandleFunc("DELETE /api/groups/{id}", s.deleteGroup)
	mux.HandleFunc("POST /api/groups/{id}/{action}", s.groupAction)
	mux.HandleFunc("GET /api/groups/{id}/members", s.listMembers)
	mux.HandleFunc("DELETE /api/groups/{id}/leave", s.leaveGroup)
	mux.HandleFunc("GET /api/groups/{id}/photos", s.listPhotos)
	mux.HandleFunc("GET /api/groups/{id}/collage", s.getCollage)

	mux.HandleFunc("GET /api/template-data", s.listTemplates)
	mux.HandleFunc("GET /api/template-data/filter", s.filterTemplates)
	mux.HandleFunc("GET /api/template-data/{id}", s.getTemplate)

	mux.HandleFunc("POST /api/users", s.createUser)
	mux.HandleFunc("GET /api/users/{id}", s.getUser)

	mux.HandleFunc("GET /healthz", s.healthz)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return middleware.RequestID(middleware.Logging(s.metrics)(middleware.CORS(mux)))
}

// groupAction dispatches the POST actions on one group. A single pattern
// keeps them from overlapping with POST /groups/join/{token}.
func (s *Server) groupAction(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("action") {
	case "finalize":
		s.finalizeGroup(w, r)
	case "start-countdown":
		s.startCountdown(w, r)
	case "ready":
		s.markReady(w, r)
	case "photos":
		s.uploadPhoto(w, r)
	default:
		respondStatus(w, http.StatusNotFound, "unknown group action "+r.PathValue("action"))
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			respondStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
