package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cardrop/proximity-hub/api/middleware"
	"github.com/cardrop/proximity-hub/api/resources"
	"github.com/cardrop/proximity-hub/internal/monitoring"
	"github.com/cardrop/proximity-hub/internal/proximity"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.KeycloakMiddleware
	resources *resources.Resources
	health    http.HandlerFunc
}

func NewRouter(
	svc *proximity.Service,
	pool *proximity.MatcherPool,
	mon *monitoring.Service,
	keycloakConfig middleware.KeycloakConfig,
	health http.HandlerFunc,
) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewKeycloakMiddleware(keycloakConfig),
		resources: resources.NewResources(svc, pool, mon),
		health:    health,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.health).Methods(http.MethodGet)
	api.HandleFunc("/metrics", r.resources.Metrics).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	// Detections
	detections := protected.PathPrefix("/detections").Subrouter()
	detections.HandleFunc("", r.resources.Detections.ListDetections).Methods(http.MethodGet)
	detections.HandleFunc("", r.resources.Detections.RecordDetection).Methods(http.MethodPost)

	// Highlights
	highlights := protected.PathPrefix("/highlights").Subrouter()
	highlights.HandleFunc("", r.resources.Highlights.ListHighlights).Methods(http.MethodGet)
	highlights.HandleFunc("", r.resources.Highlights.AddHighlight).Methods(http.MethodPost)
	highlights.HandleFunc("/{vehicleId}", r.resources.Highlights.CheckHighlight).Methods(http.MethodGet)

	// Meets
	meets := protected.PathPrefix("/meets").Subrouter()
	meets.HandleFunc("/vehicles/{vehicleId}", r.resources.Meets.GetMeetInfo).Methods(http.MethodGet)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
