package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/itsatony/etbridge/api/middleware"
	"github.com/itsatony/etbridge/api/resources"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.TokenMiddleware
	resources *resources.Resources
}

func NewRouter(res *resources.Resources, apiToken string) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewTokenMiddleware(apiToken),
		resources: res,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	if r.resources.HealthCheck != nil {
		api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	}
	api.HandleFunc("/swagger.json", r.resources.Swagger).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	// Entries
	entries := protected.PathPrefix("/entries").Subrouter()
	entries.HandleFunc("", r.resources.Entries.ListEntries).Methods(http.MethodGet)
	entries.HandleFunc("", r.resources.Entries.CreateEntry).Methods(http.MethodPost)
	entries.HandleFunc("/{id}", r.resources.Entries.GetEntry).Methods(http.MethodGet)
	entries.HandleFunc("/{id}", r.resources.Entries.ReconfigureEntry).Methods(http.MethodPut)
	entries.HandleFunc("/{id}", r.resources.Entries.DeleteEntry).Methods(http.MethodDelete)
	entries.HandleFunc("/{id}/refresh", r.resources.Entries.RefreshEntry).Methods(http.MethodPost)
	entries.HandleFunc("/{id}/snapshot", r.resources.Entries.GetSnapshot).Methods(http.MethodGet)

	// Issues
	protected.HandleFunc("/issues", r.resources.Issues.ListIssues).Methods(http.MethodGet)

	// Services
	services := protected.PathPrefix("/services").Subrouter()
	services.HandleFunc("/send_meter_reading", r.resources.Services.SendMeterReading).Methods(http.MethodPost)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
