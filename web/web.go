// Package web provides the REST surface over the schema engine. Request
// handlers translate HTTP into SchemaController calls; schemas cross this
// boundary in the public representation.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/schemagate/schemagate/app"
	"github.com/schemagate/schemagate/ports"
)

// Handler provides the schema API endpoints.
type Handler struct {
	controller *app.SchemaController
	hasher     ports.Hasher
	idgen      ports.IDGenerator
	clock      ports.Clock
	masterKey  string
	logger     zerolog.Logger
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Controller *app.SchemaController
	Hasher     ports.Hasher
	IDGen      ports.IDGenerator
	Clock      ports.Clock
	MasterKey  string
	Logger     zerolog.Logger
}

// New creates a web handler.
func New(deps Deps) *Handler {
	return &Handler{
		controller: deps.Controller,
		hasher:     deps.Hasher,
		idgen:      deps.IDGen,
		clock:      deps.Clock,
		masterKey:  deps.MasterKey,
		logger:     deps.Logger,
	}
}

// Router builds the HTTP routes. metricsPath is empty when the Prometheus
// endpoint is disabled.
func (h *Handler) Router(metricsPath string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestID)

	r.Get("/healthz", h.Health)
	if metricsPath != "" {
		r.Method(http.MethodGet, metricsPath, promhttp.Handler())
	}

	r.Route("/schemas", func(r chi.Router) {
		r.Get("/", h.ListSchemas)
		r.Get("/{className}", h.GetSchema)
		r.Post("/{className}", h.CreateSchema)
		r.Put("/{className}", h.UpdateSchema)
		r.Delete("/{className}", h.DeleteSchema)
		r.Delete("/{className}/fields/{fieldName}", h.DeleteSchemaField)
	})

	r.Route("/classes", func(r chi.Router) {
		r.Post("/{className}", h.ValidateCreate)
		r.Put("/{className}/{objectId}", h.ValidateUpdate)
	})

	return r
}

// requestID tags every request with a correlation id for log stitching.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = h.idgen.New()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
