package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"growmat/backend/pkg/utils"
)

// ParameterIn is the location of a request parameter.
type ParameterIn string

const (
	ParameterInPath   ParameterIn = "path"
	ParameterInQuery  ParameterIn = "query"
	ParameterInHeader ParameterIn = "header"
)

// ParameterSpec documents a request parameter.
type ParameterSpec struct {
	In          ParameterIn
	Description string
	Required    bool
}

// RouteSpec describes an HTTP operation.
type RouteSpec struct {
	OperationID string
	Summary     string
	Description string
	Group       string
	Deprecated  string
	Parameters  map[string]ParameterSpec
	Handler     http.HandlerFunc

	method   string
	fullPath string
}

// RouteInfo is the catalog entry of a registered route.
type RouteInfo struct {
	OperationID string `json:"operationId"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Summary     string `json:"summary"`
	Group       string `json:"group"`
	Deprecated  string `json:"deprecated,omitempty"`
}

type registry struct {
	mu           sync.Mutex
	operationIDs map[string]struct{}
	routes       []RouteInfo
}

// RouteBuilder registers documented routes on a chi router.
type RouteBuilder struct {
	l        *slog.Logger
	r        chi.Router
	prefix   string
	registry *registry
}

// NewRouteBuilder creates a route builder on a fresh chi router.
func NewRouteBuilder(l *slog.Logger) *RouteBuilder {
	return &RouteBuilder{
		l: l.With(slog.String("component", "route-builder")),
		r: chi.NewRouter(),
		registry: &registry{
			operationIDs: make(map[string]struct{}),
		},
	}
}

// Use appends middlewares to the router.
func (rb *RouteBuilder) Use(middlewares ...func(http.Handler) http.Handler) {
	rb.r.Use(middlewares...)
}

// Route mounts a sub-router at prefix and lets fn register routes on it.
func (rb *RouteBuilder) Route(prefix string, fn func(rb *RouteBuilder)) {
	rb.r.Route(prefix, func(r chi.Router) {
		fn(&RouteBuilder{
			l:        rb.l,
			r:        r,
			prefix:   rb.prefix + prefix,
			registry: rb.registry,
		})
	})
}

// Mount attaches an undocumented handler, e.g. a metrics exporter.
func (rb *RouteBuilder) Mount(path string, h http.Handler) {
	rb.r.Mount(path, h)
	rb.l.Info("Mounted handler", slog.String("path", rb.prefix+path))
}

// Handler returns the underlying router.
func (rb *RouteBuilder) Handler() http.Handler {
	return rb.r
}

// Routes returns the registered routes sorted by path and method.
func (rb *RouteBuilder) Routes() []RouteInfo {
	rb.registry.mu.Lock()
	defer rb.registry.mu.Unlock()

	routes := append([]RouteInfo(nil), rb.registry.routes...)
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}

		return routes[i].Path < routes[j].Path
	})

	return routes
}

func (rb *RouteBuilder) register(method, path string, spec RouteSpec) error {
	spec.method = method
	spec.fullPath = sanitizePath(rb.prefix + path)

	if err := validateRouteSpec(spec); err != nil {
		return fmt.Errorf("invalid route spec for %s %s: %w", method, spec.fullPath, err)
	}

	if err := validateParameters(spec); err != nil {
		return err
	}

	rb.registry.mu.Lock()
	defer rb.registry.mu.Unlock()

	if _, exists := rb.registry.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	rb.r.Method(method, path, spec.Handler)

	rb.registry.operationIDs[spec.OperationID] = struct{}{}
	rb.registry.routes = append(rb.registry.routes, RouteInfo{
		OperationID: spec.OperationID,
		Method:      method,
		Path:        spec.fullPath,
		Summary:     spec.Summary,
		Group:       spec.Group,
		Deprecated:  spec.Deprecated,
	})

	rb.l.Info("Registered route", slog.String("method", method), slog.String("path", spec.fullPath), slog.String("operationID", spec.OperationID))

	return nil
}

func (rb *RouteBuilder) mustRegister(method, path string, spec RouteSpec) {
	if err := rb.register(method, path, spec); err != nil {
		rb.l.Error("Failed to register route", slog.String("method", method), slog.String("path", rb.prefix+path), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// Get registers a GET route.
func (rb *RouteBuilder) Get(path string, spec RouteSpec) error {
	return rb.register(http.MethodGet, path, spec)
}

// Post registers a POST route.
func (rb *RouteBuilder) Post(path string, spec RouteSpec) error {
	return rb.register(http.MethodPost, path, spec)
}

// Put registers a PUT route.
func (rb *RouteBuilder) Put(path string, spec RouteSpec) error {
	return rb.register(http.MethodPut, path, spec)
}

// Delete registers a DELETE route.
func (rb *RouteBuilder) Delete(path string, spec RouteSpec) error {
	return rb.register(http.MethodDelete, path, spec)
}

// MustGet registers a GET route and terminates the program if an error occurs.
func (rb *RouteBuilder) MustGet(path string, spec RouteSpec) {
	rb.mustRegister(http.MethodGet, path, spec)
}

// MustPost registers a POST route and terminates the program if an error occurs.
func (rb *RouteBuilder) MustPost(path string, spec RouteSpec) {
	rb.mustRegister(http.MethodPost, path, spec)
}

// MustPut registers a PUT route and terminates the program if an error occurs.
func (rb *RouteBuilder) MustPut(path string, spec RouteSpec) {
	rb.mustRegister(http.MethodPut, path, spec)
}

// MustDelete registers a DELETE route and terminates the program if an error occurs.
func (rb *RouteBuilder) MustDelete(path string, spec RouteSpec) {
	rb.mustRegister(http.MethodDelete, path, spec)
}

func sanitizePath(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}

	return path
}
