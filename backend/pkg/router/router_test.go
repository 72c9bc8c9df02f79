package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestBuilder() *RouteBuilder {
	return NewRouteBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestRouteBuilderRegistersAndServes(t *testing.T) {
	t.Parallel()

	rb := newTestBuilder()
	rb.Route("/api", func(rb *RouteBuilder) {
		rb.MustGet("/ping", RouteSpec{OperationID: "ping", Summary: "ping", Group: "Core", Handler: okHandler})
		rb.MustPut("/watering/settings", RouteSpec{OperationID: "putSettings", Summary: "settings", Group: "Watering", Handler: okHandler})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	rb.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("GET /api/ping status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	routes := rb.Routes()
	if len(routes) != 2 || routes[0].Path != "/api/ping" || routes[1].Method != http.MethodPut {
		t.Errorf("Routes() = %+v", routes)
	}
}

func TestRouteBuilderRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		spec    RouteSpec
		wantErr string
	}{
		{
			name:    "missing operation id",
			path:    "/a",
			spec:    RouteSpec{Summary: "a", Group: "g", Handler: okHandler},
			wantErr: "OperationID",
		},
		{
			name:    "missing handler",
			path:    "/a",
			spec:    RouteSpec{OperationID: "a", Summary: "a", Group: "g"},
			wantErr: "Handler",
		},
		{
			name:    "undocumented path parameter",
			path:    "/sessions/{sessionID}",
			spec:    RouteSpec{OperationID: "a", Summary: "a", Group: "g", Handler: okHandler},
			wantErr: "not documented",
		},
		{
			name: "optional path parameter",
			path: "/sessions/{sessionID}",
			spec: RouteSpec{
				OperationID: "a", Summary: "a", Group: "g", Handler: okHandler,
				Parameters: map[string]ParameterSpec{"sessionID": {In: ParameterInPath, Description: "id"}},
			},
			wantErr: "must be required",
		},
		{
			name: "bad parameter location",
			path: "/a",
			spec: RouteSpec{
				OperationID: "a", Summary: "a", Group: "g", Handler: okHandler,
				Parameters: map[string]ParameterSpec{"limit": {In: "body", Description: "limit"}},
			},
			wantErr: "In must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := newTestBuilder().Get(tt.path, tt.spec)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Get() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRouteBuilderDuplicateOperationID(t *testing.T) {
	t.Parallel()

	rb := newTestBuilder()
	spec := RouteSpec{OperationID: "dup", Summary: "a", Group: "g", Handler: okHandler}

	if err := rb.Get("/a", spec); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := rb.Post("/b", spec); err == nil {
		t.Error("Post() with duplicate operationID error = nil")
	}
}

func TestPathParams(t *testing.T) {
	t.Parallel()

	got, err := pathParams("/api/{deviceID}/sessions/{sessionID:[0-9a-f-]+}")
	if err != nil {
		t.Fatalf("pathParams() error = %v", err)
	}

	if len(got) != 2 || got[0] != "deviceID" || got[1] != "sessionID" {
		t.Errorf("pathParams() = %v", got)
	}

	if _, err := pathParams("/api/{broken"); err == nil {
		t.Error("pathParams() with unbalanced braces error = nil")
	}
}
