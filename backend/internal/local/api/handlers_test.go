package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	localtypes "growmat/backend/internal/local/api/types"
	localservices "growmat/backend/internal/local/services"
	apicommon "growmat/backend/internal/shared/api"
	sharedtypes "growmat/backend/internal/shared/types"
	"growmat/backend/internal/store"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/mqtt"
	"growmat/backend/pkg/router"
	"growmat/backend/pkg/utils"
)

type fakeCore struct {
	health localservices.HealthStatus
}

func (c fakeCore) Health(context.Context) localservices.HealthStatus { return c.health }

func (c fakeCore) DeviceStatus() sharedtypes.DeviceStatus {
	return sharedtypes.DeviceStatus{DeviceID: "dev-1", Status: sharedtypes.StatusOnline}
}

type fakeWatering struct {
	triggerErr error
	auto       bool
	tankML     float64
	settings   watering.Settings
	limit      int
}

func (f *fakeWatering) TriggerAsync(context.Context) error { return f.triggerErr }

func (f *fakeWatering) ToggleAuto(context.Context) (bool, error) {
	f.auto = !f.auto
	return f.auto, nil
}

func (f *fakeWatering) ResetTank(context.Context) error {
	f.tankML = f.settings.TankCapacity
	return nil
}

func (f *fakeWatering) SetTankRemaining(_ context.Context, ml float64) error {
	if ml < 0 {
		return fmt.Errorf("%w: negative", watering.ErrInvalidSetting)
	}

	f.tankML = ml

	return nil
}

func (f *fakeWatering) UpdateSetting(_ context.Context, key, value string) (watering.Settings, error) {
	next, err := f.settings.With(key, value)
	if err != nil {
		return f.settings, err
	}

	f.settings = next

	return next, nil
}

func (f *fakeWatering) Snapshot() watering.Snapshot {
	return watering.Snapshot{WaterLeftML: f.tankML, AutoWatering: f.auto}
}

func (f *fakeWatering) Settings() watering.Settings { return f.settings }

func (f *fakeWatering) Sessions(_ context.Context, limit int) ([]store.SessionRecord, error) {
	f.limit = limit

	return []store.SessionRecord{{
		DeviceID: "dev-1",
		Session: watering.Session{
			ID:          "s1",
			Requested:   10 * time.Second,
			Elapsed:     10 * time.Second,
			WaterUsedML: 58.333,
			Outcome:     watering.OutcomeCompleted,
		},
	}}, nil
}

func newTestServer(t *testing.T, core fakeCore, w *fakeWatering, modify ...func(*Options)) http.Handler {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := apicommon.NewMiddlewareHandler(l)

	rb := router.NewRouteBuilder(l)
	rb.Use(mw.RequestIDMiddleware, mw.LoggerMiddleware, mw.RecoveryMiddleware)

	opts := Options{
		DeviceID: "dev-1",
		Core:     core,
		Watering: w,
		Operations: func() []mqtt.OperationInfo {
			return []mqtt.OperationInfo{{OperationID: "publishWateringState"}}
		},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "metrics") }),
	}

	for _, m := range modify {
		m(&opts)
	}

	NewHandler(l, opts).Register(rb)

	return rb.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))

	return rec
}

func TestCoreRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		health     localservices.HealthStatus
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "ping", path: "/api/ping", wantStatus: http.StatusOK, wantBody: `"Pong"`},
		{name: "healthy", health: localservices.HealthStatus{Database: true, MQTT: true}, path: "/api/health", wantStatus: http.StatusOK},
		{name: "unhealthy", health: localservices.HealthStatus{Database: true}, path: "/api/health", wantStatus: http.StatusServiceUnavailable, wantBody: `"mqtt":false`},
		{name: "system", path: "/api/system", wantStatus: http.StatusOK, wantBody: `"operationId":"getWateringState"`},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantBody: "metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestServer(t, fakeCore{health: tt.health}, &fakeWatering{settings: watering.DefaultSettings()})
			rec := do(h, http.MethodGet, tt.path, "")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestTriggerRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "accepted", wantStatus: http.StatusAccepted},
		{name: "already watering", err: watering.ErrAlreadyWatering, wantStatus: http.StatusConflict},
		{name: "blocked", err: fmt.Errorf("%w: 5s remaining", watering.ErrBlocked), wantStatus: http.StatusConflict},
		{name: "tank empty", err: watering.ErrTankEmpty, wantStatus: http.StatusConflict},
		{name: "shutting down", err: localservices.ErrShuttingDown, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestServer(t, fakeCore{}, &fakeWatering{triggerErr: tt.err})

			if rec := do(h, http.MethodPost, "/api/watering/trigger", ""); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestWateringRoutes(t *testing.T) {
	t.Parallel()

	fw := &fakeWatering{settings: watering.DefaultSettings(), tankML: 100}
	h := newTestServer(t, fakeCore{}, fw)

	rec := do(h, http.MethodGet, "/api/watering", "")
	state, err := utils.FromJSON[sharedtypes.WateringState](rec.Body.Bytes())
	if err != nil || rec.Code != http.StatusOK || state.WaterLeftML != 100 || state.DeviceID != "dev-1" {
		t.Fatalf("GET /api/watering = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/api/watering/auto/toggle", "")
	if !strings.Contains(rec.Body.String(), `"autoWatering":true`) {
		t.Errorf("toggle body = %s", rec.Body.String())
	}

	if rec = do(h, http.MethodPut, "/api/watering/tank", `{"remainingML":750}`); rec.Code != http.StatusOK || fw.tankML != 750 {
		t.Errorf("PUT tank = %d, tank = %v", rec.Code, fw.tankML)
	}

	if rec = do(h, http.MethodPut, "/api/watering/tank", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("PUT tank without value = %d, want 400", rec.Code)
	}

	if rec = do(h, http.MethodPut, "/api/watering/tank", `{"remainingML":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("PUT negative tank = %d, want 400", rec.Code)
	}

	if rec = do(h, http.MethodPost, "/api/watering/tank/reset", ""); rec.Code != http.StatusOK || fw.tankML != fw.settings.TankCapacity {
		t.Errorf("reset = %d, tank = %v", rec.Code, fw.tankML)
	}
}

func TestSettingsRoutes(t *testing.T) {
	t.Parallel()

	fw := &fakeWatering{settings: watering.DefaultSettings()}
	h := newTestServer(t, fakeCore{}, fw)

	rec := do(h, http.MethodGet, "/api/watering/settings", "")
	if !strings.Contains(rec.Body.String(), `"wateringDuration":"10s"`) {
		t.Errorf("GET settings body = %s", rec.Body.String())
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"key":"watering_duration","value":"15s"}`, wantStatus: http.StatusOK},
		{name: "unknown key", body: `{"key":"color","value":"red"}`, wantStatus: http.StatusBadRequest},
		{name: "invalid value", body: `{"key":"max_cycles","value":"0"}`, wantStatus: http.StatusBadRequest},
		{name: "missing key", body: `{"value":"1"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"key":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		if rec := do(h, http.MethodPut, "/api/watering/settings", tt.body); rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, rec.Code, tt.wantStatus, rec.Body.String())
		}
	}

	if fw.settings.WateringDuration != 15*time.Second {
		t.Errorf("WateringDuration = %v, want 15s", fw.settings.WateringDuration)
	}
}

func TestSessionsRoute(t *testing.T) {
	t.Parallel()

	fw := &fakeWatering{}
	h := newTestServer(t, fakeCore{}, fw)

	rec := do(h, http.MethodGet, "/api/watering/sessions?limit=5", "")

	resp, err := utils.FromJSON[localtypes.SessionsResponse](rec.Body.Bytes())
	if err != nil || len(resp.Sessions) != 1 || fw.limit != 5 {
		t.Fatalf("sessions = %d %s, limit = %d", rec.Code, rec.Body.String(), fw.limit)
	}

	if s := resp.Sessions[0]; s.WaterUsedML != 58.33 || s.ElapsedSeconds != 10 || s.Outcome != "completed" {
		t.Errorf("session = %+v", s)
	}

	if rec := do(h, http.MethodGet, "/api/watering/sessions?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", rec.Code)
	}

	do(h, http.MethodGet, "/api/watering/sessions", "")

	if fw.limit != store.DefaultSessionLimit {
		t.Errorf("default limit = %d, want %d", fw.limit, store.DefaultSessionLimit)
	}
}

type fakeEnvironment struct {
	state sharedtypes.EnvironmentState
	err   error
}

func (e fakeEnvironment) State(context.Context) (sharedtypes.EnvironmentState, error) {
	return e.state, e.err
}

func TestEnvironmentRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		env        EnvironmentService
		wantStatus int
		wantBody   string
	}{
		{name: "no sensor configured", wantStatus: http.StatusNotFound},
		{
			name:       "sensor missing",
			env:        fakeEnvironment{err: localservices.ErrNoEnvironmentSensor},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "read failed",
			env:        fakeEnvironment{err: fmt.Errorf("i2c: %w", context.DeadlineExceeded)},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "Environment sensors unavailable",
		},
		{
			name:       "reading",
			env:        fakeEnvironment{state: sharedtypes.EnvironmentState{DeviceID: "dev-1", TemperatureC: 22.5, HeaterStable: true}},
			wantStatus: http.StatusOK,
			wantBody:   `"temperature":22.5`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestServer(t, fakeCore{}, &fakeWatering{settings: watering.DefaultSettings()}, func(o *Options) {
				o.Environment = tt.env
			})

			rec := do(h, http.MethodGet, "/api/environment", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
