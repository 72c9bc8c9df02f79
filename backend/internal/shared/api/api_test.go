package apicommon

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"growmat/backend/internal/shared/types"
	"growmat/backend/pkg/utils"
)

func newTestChain(h http.Handler) http.Handler {
	m := NewMiddlewareHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	return m.RequestIDMiddleware(m.LoggerMiddleware(m.RecoveryMiddleware(h)))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()

	resp, err := utils.FromJSON[types.ErrorResponse](rec.Body.Bytes())
	if err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	return resp
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "http error", err: NewError(http.StatusConflict, "busy"), wantStatus: http.StatusConflict, wantMsg: "busy"},
		{name: "internal error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMsg: "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestChain(ErrorHandler(func(http.ResponseWriter, *http.Request) error { return tt.err }))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, "req-1")

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			resp := decodeError(t, rec)
			if resp.Message != tt.wantMsg || resp.RequestID != "req-1" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	h := newTestChain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing generated request ID header")
	}
}

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(t.Context(), "abc")

	if GetLoggerOrNil(ctx) != nil {
		t.Error("request ID must not be returned as logger")
	}

	if got := GetRequestID(ctx); got != "abc" {
		t.Errorf("GetRequestID() = %q", got)
	}

	if got := GetRequestID(t.Context()); got != zeroUUID {
		t.Errorf("GetRequestID(empty) = %q", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Key string `json:"key"`
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"key":"a"}`},
		{name: "empty", body: ``, wantStatus: http.StatusBadRequest},
		{name: "syntax", body: `{"key":}`, wantStatus: http.StatusBadRequest},
		{name: "type", body: `{"key":1}`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"other":1}`, wantStatus: http.StatusBadRequest},
		{name: "trailing", body: `{"key":"a"}{}`, wantStatus: http.StatusBadRequest},
		{name: "too large", body: `{"key":"` + strings.Repeat("a", MaxBodySize) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			got, err := DecodeJSON[payload](req)
			if tt.wantStatus == 0 {
				if err != nil || got.Key != "a" {
					t.Fatalf("DecodeJSON() = %+v, %v", got, err)
				}

				return
			}

			var httpErr *types.ErrorResponse
			if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.wantStatus {
				t.Errorf("DecodeJSON() error = %v, want status %d", err, tt.wantStatus)
			}
		})
	}
}
