package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	const apiKey = "test-api-key"

	tests := []struct {
		name     string
		header   map[string]string
		query    string
		wantCode int
		wantBody string
	}{
		{"x-api-key header", map[string]string{"X-API-Key": apiKey}, "", http.StatusOK, "success"},
		{"bearer token", map[string]string{"Authorization": "Bearer " + apiKey}, "", http.StatusOK, "success"},
		{"query parameter", nil, "?key=" + apiKey, http.StatusOK, "success"},
		{"missing key", nil, "", http.StatusUnauthorized, "missing API key"},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, "", http.StatusUnauthorized, "invalid API key"},
		{"bare bearer prefix", map[string]string{"Authorization": "Bearer "}, "", http.StatusUnauthorized, "missing API key"},
		{"lowercase bearer", map[string]string{"Authorization": "bearer " + apiKey}, "", http.StatusUnauthorized, "missing API key"},
		{"header wins over query", map[string]string{"X-API-Key": "nope"}, "?key=" + apiKey, http.StatusUnauthorized, "invalid API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyAuth(apiKey)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/stats"+tt.query, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestAPIKeyAuth_ErrorIsJSON(t *testing.T) {
	handler := APIKeyAuth("secret")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if w.Body.String() != `{"error":"missing API key"}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestCORS(t *testing.T) {
	handler := CORS(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/acquire", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Media-Title") {
		t.Errorf("Access-Control-Expose-Headers = %q, want media headers exposed", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/acquisitions", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("preflight should not reach the next handler")
	}
}
