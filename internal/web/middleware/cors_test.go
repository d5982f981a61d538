package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS_Origins(t *testing.T) {
	handler := CORS([]string{" https://kiosk.example.com/ ", ""})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"configured origin", "https://kiosk.example.com", true},
		{"localhost with port", "http://localhost:5173", true},
		{"bare localhost", "https://localhost", true},
		{"loopback", "http://127.0.0.1:8080", true},
		{"localhost lookalike", "http://localhost.evil.com", false},
		{"unknown origin", "https://evil.example.com", false},
		{"no origin", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			got := recorder.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Errorf("expected origin %q to be echoed, got %q", tc.origin, got)
			}
			if !tc.allowed && got != "" {
				t.Errorf("expected no allow-origin header, got %q", got)
			}
			if recorder.Code != http.StatusTeapot {
				t.Errorf("expected request to reach handler, got %d", recorder.Code)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", recorder.Code)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, header := range []string{"Content-Security-Policy", "Permissions-Policy", "X-Content-Type-Options", "X-Frame-Options"} {
		if recorder.Header().Get(header) == "" {
			t.Errorf("expected %s to be set", header)
		}
	}
}
