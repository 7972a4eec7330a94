package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := InternalAuthMiddleware("service-key")(next)

	cases := []struct {
		name string
		key  string
		want int
	}{
		{"valid key", "service-key", http.StatusOK},
		{"wrong key", "other-key", http.StatusForbidden},
		{"missing key", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/transfers", nil)
			if tc.key != "" {
				req.Header.Set("X-Internal-Api-Key", tc.key)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestInternalAuthMiddlewareRefusesWhenUnconfigured(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run when no key is configured")
	})
	protected := InternalAuthMiddleware("")(next)

	req := httptest.NewRequest(http.MethodPost, "/internal/transfers", nil)
	req.Header.Set("X-Internal-Api-Key", "anything")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
