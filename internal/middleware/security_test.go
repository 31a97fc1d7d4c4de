package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name      string
		secure    bool
		path      string
		wantHSTS  bool
		wantStore bool
	}{
		{"development api", false, "/inspections/abc", false, true},
		{"production api", true, "/inspections/abc", true, true},
		{"stored file", true, "/files/inspections/abc/return/a.jpg", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewSecurityHeadersMiddleware(tt.secure).Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			h := rec.Header()
			assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
			assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
			assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'none'")

			if tt.wantHSTS {
				assert.Contains(t, h.Get("Strict-Transport-Security"), "max-age=31536000")
			} else {
				assert.Empty(t, h.Get("Strict-Transport-Security"))
			}
			if tt.wantStore {
				assert.Equal(t, "no-store", h.Get("Cache-Control"))
			} else {
				assert.Empty(t, h.Get("Cache-Control"))
			}
		})
	}
}
