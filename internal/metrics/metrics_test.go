// ABOUTME: Tests for the metrics HTTP middleware
// ABOUTME: Verifies request counting by normalized path and status

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_CountsRequests(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/login", "401"))
	beforeOther := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "other", "200"))

	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/login", nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/123", nil))

	assert.Equal(t, before+3, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/login", "401")))
	assert.Equal(t, beforeOther+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "other", "200")))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/ws", normalizePath("/ws"))
	assert.Equal(t, "/health/ready", normalizePath("/health/ready"))
	assert.Equal(t, "other", normalizePath("/api/users/42"))
}
