package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := GetClerkID(r.Context())
		w.Write([]byte(id))
	})
}

func stubVerifier(t *testing.T, fn func(context.Context, string) (string, error)) {
	t.Helper()
	orig := verifySubject
	verifySubject = fn
	t.Cleanup(func() { verifySubject = orig })
}

func TestClerkAuthMiddleware(t *testing.T) {
	stubVerifier(t, func(_ context.Context, token string) (string, error) {
		if token == "good" {
			return "user_1", nil
		}
		return "", errors.New("bad signature")
	})
	h := ClerkAuthMiddleware(echoUser())

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"no bearer prefix", "good", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", "Bearer good", http.StatusOK, "user_1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestGetClerkIDRejectsEmpty(t *testing.T) {
	_, ok := GetClerkID(WithClerkID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := GetClerkID(WithClerkID(context.Background(), "user_1"))
	assert.True(t, ok)
	assert.Equal(t, "user_1", id)
}

func TestBasicAuthMiddleware(t *testing.T) {
	h := BasicAuthMiddleware("ops", "s3cret")(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.SetBasicAuth("ops", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.SetBasicAuth("ops", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuthMiddlewareUnconfiguredDeniesAll(t *testing.T) {
	h := BasicAuthMiddleware("", "")(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiterPerUser(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	h := rl.Middleware(echoUser())

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/checkins", nil)
		req = req.WithContext(WithClerkID(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("user_1"))
	assert.Equal(t, http.StatusOK, call("user_1"))
	assert.Equal(t, http.StatusTooManyRequests, call("user_1"))
	assert.Equal(t, http.StatusOK, call("user_2"))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	rl.limiterFor("ip:10.0.0.1")

	rl.evictIdle(time.Now().Add(time.Minute))
	assert.Len(t, rl.visitors, 1)

	rl.evictIdle(time.Now().Add(4 * time.Minute))
	assert.Empty(t, rl.visitors)
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.7", clientKey(req))
}

func TestMonitorMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MonitorMiddleware)
	router.HandleFunc("/venues/{id}/guests", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/venues/{id}/guests", http.MethodGet, "403"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/venues/abc/guests", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/venues/{id}/guests", http.MethodGet, "403"))
	assert.Equal(t, before+1, after)
}
