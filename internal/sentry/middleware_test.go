package sentry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMiddleware_RecoversPanic(t *testing.T) {
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("burnt")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/recipes", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"status":"error","error":"INTERNAL","message":"Something went wrong while cooking."}`, rr.Body.String())
}

func TestHTTPMiddleware_AttachesHub(t *testing.T) {
	var hub *sentry.Hub
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub = sentry.GetHubFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotNil(t, hub)
}

func TestScrubCredentials(t *testing.T) {
	event := &sentry.Event{Request: &sentry.Request{Headers: map[string]string{
		"x-goog-api-key": "secret",
		"Accept":         "application/json",
	}}}

	out := scrubCredentials(event, nil)

	assert.NotContains(t, out.Request.Headers, "x-goog-api-key")
	assert.Equal(t, "application/json", out.Request.Headers["Accept"])
}

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	assert.NoError(t, Init("", "test", "chefai", "dev"))
}
