package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapClient_PassesRequestsThrough(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := WrapClient(srv.Client())
	ctx := WithUpstream(context.Background(), "gemini", "generate_recipe")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1beta/models/m:generateContent", nil)
	require.NoError(t, err)
	req.Header.Set("x-goog-api-key", "k1")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "k1", gotKey)
}

func TestWithUpstream(t *testing.T) {
	ctx := WithUpstream(context.Background(), "gemini", "synthesize_image")
	assert.Equal(t, "gemini", ctx.Value(upstreamKey))
	assert.Equal(t, "synthesize_image", ctx.Value(operationKey))
}

func TestNew_SetsTimeout(t *testing.T) {
	c := New(90 * time.Second)
	assert.Equal(t, 90*time.Second, c.Timeout)
	assert.NotNil(t, c.Transport)
}
