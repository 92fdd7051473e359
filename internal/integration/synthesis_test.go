package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialchef/chefai/internal/api"
	"github.com/socialchef/chefai/internal/config"
	"github.com/socialchef/chefai/internal/credentials"
	"github.com/socialchef/chefai/internal/httpclient"
	"github.com/socialchef/chefai/internal/pipeline"
)

// ============================================================================
// Fake Gemini
// ============================================================================

const recipeText = `{
	"title": "Egg Bhurji",
	"cuisine": "Indian",
	"ingredients": [{"name": "eggs", "amount": "4", "unit": "whole"}, {"name": "onion", "amount": "1", "unit": "small"}],
	"instructions": ["Whisk the eggs.", "Scramble with onion and masala."],
	"imagePrompt": "Egg bhurji with buttered pav"
}`

// fakeGemini answers by API key: "limited*" keys are rate limited, "blocked" trips the safety
// filter, "broken" returns a 500 and anything else succeeds.
type fakeGemini struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeGemini) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("x-goog-api-key")
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(key, "limited"):
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Too many requests","status":"RESOURCE_EXHAUSTED"}}`))
		return
	case key == "broken":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
		return
	case key == "blocked":
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
		return
	}

	var part map[string]any
	switch {
	case strings.Contains(r.URL.Path, "recipe-model"):
		part = map[string]any{"text": recipeText}
	case strings.Contains(r.URL.Path, "vision-model"):
		part = map[string]any{"text": "Eggs, Spinach, eggs"}
	case strings.Contains(r.URL.Path, "image-model"):
		part = map[string]any{"inlineData": map[string]any{"mimeType": "image/png", "data": "aW1n"}}
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"model not found","status":"NOT_FOUND"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{part}},
			"finishReason": "STOP",
		}},
	})
}

// ============================================================================
// Fixtures
// ============================================================================

type fixture struct {
	gemini *fakeGemini
	router http.Handler
}

func setup(t *testing.T, keys ...string) *fixture {
	t.Helper()
	fake := &fakeGemini{}
	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	gateways := pipeline.GeminiGateways(upstream.URL, httpclient.WrapClient(upstream.Client()))
	p := pipeline.New(credentials.NewPool(keys...), gateways, pipeline.Config{
		RecipeModel:           "recipe-model",
		VisionModel:           "vision-model",
		ImageModel:            "image-model",
		ImageAspectRatio:      "16:9",
		ThinkingBudget:        1024,
		PlaceholderImageURL:   "https://example.com/placeholder.jpg",
		RequireMainIngredient: true,
	})

	r := chi.NewRouter()
	api.NewServer(&config.Config{}, p).Routes(r)
	return &fixture{gemini: fake, router: r}
}

func (f *fixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

var eggsAndOnion = map[string]any{
	"ingredients":       []string{"Eggs", "onion"},
	"dietaryConstraint": "Vegetarian",
	"cuisineStyle":      "Indian",
	"mealCategory":      "Breakfast",
	"skillLevel":        "Beginner",
}

// ============================================================================
// Recipe synthesis
// ============================================================================

func TestGenerateRecipe_FailsOverPastRateLimitedKey(t *testing.T) {
	f := setup(t, "limited", "good")

	rr := f.post(t, "/api/recipes", eggsAndOnion)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"limited", "good"}, f.gemini.seen())

	var resp struct {
		Recipe pipeline.SynthesizedRecipe `json:"recipe"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Egg Bhurji", resp.Recipe.Title)
	assert.Equal(t, []string{"Vegetarian"}, resp.Recipe.DietaryNeeds)
	assert.Equal(t, 2, resp.Recipe.Servings, "absent servings take the default")
}

func TestGenerateRecipe_ServerErrorIsRecoverable(t *testing.T) {
	f := setup(t, "broken", "good")

	rr := f.post(t, "/api/recipes", eggsAndOnion)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"broken", "good"}, f.gemini.seen())
}

func TestGenerateRecipe_SafetyBlockStopsFailover(t *testing.T) {
	f := setup(t, "blocked", "good")

	rr := f.post(t, "/api/recipes", eggsAndOnion)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "SYNTHESIS_REJECTED_INPUT", errorCode(t, rr))
	assert.Equal(t, []string{"blocked"}, f.gemini.seen())
}

func TestGenerateRecipe_AllKeysLimited(t *testing.T) {
	f := setup(t, "limited-1", "limited-2")

	rr := f.post(t, "/api/recipes", eggsAndOnion)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "SYNTHESIS_UNAVAILABLE", errorCode(t, rr))
	assert.Len(t, f.gemini.seen(), 2)
}

func TestGenerateRecipe_PrecheckNeverReachesModel(t *testing.T) {
	f := setup(t, "good")

	rr := f.post(t, "/api/recipes", map[string]any{"ingredients": []string{"salt", "pepper"}})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "MISSING_MAIN_INGREDIENT", errorCode(t, rr))
	assert.Empty(t, f.gemini.seen())
}

func TestGenerateRecipe_WithImage(t *testing.T) {
	f := setup(t, "good")

	rr := f.post(t, "/api/recipes?image=true", eggsAndOnion)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"imageUrl":"data:image/png;base64,aW1n"`)
	assert.Len(t, f.gemini.seen(), 2)
}

// ============================================================================
// Recognition and the action envelope
// ============================================================================

func TestChefAnalyze(t *testing.T) {
	f := setup(t, "good")

	rr := f.post(t, "/api/chef", map[string]any{
		"action":  "analyze",
		"payload": map[string]any{"image": "data:image/jpeg;base64,/9j/4AAQSkZJRg=="},
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Recognition pipeline.Recognition `json:"recognition"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"eggs", "spinach"}, resp.Recognition.Ingredients)
}

func TestChefHealth_Unconfigured(t *testing.T) {
	f := setup(t)

	rr := f.post(t, "/api/chef", map[string]any{"action": "health"})
	assert.JSONEq(t, `{"status":"unconfigured"}`, rr.Body.String())

	rr = f.post(t, "/api/chef", map[string]any{"action": "image", "payload": map[string]any{"prompt": "poha"}})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "UNCONFIGURED", errorCode(t, rr))
	assert.Empty(t, f.gemini.seen())
}
