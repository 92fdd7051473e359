package pipeline

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/socialchef/chefai/internal/config"
	"github.com/socialchef/chefai/internal/credentials"
	apperrors "github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/failover"
	"github.com/socialchef/chefai/internal/services/gemini"
	"github.com/socialchef/chefai/internal/services/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecipeJSON = `{
	"title": "Chicken Pulao",
	"cuisine": "North Indian",
	"mealType": "Dinner",
	"difficulty": "Intermediate",
	"ingredients": [
		{"name": "chicken", "amount": "500", "unit": "g"},
		{"name": "basmati rice", "amount": "2", "unit": "cups"},
		{"name": "onion", "amount": "1", "unit": "large"}
	],
	"instructions": ["Brown the chicken.", "Add rice and water, then simmer."],
	"imagePrompt": "Fragrant chicken pulao in a brass handi"
}`

type signalErr struct{ signal failover.Signal }

func (e *signalErr) Error() string           { return "gateway: " + string(e.signal) }
func (e *signalErr) Signal() failover.Signal { return e.signal }

// fakeGateway answers according to the credential it was built for.
type fakeGateway struct {
	ordinal int
	f       *fakeGateways
}

func (g *fakeGateway) GenerateRecipeText(_ context.Context, model, prompt string, schema *recipe.Schema, _ int) (string, error) {
	g.f.record("text", g.ordinal, prompt)
	if err := g.f.textErrs[g.ordinal]; err != nil {
		return "", err
	}
	return g.f.text, nil
}

func (g *fakeGateway) RecognizeIngredients(_ context.Context, _, _ string, image []byte, mime string) (string, error) {
	g.f.record("recognize", g.ordinal, mime)
	if err := g.f.recognizeErrs[string(image)]; err != nil {
		return "", err
	}
	return g.f.recognized[string(image)], nil
}

func (g *fakeGateway) SynthesizeImage(ctx context.Context, _, prompt, _ string) (*gemini.Image, error) {
	g.f.record("image", g.ordinal, prompt)
	if g.f.imageDelay > 0 {
		time.Sleep(g.f.imageDelay)
	}
	if g.f.imageErr != nil {
		return nil, g.f.imageErr
	}
	return &gemini.Image{MIMEType: "image/png", Data: "aW1n"}, nil
}

type call struct {
	kind    string
	ordinal int
	arg     string
}

type fakeGateways struct {
	text          string
	textErrs      map[int]error
	recognized    map[string]string
	recognizeErrs map[string]error
	imageErr      error
	imageDelay    time.Duration

	built atomic.Int32
	mu    sync.Mutex
	calls []call
}

func (f *fakeGateways) record(kind string, ordinal int, arg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind, ordinal, arg})
}

func (f *fakeGateways) callsOf(kind string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGateways) factory() GatewayFactory {
	return func(cred credentials.Credential) Gateway {
		f.built.Add(1)
		return &fakeGateway{ordinal: cred.Ordinal, f: f}
	}
}

func testConfig() Config {
	return Config{
		RecipeModel:           "recipe-model",
		VisionModel:           "vision-model",
		ImageModel:            "image-model",
		ImageAspectRatio:      "16:9",
		PlaceholderImageURL:   "https://example.com/placeholder.jpg",
		RequireMainIngredient: true,
	}
}

func chickenRice() GenerationRequest {
	return GenerationRequest{
		Ingredients:       []string{"chicken", "rice"},
		DietaryConstraint: "None",
		CuisineStyle:      "North Indian",
		MealCategory:      "Dinner",
		SkillLevel:        "Intermediate",
	}
}

func TestGenerate_EmptyIngredientsNeverCallsGateway(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON}
	var states []State
	p := New(credentials.NewPool("k1"), f.factory(), testConfig(), WithObserver(func(s State) { states = append(states, s) }))

	for _, ingredients := range [][]string{nil, {}, {"  ", ""}} {
		req := chickenRice()
		req.Ingredients = ingredients

		_, err := p.Generate(context.Background(), req)

		assert.Equal(t, apperrors.ErrorTypeEmptyInput, apperrors.KindOf(err))
	}
	assert.Zero(t, f.built.Load(), "no gateway may be constructed")
	assert.Empty(t, f.calls)
	assert.Equal(t, []State{StateIdle, StateRejected}, states[:2])
}

func TestGenerate_ChickenRiceEndToEnd(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	var states []State
	p := New(credentials.NewPool("k1"), f.factory(), testConfig(),
		WithClock(func() time.Time { return fixed }),
		WithObserver(func(s State) { states = append(states, s) }))

	out, err := p.Generate(context.Background(), chickenRice())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(out.Ingredients), 2)
	assert.GreaterOrEqual(t, len(out.Instructions), 1)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, fixed.UTC(), out.CreatedAt)
	assert.Equal(t, []string{}, out.DietaryNeeds)
	assert.Equal(t, "Chicken Pulao", out.Title)
	assert.Equal(t, []State{StateIdle, StatePromptBuilding, StateDispatching, StateValidating, StateSuccess}, states)

	textCalls := f.callsOf("text")
	require.Len(t, textCalls, 1)
	assert.Contains(t, textCalls[0].arg, "Available Ingredients: chicken, rice")
	assert.Contains(t, textCalls[0].arg, "Cuisine/Country: North Indian")
}

func TestGenerate_FreshIdentifierPerCall(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())

	a, err := p.Generate(context.Background(), chickenRice())
	require.NoError(t, err)
	b, err := p.Generate(context.Background(), chickenRice())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Recipe, b.Recipe)
}

func TestGenerate_DietaryNeeds(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())
	req := chickenRice()
	req.DietaryConstraint = "Gluten-Free"

	out, err := p.Generate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, []string{"Gluten-Free"}, out.DietaryNeeds)
}

func TestGenerate_MissingMainIngredient(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())
	req := chickenRice()
	req.Ingredients = []string{"salt", "sugar"}

	_, err := p.Generate(context.Background(), req)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeInsufficientInput, appErr.Type)
	assert.Equal(t, "MISSING_MAIN_INGREDIENT", appErr.Code())
	assert.Zero(t, f.built.Load())

	cfg := testConfig()
	cfg.RequireMainIngredient = false
	_, err = New(credentials.NewPool("k1"), f.factory(), cfg).Generate(context.Background(), req)
	assert.NoError(t, err, "the precheck can be switched off")
}

func TestGenerate_InvalidSkillLevel(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())
	req := chickenRice()
	req.SkillLevel = "Wizard"

	_, err := p.Generate(context.Background(), req)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_SKILL_LEVEL", appErr.Code())
	assert.Zero(t, f.built.Load())
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		pool     *credentials.Pool
		textErrs map[int]error
		text     string
		want     apperrors.ErrorType
		calls    int
	}{
		{
			name:     "all credentials rate limited",
			pool:     credentials.NewPool("k1", "k2"),
			textErrs: map[int]error{1: &signalErr{failover.SignalRateLimited}, 2: &signalErr{failover.SignalQuotaExceeded}},
			want:     apperrors.ErrorTypeSynthesisUnavailable,
			calls:    2,
		},
		{
			name:  "empty pool",
			pool:  credentials.NewPool(),
			want:  apperrors.ErrorTypeSynthesisUnavailable,
			calls: 0,
		},
		{
			name:     "safety block",
			pool:     credentials.NewPool("k1", "k2"),
			textErrs: map[int]error{1: &signalErr{failover.SignalSafetyBlocked}},
			want:     apperrors.ErrorTypeSynthesisRejectedInput,
			calls:    1,
		},
		{
			name:  "malformed json",
			pool:  credentials.NewPool("k1"),
			text:  `{"title": `,
			want:  apperrors.ErrorTypeMalformedJSON,
			calls: 1,
		},
		{
			name:  "schema violation",
			pool:  credentials.NewPool("k1"),
			text:  `{"title": "x"}`,
			want:  apperrors.ErrorTypeSchemaViolation,
			calls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeGateways{text: tt.text, textErrs: tt.textErrs}
			var last State
			p := New(tt.pool, f.factory(), testConfig(), WithObserver(func(s State) { last = s }))

			out, err := p.Generate(context.Background(), chickenRice())

			assert.Nil(t, out)
			assert.Equal(t, tt.want, apperrors.KindOf(err))
			assert.Len(t, f.callsOf("text"), tt.calls)
			assert.Equal(t, StateRejected, last)
		})
	}
}

func TestGenerate_FailoverReachesThirdCredential(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON, textErrs: map[int]error{
		1: &signalErr{failover.SignalRateLimited},
		2: &signalErr{failover.SignalUnauthorized},
	}}
	p := New(credentials.NewPool("k1", "k2", "k3"), f.factory(), testConfig())

	_, err := p.Generate(context.Background(), chickenRice())

	require.NoError(t, err)
	var ordinals []int
	for _, c := range f.callsOf("text") {
		ordinals = append(ordinals, c.ordinal)
	}
	assert.Equal(t, []int{1, 2, 3}, ordinals)
	assert.Equal(t, int32(3), f.built.Load(), "one client per attempt")
}

func TestHealth_EmptyPoolIsUnconfigured(t *testing.T) {
	f := &fakeGateways{}
	p := New(credentials.NewPool(), f.factory(), testConfig())

	assert.Equal(t, credentials.HealthUnconfigured, p.Health())
	assert.Equal(t, apperrors.ErrorTypeUnconfigured, apperrors.KindOf(p.CheckConfigured()))
	assert.Zero(t, f.built.Load())

	assert.Equal(t, credentials.HealthHealthy, New(credentials.NewPool("k"), f.factory(), testConfig()).Health())
}

func TestSynthesizeImage_NoImageDoesNotAffectParallelRecipe(t *testing.T) {
	f := &fakeGateways{
		text:       validRecipeJSON,
		imageErr:   apperrors.NewNoImageProducedError(),
		imageDelay: 5 * time.Millisecond,
	}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())

	var (
		wg        sync.WaitGroup
		recipeOut *SynthesizedRecipe
		recipeErr error
		imageErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		recipeOut, recipeErr = p.Generate(context.Background(), chickenRice())
	}()
	go func() {
		defer wg.Done()
		_, imageErr = p.SynthesizeImage(context.Background(), "a plate of pulao")
	}()
	wg.Wait()

	assert.Equal(t, apperrors.ErrorTypeNoImageProduced, apperrors.KindOf(imageErr))
	require.NoError(t, recipeErr)
	assert.Equal(t, "Chicken Pulao", recipeOut.Title)
}

func TestSynthesizeImage(t *testing.T) {
	f := &fakeGateways{}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())

	img, err := p.SynthesizeImage(context.Background(), "a plate of pulao")

	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,aW1n", img.DataURL())
	calls := f.callsOf("image")
	require.Len(t, calls, 1)
	assert.Equal(t, "A professional food photography shot of a plate of pulao. Gourmet, minimalist, soft light, 4k.", calls[0].arg)

	_, err = p.SynthesizeImage(context.Background(), "   ")
	assert.Equal(t, apperrors.ErrorTypeEmptyInput, apperrors.KindOf(err))
}

func TestCompose(t *testing.T) {
	t.Run("with image", func(t *testing.T) {
		f := &fakeGateways{text: validRecipeJSON}
		p := New(credentials.NewPool("k1"), f.factory(), testConfig())

		out, err := p.Compose(context.Background(), chickenRice())

		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,aW1n", out.ImageURL)
		assert.Empty(t, out.ImageError)
		calls := f.callsOf("image")
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].arg, "Fragrant chicken pulao in a brass handi")
	})

	t.Run("image failure falls back to placeholder", func(t *testing.T) {
		f := &fakeGateways{text: validRecipeJSON, imageErr: apperrors.NewNoImageProducedError()}
		p := New(credentials.NewPool("k1"), f.factory(), testConfig())

		out, err := p.Compose(context.Background(), chickenRice())

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/placeholder.jpg", out.ImageURL)
		assert.Equal(t, string(apperrors.ErrorTypeNoImageProduced), out.ImageError)
	})

	t.Run("text rejection is never papered over", func(t *testing.T) {
		f := &fakeGateways{text: `{"title": ""}`}
		p := New(credentials.NewPool("k1"), f.factory(), testConfig())

		out, err := p.Compose(context.Background(), chickenRice())

		assert.Nil(t, out)
		assert.Equal(t, apperrors.ErrorTypeSchemaViolation, apperrors.KindOf(err))
		assert.Empty(t, f.callsOf("image"))
	})
}

type mapCache struct {
	mu    sync.Mutex
	items map[string][]string
}

func (c *mapCache) Get(_ context.Context, image []byte) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.items[string(image)]
	return items, ok
}

func (c *mapCache) Set(_ context.Context, image []byte, items []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[string(image)] = items
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestRecognizeIngredients(t *testing.T) {
	f := &fakeGateways{recognized: map[string]string{"img-1": "Tomato, onion\n- garlic, tomato"}}
	c := &mapCache{items: map[string][]string{}}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig(), WithRecognitionCache(c))

	first, err := p.RecognizeIngredients(context.Background(), b64("img-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tomato", "onion", "garlic"}, first.Ingredients)
	assert.False(t, first.Cached)

	second, err := p.RecognizeIngredients(context.Background(), "data:image/png;base64,"+b64("img-1"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Ingredients, second.Ingredients)
	assert.Len(t, f.callsOf("recognize"), 1, "second call is served from cache")
}

func TestRecognizeIngredients_InvalidImage(t *testing.T) {
	f := &fakeGateways{}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())

	for _, payload := range []string{"", "   ", "not base64!!", "data:image/png,plain"} {
		_, err := p.RecognizeIngredients(context.Background(), payload)
		appErr, ok := apperrors.As(err)
		require.True(t, ok, payload)
		assert.Equal(t, "INVALID_IMAGE", appErr.Code(), payload)
	}
	assert.Zero(t, f.built.Load())
}

func TestRecognizeIngredients_NoFoodIsEmptyList(t *testing.T) {
	f := &fakeGateways{recognized: map[string]string{}}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())

	out, err := p.RecognizeIngredients(context.Background(), b64("empty-plate"))

	require.NoError(t, err)
	assert.Equal(t, []string{}, out.Ingredients)
}

func TestRecognizeAll(t *testing.T) {
	f := &fakeGateways{
		recognized: map[string]string{
			"fridge": "eggs, milk, spinach",
			"pantry": "rice, eggs",
		},
		recognizeErrs: map[string]error{"blurry": &signalErr{failover.SignalInvalidRequest}},
	}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())

	out, err := p.RecognizeAll(context.Background(), []string{b64("fridge"), b64("blurry"), b64("pantry")})

	require.NoError(t, err)
	assert.Equal(t, []string{"eggs", "milk", "spinach", "rice"}, out.Ingredients)

	_, err = p.RecognizeAll(context.Background(), []string{b64("blurry"), b64("blurry")})
	assert.Equal(t, apperrors.ErrorTypeSynthesisRejectedInput, apperrors.KindOf(err))

	_, err = p.RecognizeAll(context.Background(), nil)
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON, recognized: map[string]string{"img": "paneer"}}
	p := New(credentials.NewPool("k1"), f.factory(), testConfig())
	ctx := context.Background()

	res, err := p.Dispatch(ctx, GenerateText{Request: chickenRice()})
	require.NoError(t, err)
	assert.Equal(t, "Chicken Pulao", res.Recipe.Title)
	assert.Empty(t, res.Recipe.ImageURL)

	res, err = p.Dispatch(ctx, GenerateText{Request: chickenRice(), WithImage: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Recipe.ImageURL, "data:image/png;base64,"))

	res, err = p.Dispatch(ctx, RecognizeImage{Images: []string{b64("img")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"paneer"}, res.Recognition.Ingredients)

	res, err = p.Dispatch(ctx, SynthesizeImage{Prompt: "paneer tikka"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.Image.MIMEType)

	_, err = p.Dispatch(ctx, nil)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_ACTION", appErr.Code())
}

// wrappedAction satisfies Action by embedding a variant but matches no case.
type wrappedAction struct {
	GenerateText
}

func TestDispatch_UnknownVariantIsInvalidAction(t *testing.T) {
	p := New(credentials.NewPool("k1"), (&fakeGateways{}).factory(), testConfig())

	var res *ActionResult
	var err error
	assert.NotPanics(t, func() {
		res, err = p.Dispatch(context.Background(), wrappedAction{GenerateText{Request: chickenRice()}})
	})
	assert.Nil(t, res)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_ACTION", appErr.Code())
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestDispatch_UnconfiguredBeforeAnyRun(t *testing.T) {
	f := &fakeGateways{text: validRecipeJSON}
	p := New(credentials.NewPool(), f.factory(), testConfig())

	_, err := p.Dispatch(context.Background(), GenerateText{Request: chickenRice()})

	assert.Equal(t, apperrors.ErrorTypeUnconfigured, apperrors.KindOf(err))
	assert.Zero(t, f.built.Load())
}

func TestParseIngredientList(t *testing.T) {
	got := ParseIngredientList("1. Tomatoes\n2. Red Onion; garlic,  , \"basil\".")
	assert.Equal(t, []string{"tomatoes", "red onion", "garlic", "basil"}, got)
}

func TestDecodeImage_SniffsMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	data, mime, err := DecodeImage(base64.StdEncoding.EncodeToString(png))
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, "image/png", mime)

	_, mime, err = DecodeImage(b64("plain bytes"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateValidating.Terminal())
	assert.Equal(t, "unknown", State(42).String())
}

func TestConfigFrom(t *testing.T) {
	off := false
	cfg := ConfigFrom(config.SynthesisConfig{
		RecipeModel:           "r",
		ImageAspectRatio:      "1:1",
		ThinkingBudget:        8,
		RequireMainIngredient: &off,
	})
	assert.Equal(t, "r", cfg.RecipeModel)
	assert.Equal(t, "1:1", cfg.ImageAspectRatio)
	assert.Equal(t, 8, cfg.ThinkingBudget)
	assert.False(t, cfg.RequireMainIngredient)

	assert.True(t, ConfigFrom(config.SynthesisConfig{}).RequireMainIngredient)
}
