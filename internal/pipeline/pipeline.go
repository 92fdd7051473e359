// Package pipeline turns generation requests into validated recipes and images. Each call
// builds a prompt, runs the model call across the credential pool with failover, validates
// the result and maps every failure to a stable error kind.
package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/socialchef/chefai/internal/config"
	"github.com/socialchef/chefai/internal/credentials"
	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/failover"
	"github.com/socialchef/chefai/internal/logger"
	"github.com/socialchef/chefai/internal/metrics"
	"github.com/socialchef/chefai/internal/services/ai"
	"github.com/socialchef/chefai/internal/services/gemini"
	"github.com/socialchef/chefai/internal/services/recipe"
	"github.com/socialchef/chefai/internal/telemetry"
	"github.com/socialchef/chefai/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config selects models and optional behaviour.
type Config struct {
	RecipeModel           string
	VisionModel           string
	ImageModel            string
	ImageAspectRatio      string
	ThinkingBudget        int
	PlaceholderImageURL   string
	RequireMainIngredient bool
}

// ConfigFrom maps the loaded synthesis settings onto a pipeline Config.
func ConfigFrom(s config.SynthesisConfig) Config {
	return Config{
		RecipeModel:           s.RecipeModel,
		VisionModel:           s.VisionModel,
		ImageModel:            s.ImageModel,
		ImageAspectRatio:      s.ImageAspectRatio,
		ThinkingBudget:        s.ThinkingBudget,
		PlaceholderImageURL:   s.PlaceholderImageURL,
		RequireMainIngredient: s.MainIngredientRequired(),
	}
}

// RecognitionCache stores ingredient lists by image content.
type RecognitionCache interface {
	Get(ctx context.Context, image []byte) ([]string, bool)
	Set(ctx context.Context, image []byte, items []string)
}

type Pipeline struct {
	orchestrator *failover.Orchestrator
	newGateway   GatewayFactory
	cfg          Config
	cache        RecognitionCache
	observer     Observer
	now          func() time.Time
	newID        func() string
}

type Option func(*Pipeline)

// WithObserver reports state transitions of every Generate run.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithRecognitionCache enables caching of ingredient recognition.
func WithRecognitionCache(c RecognitionCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline over pool. The pool is read-only and may be shared.
func New(pool *credentials.Pool, gateways GatewayFactory, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		orchestrator: failover.NewOrchestrator(pool),
		newGateway:   gateways,
		cfg:          cfg,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Health reports healthy iff at least one credential is configured. No network call is made.
func (p *Pipeline) Health() credentials.HealthStatus {
	return p.orchestrator.Pool().Health()
}

// CheckConfigured returns UNCONFIGURED when the pool is empty.
func (p *Pipeline) CheckConfigured() error {
	if p.Health() == credentials.HealthUnconfigured {
		return errors.NewUnconfiguredError()
	}
	return nil
}

// Generate synthesizes and validates one recipe. Empty or insufficient input is rejected
// before any credential is used.
func (p *Pipeline) Generate(ctx context.Context, req GenerationRequest) (_ *SynthesizedRecipe, err error) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.generate")
	defer span.End()
	done := p.track(ctx, span, "generate")
	defer func() { done(err) }()

	r := newRun(p.observer)
	defer func() {
		if err != nil {
			r.to(StateRejected)
		}
	}()

	ingredients := validation.NormalizeIngredients(req.Ingredients)
	if len(ingredients) == 0 {
		return nil, errors.NewEmptyInputError("Input matrix is empty.")
	}
	if p.cfg.RequireMainIngredient {
		if check := validation.CheckIngredients(ingredients); !check.IsValid {
			return nil, errors.NewInsufficientInputError(check.Reason, "MISSING_MAIN_INGREDIENT")
		}
	}
	skill, err := ParseSkillLevel(req.SkillLevel)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("pipeline.ingredients", len(ingredients)))

	r.to(StatePromptBuilding)
	prompt := ai.BuildRecipePrompt(req.promptParams(ingredients, skill))
	schema := recipe.ResponseSchema()

	r.to(StateDispatching)
	raw, err := failover.Run(ctx, p.orchestrator, "generate_recipe", func(ctx context.Context, cred credentials.Credential) (string, error) {
		return p.newGateway(cred).GenerateRecipeText(ctx, p.cfg.RecipeModel, prompt, schema, p.cfg.ThinkingBudget)
	})
	if err != nil {
		return nil, mapDispatchError(err)
	}

	r.to(StateValidating)
	validated, err := recipe.Validate(raw)
	if err != nil {
		metrics.ValidationRejectionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(errors.KindOf(err))),
		))
		slog.Warn("Model response rejected by validator",
			"error", err.Error(),
			"length", len(raw),
			logger.WithTraceContext(ctx))
		return nil, err
	}

	out := &SynthesizedRecipe{
		Recipe:       *validated,
		ID:           p.newID(),
		CreatedAt:    p.now().UTC(),
		DietaryNeeds: req.dietaryNeeds(),
	}
	r.to(StateSuccess)
	return out, nil
}

// SynthesizeImage requests one food photograph for prompt. It has no validation stage;
// a response without image data is NO_IMAGE_PRODUCED.
func (p *Pipeline) SynthesizeImage(ctx context.Context, prompt string) (_ *gemini.Image, err error) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.image")
	defer span.End()
	done := p.track(ctx, span, "synthesize_image")
	defer func() { done(err) }()

	if isBlank(prompt) {
		return nil, errors.NewEmptyInputError("Image prompt is empty.")
	}
	decorated := ai.BuildImagePrompt(prompt)

	img, err := failover.Run(ctx, p.orchestrator, "synthesize_image", func(ctx context.Context, cred credentials.Credential) (*gemini.Image, error) {
		return p.newGateway(cred).SynthesizeImage(ctx, p.cfg.ImageModel, decorated, p.cfg.ImageAspectRatio)
	})
	if err != nil {
		return nil, mapDispatchError(err)
	}
	return img, nil
}

// Compose generates a recipe and then an image from its imagePrompt. A failed image never
// fails the recipe: the placeholder URL is used and the error code is recorded.
func (p *Pipeline) Compose(ctx context.Context, req GenerationRequest) (*SynthesizedRecipe, error) {
	out, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	img, err := p.SynthesizeImage(ctx, out.ImagePrompt)
	if err != nil {
		code := string(errors.KindOf(err))
		if code == "" {
			code = string(errors.ErrorTypeInternal)
		}
		slog.Warn("Image synthesis failed, using placeholder",
			"recipe_id", out.ID,
			"error_code", code,
			"error", err.Error(),
			logger.WithTraceContext(ctx))
		out.ImageURL = p.cfg.PlaceholderImageURL
		out.ImageError = code
		return out, nil
	}

	out.ImageURL = img.DataURL()
	return out, nil
}

// mapDispatchError turns orchestrator outcomes into caller-facing kinds. NO_IMAGE_PRODUCED
// and context errors pass through unchanged.
func mapDispatchError(err error) error {
	switch {
	case errors.KindOf(err) == errors.ErrorTypeCredentialsExhausted:
		return errors.NewSynthesisUnavailableError(err)
	case errors.KindOf(err) == errors.ErrorTypeNoImageProduced:
		return err
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewSynthesisUnavailableError(err)
	case stderrors.Is(err, context.Canceled):
		return err
	default:
		return errors.NewSynthesisRejectedInputError(err)
	}
}

// track records duration and outcome of an operation and marks the span on failure.
func (p *Pipeline) track(ctx context.Context, span trace.Span, operation string) func(error) {
	start := time.Now()
	return func(err error) {
		outcome := "success"
		if err != nil {
			outcome = string(errors.KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		attrs := metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		)
		metrics.SynthesisRequestsTotal.Add(ctx, 1, attrs)
		metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
