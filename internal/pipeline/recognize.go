package pipeline

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/socialchef/chefai/internal/credentials"
	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/failover"
	"github.com/socialchef/chefai/internal/logger"
	"github.com/socialchef/chefai/internal/services/ai"
	"github.com/socialchef/chefai/internal/telemetry"
	"github.com/socialchef/chefai/internal/utils"
	"github.com/socialchef/chefai/internal/validation"
	"go.opentelemetry.io/otel/attribute"
)

// maxRecognitionParallelism bounds concurrent recognition calls in RecognizeAll.
const maxRecognitionParallelism = 4

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func invalidImage(msg string) error {
	return errors.NewValidationError(msg, "INVALID_IMAGE", "Send a JPEG, PNG or WebP photo encoded as base64.")
}

// DecodeImage accepts raw base64 or a data: URL and returns the bytes and MIME type.
func DecodeImage(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	declared := ""
	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", invalidImage("Image data URL must be base64 encoded.")
		}
		declared = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = data
	}
	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return nil, "", invalidImage("Image payload is empty.")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", invalidImage("Image payload is not valid base64.")
		}
	}
	if len(data) == 0 {
		return nil, "", invalidImage("Image payload is empty.")
	}

	mime := declared
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

// ParseIngredientList splits free-text model output on commas and newlines, strips list
// markers, lowercases, and drops duplicates keeping the first.
func ParseIngredientList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	for i, f := range fields {
		f = strings.TrimSpace(f)
		f = strings.TrimLeft(f, "-*•·0123456789.) ")
		fields[i] = strings.Trim(f, " .\"'`")
	}
	return validation.NormalizeIngredients(fields)
}

// RecognizeIngredients identifies the food items in one base64 image. A picture without
// food is an empty list, not an error.
func (p *Pipeline) RecognizeIngredients(ctx context.Context, image string) (_ *Recognition, err error) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.recognize")
	defer span.End()
	done := p.track(ctx, span, "recognize_ingredients")
	defer func() { done(err) }()

	data, mime, err := DecodeImage(image)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("image.mime_type", mime), attribute.Int("image.bytes", len(data)))

	if p.cache != nil {
		if items, ok := p.cache.Get(ctx, data); ok {
			return &Recognition{Raw: strings.Join(items, ", "), Ingredients: items, Cached: true}, nil
		}
	}

	raw, err := failover.Run(ctx, p.orchestrator, "recognize_ingredients", func(ctx context.Context, cred credentials.Credential) (string, error) {
		return p.newGateway(cred).RecognizeIngredients(ctx, p.cfg.VisionModel, ai.RecognitionPrompt, data, mime)
	})
	if err != nil {
		return nil, mapDispatchError(err)
	}

	items := ParseIngredientList(raw)
	if p.cache != nil {
		p.cache.Set(ctx, data, items)
	}
	return &Recognition{Raw: raw, Ingredients: items}, nil
}

// RecognizeAll recognizes several images concurrently and merges the lists in input order.
// Failed images are skipped; only when every image fails is the first error returned.
func (p *Pipeline) RecognizeAll(ctx context.Context, images []string) (*Recognition, error) {
	if len(images) == 0 {
		return nil, invalidImage("No images provided.")
	}
	if len(images) == 1 {
		return p.RecognizeIngredients(ctx, images[0])
	}

	results, errs := utils.Map(ctx, images, maxRecognitionParallelism, p.RecognizeIngredients)

	var raws, merged []string
	cached := true
	succeeded := 0
	for i, res := range results {
		if errs[i] != nil {
			slog.Warn("Ingredient recognition failed for image",
				"index", i,
				"error", errs[i].Error(),
				logger.WithTraceContext(ctx))
			continue
		}
		succeeded++
		cached = cached && res.Cached
		if res.Raw != "" {
			raws = append(raws, res.Raw)
		}
		merged = append(merged, res.Ingredients...)
	}
	if succeeded == 0 {
		return nil, utils.FirstError(errs)
	}

	return &Recognition{
		Raw:         strings.Join(raws, ", "),
		Ingredients: validation.NormalizeIngredients(merged),
		Cached:      cached,
	}, nil
}
