package pipeline

import (
	"context"
	"fmt"

	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/services/gemini"
)

// Action is one request the pipeline can serve. The set of variants is closed.
type Action interface {
	action()
}

// GenerateText asks for a recipe, optionally with its image.
type GenerateText struct {
	Request   GenerationRequest
	WithImage bool
}

// RecognizeImage asks for the ingredients visible in one or more base64 images.
type RecognizeImage struct {
	Images []string
}

// SynthesizeImage asks for a food photograph of Prompt.
type SynthesizeImage struct {
	Prompt string
}

func (GenerateText) action()    {}
func (RecognizeImage) action()  {}
func (SynthesizeImage) action() {}

// ActionResult carries the one field matching the dispatched action.
type ActionResult struct {
	Recipe      *SynthesizedRecipe `json:"recipe,omitempty"`
	Recognition *Recognition       `json:"recognition,omitempty"`
	Image       *gemini.Image      `json:"image,omitempty"`
}

// Dispatch runs a after confirming the pool is configured.
func (p *Pipeline) Dispatch(ctx context.Context, a Action) (*ActionResult, error) {
	if err := p.CheckConfigured(); err != nil {
		return nil, err
	}

	switch a := a.(type) {
	case GenerateText:
		generate := p.Generate
		if a.WithImage {
			generate = p.Compose
		}
		r, err := generate(ctx, a.Request)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Recipe: r}, nil
	case RecognizeImage:
		r, err := p.RecognizeAll(ctx, a.Images)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Recognition: r}, nil
	case SynthesizeImage:
		img, err := p.SynthesizeImage(ctx, a.Prompt)
		if err != nil {
			return nil, err
		}
		return &ActionResult{Image: img}, nil
	case nil:
		return nil, errors.NewValidationError("No action given.", "INVALID_ACTION", "Use one of generate, analyze, image or health.")
	default:
		// Reachable through types that embed a variant.
		return nil, errors.NewValidationError(fmt.Sprintf("Unsupported action %T.", a), "INVALID_ACTION", "Use one of generate, analyze, image or health.")
	}
}
