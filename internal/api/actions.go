package api

import (
	"encoding/json"
	"strings"

	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/pipeline"
)

// ActionRequest is the envelope accepted by POST /api/chef.
type ActionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// ActionPayload holds the fields any action may carry.
type ActionPayload struct {
	Ingredients       []string `json:"ingredients"`
	Diet              string   `json:"diet"`
	Cuisine           string   `json:"cuisine"`
	MealType          string   `json:"mealType"`
	Skill             string   `json:"skill"`
	SpiceLevel        string   `json:"spiceLevel"`
	CookingPreference string   `json:"cookingPreference"`
	WithImage         bool     `json:"withImage"`
	Image             string   `json:"image"`
	Images            []string `json:"images"`
	Prompt            string   `json:"prompt"`
}

const actionHealth = "health"

func invalidAction(action string) error {
	msg := "Unknown action."
	if action != "" {
		msg = "Unknown action \"" + action + "\"."
	}
	return errors.NewValidationError(msg, "INVALID_ACTION", "Use one of generate, analyze, image or health.")
}

// decodeAction turns the envelope into a pipeline action. The health action has no
// pipeline variant and is reported through isHealth.
func decodeAction(req ActionRequest) (a pipeline.Action, isHealth bool, err error) {
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action == actionHealth {
		return nil, true, nil
	}

	var p ActionPayload
	if len(req.Payload) > 0 && string(req.Payload) != "null" {
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, false, errors.NewValidationError("Invalid action payload", "INVALID_BODY", "Send the payload as a JSON object.")
		}
	}

	switch action {
	case "generate":
		return pipeline.GenerateText{
			Request: pipeline.GenerationRequest{
				Ingredients:       p.Ingredients,
				DietaryConstraint: p.Diet,
				CuisineStyle:      p.Cuisine,
				MealCategory:      p.MealType,
				SkillLevel:        p.Skill,
				SpiceLevel:        p.SpiceLevel,
				CookingPreference: p.CookingPreference,
			},
			WithImage: p.WithImage,
		}, false, nil
	case "analyze":
		return pipeline.RecognizeImage{Images: collectImages(p.Image, p.Images)}, false, nil
	case "image":
		return pipeline.SynthesizeImage{Prompt: p.Prompt}, false, nil
	default:
		return nil, false, invalidAction(req.Action)
	}
}

// collectImages puts a single image ahead of any list, skipping blanks.
func collectImages(image string, images []string) []string {
	out := make([]string, 0, len(images)+1)
	if strings.TrimSpace(image) != "" {
		out = append(out, image)
	}
	for _, img := range images {
		if strings.TrimSpace(img) != "" {
			out = append(out, img)
		}
	}
	return out
}
