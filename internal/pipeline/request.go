package pipeline

import (
	"strings"
	"time"

	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/services/ai"
	"github.com/socialchef/chefai/internal/services/recipe"
)

// SkillLevel is the cook's experience. It shares its values with recipe difficulty.
type SkillLevel = recipe.Difficulty

// ParseSkillLevel accepts the three levels case-insensitively. Empty means Intermediate.
func ParseSkillLevel(s string) (SkillLevel, error) {
	if strings.TrimSpace(s) == "" {
		return recipe.Intermediate, nil
	}
	level, ok := recipe.ParseDifficulty(s)
	if !ok {
		return "", errors.NewValidationError(
			"Skill level must be Beginner, Intermediate or Advanced.",
			"INVALID_SKILL_LEVEL",
			"Choose one of Beginner, Intermediate or Advanced.",
		)
	}
	return level, nil
}

// GenerationRequest is what a caller asks the pipeline to cook up.
type GenerationRequest struct {
	Ingredients       []string `json:"ingredients"`
	DietaryConstraint string   `json:"dietaryConstraint"`
	CuisineStyle      string   `json:"cuisineStyle"`
	MealCategory      string   `json:"mealCategory"`
	SkillLevel        string   `json:"skillLevel"`
	SpiceLevel        string   `json:"spiceLevel,omitempty"`
	CookingPreference string   `json:"cookingPreference,omitempty"`
}

func (r GenerationRequest) promptParams(ingredients []string, skill SkillLevel) ai.RecipeParams {
	return ai.RecipeParams{
		Ingredients:       ingredients,
		Diet:              r.DietaryConstraint,
		Cuisine:           r.CuisineStyle,
		MealType:          r.MealCategory,
		Skill:             string(skill),
		SpiceLevel:        r.SpiceLevel,
		CookingPreference: r.CookingPreference,
	}
}

// dietaryNeeds lists the dietary constraint unless it is empty or "None".
func (r GenerationRequest) dietaryNeeds() []string {
	diet := strings.TrimSpace(r.DietaryConstraint)
	if diet == "" || strings.EqualFold(diet, ai.DefaultDiet) {
		return []string{}
	}
	return []string{diet}
}

// SynthesizedRecipe is a validated recipe plus the metadata the pipeline attaches.
type SynthesizedRecipe struct {
	recipe.Recipe
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	DietaryNeeds []string  `json:"dietaryNeeds"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	ImageError   string    `json:"imageError,omitempty"`
}

// Recognition is the result of identifying ingredients in one or more images.
type Recognition struct {
	Raw         string   `json:"raw"`
	Ingredients []string `json:"ingredients"`
	Cached      bool     `json:"cached"`
}
