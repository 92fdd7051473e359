// Package recipe defines the validated recipe contract, the response schema handed to the
// model, and the validator that turns untrusted model text into a Recipe.
package recipe

import "strings"

// Difficulty is the skill level a recipe targets.
type Difficulty string

const (
	Beginner     Difficulty = "Beginner"
	Intermediate Difficulty = "Intermediate"
	Advanced     Difficulty = "Advanced"
)

// Difficulties lists the accepted levels in ascending order.
var Difficulties = []Difficulty{Beginner, Intermediate, Advanced}

// ParseDifficulty matches s case-insensitively against the known levels.
func ParseDifficulty(s string) (Difficulty, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Difficulties {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  string  `json:"protein"`
	Carbs    string  `json:"carbs"`
	Fat      string  `json:"fat"`
}

// Recipe is a model response that passed validation. Every field is populated.
type Recipe struct {
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Cuisine            string       `json:"cuisine"`
	MealType           string       `json:"mealType"`
	PrepTime           string       `json:"prepTime"`
	CookTime           string       `json:"cookTime"`
	Servings           int          `json:"servings"`
	Difficulty         Difficulty   `json:"difficulty"`
	Ingredients        []Ingredient `json:"ingredients"`
	Instructions       []string     `json:"instructions"`
	Tips               []string     `json:"tips"`
	Substitutions      []string     `json:"substitutions"`
	ServingSuggestions string       `json:"servingSuggestions"`
	Nutrition          Nutrition    `json:"nutrition"`
	ImagePrompt        string       `json:"imagePrompt"`
}

// Defaults applied to absent or empty fields.
const (
	DefaultDescription        = "A delicious AI-curated culinary masterpiece."
	DefaultCuisine            = "Global Fusion"
	DefaultMealType           = "Main Course"
	DefaultPrepTime           = "15 mins"
	DefaultCookTime           = "30 mins"
	DefaultServings           = 2
	DefaultDifficulty         = Intermediate
	DefaultAmount             = "to taste"
	DefaultUnit               = "units"
	DefaultServingSuggestions = "Serve hot and enjoy!"
	DefaultMacro              = "0g"

	MinImagePromptLength = 10
)
