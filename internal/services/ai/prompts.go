package ai

import (
	"fmt"
	"strings"
)

// RecipeParams are the user choices interpolated into the recipe prompt. Empty fields fall
// back to the defaults below.
type RecipeParams struct {
	Ingredients       []string
	Diet              string
	Cuisine           string
	MealType          string
	Skill             string
	SpiceLevel        string
	CookingPreference string
}

const (
	DefaultDiet              = "None"
	DefaultCuisine           = "International"
	DefaultMealType          = "Dinner"
	DefaultSkill             = "Intermediate"
	DefaultSpiceLevel        = "Medium"
	DefaultCookingPreference = "Home-style"
)

const roleSection = `<ROLE>
You are ChefAI, an intelligent recipe companion. You design practical, home-friendly recipes from the ingredients a cook already has and return them as a single structured JSON object.
</ROLE>`

const constraintsTemplate = `<CONSTRAINTS>
Available Ingredients: %s
Meal Type: %s
Dietary Preferences: %s
Cuisine/Country: %s
Spice Level: %s
Cooking Style: %s
Skill Level: %s
</CONSTRAINTS>`

const guidelinesSection = `<GUIDELINES>
- Use ONLY the available ingredients plus basic kitchen staples (water, oil, salt, pepper, common dry spices).
- Respect the dietary preference strictly; never include an ingredient it excludes.
- Match the number and complexity of techniques to the skill level:
  * Beginner: one pan where possible, no advanced techniques, explain every action
  * Intermediate: standard home techniques, moderate multitasking
  * Advanced: layered techniques are welcome, assume a confident cook
- Provide clear, ordered, actionable instructions with visual cues and timings ("until golden", "about 5 minutes").
- Focus on home-friendly practical cooking. No long explanations or fluff.
- Include specific serving suggestions and optional substitutions.
- Estimate nutrition per serving.
</GUIDELINES>`

const outputFormatSection = `<OUTPUT_FORMAT>
Return ONLY a JSON object, with no markdown fences and no commentary, matching this shape:
{
  "title": string (required, non-empty),
  "description": string,
  "cuisine": string,
  "mealType": string,
  "prepTime": string (e.g. "15 mins"),
  "cookTime": string (e.g. "30 mins"),
  "servings": positive integer,
  "difficulty": "Beginner" | "Intermediate" | "Advanced",
  "ingredients": [ { "name": string, "amount": string, "unit": string } ] (at least one),
  "instructions": [ string ] (at least one, each a complete step),
  "tips": [ string ],
  "substitutions": [ string ],
  "servingSuggestions": string,
  "nutrition": { "calories": number, "protein": string, "carbs": string, "fat": string },
  "imagePrompt": string (one vivid sentence, at least 10 characters, describing the plated dish for a food photographer)
}
</OUTPUT_FORMAT>`

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// BuildRecipePrompt builds the recipe synthesis prompt. Ingredients are listed in the order
// given; an empty list renders as "Any".
func BuildRecipePrompt(p RecipeParams) string {
	ingredients := "Any"
	if len(p.Ingredients) > 0 {
		ingredients = strings.Join(p.Ingredients, ", ")
	}

	var sb strings.Builder
	sb.WriteString(roleSection)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf(constraintsTemplate,
		ingredients,
		orDefault(p.MealType, DefaultMealType),
		orDefault(p.Diet, DefaultDiet),
		orDefault(p.Cuisine, DefaultCuisine),
		orDefault(p.SpiceLevel, DefaultSpiceLevel),
		orDefault(p.CookingPreference, DefaultCookingPreference),
		orDefault(p.Skill, DefaultSkill),
	))
	sb.WriteString("\n\n")
	sb.WriteString(guidelinesSection)
	sb.WriteString("\n\n")
	sb.WriteString(outputFormatSection)
	return sb.String()
}

// RecognitionPrompt asks for a comma-delimited list of visible food items.
const RecognitionPrompt = "Identify food items in this image. Return a comma-separated list of ingredient names only, lowercase, without quantities or commentary. If there is no food, return an empty response."

// BuildImagePrompt decorates a dish description for food photography.
func BuildImagePrompt(prompt string) string {
	return fmt.Sprintf("A professional food photography shot of %s. Gourmet, minimalist, soft light, 4k.", strings.TrimRight(strings.TrimSpace(prompt), "."))
}
