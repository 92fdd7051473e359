package recipe

// Schema is a response schema in the OpenAPI subset accepted by generateContent's
// responseSchema field.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

func str() *Schema { return &Schema{Type: "STRING"} }
func num() *Schema { return &Schema{Type: "NUMBER"} }
func arrayOf(s *Schema) *Schema { return &Schema{Type: "ARRAY", Items: s} }

// ResponseSchema describes the Recipe shape. It biases generation only; the output is still
// validated by Validate.
func ResponseSchema() *Schema {
	difficulties := make([]string, len(Difficulties))
	for i, d := range Difficulties {
		difficulties[i] = string(d)
	}

	return &Schema{
		Type: "OBJECT",
		Properties: map[string]*Schema{
			"title":       str(),
			"description": str(),
			"cuisine":     str(),
			"mealType":    str(),
			"prepTime":    str(),
			"cookTime":    str(),
			"servings":    {Type: "INTEGER"},
			"difficulty":  {Type: "STRING", Enum: difficulties},
			"ingredients": arrayOf(&Schema{
				Type: "OBJECT",
				Properties: map[string]*Schema{
					"name":   str(),
					"amount": str(),
					"unit":   str(),
				},
				Required: []string{"name", "amount", "unit"},
			}),
			"instructions":       arrayOf(str()),
			"tips":               arrayOf(str()),
			"substitutions":      arrayOf(str()),
			"servingSuggestions": str(),
			"nutrition": {
				Type: "OBJECT",
				Properties: map[string]*Schema{
					"calories": num(),
					"protein":  str(),
					"carbs":    str(),
					"fat":      str(),
				},
				Required: []string{"calories", "protein", "carbs", "fat"},
			},
			"imagePrompt": {
				Type:        "STRING",
				Description: "A vivid one-sentence description of the plated dish for a food photographer.",
			},
		},
		Required: []string{
			"title", "description", "mealType", "prepTime", "cookTime",
			"ingredients", "instructions", "nutrition", "imagePrompt",
			"servings", "difficulty",
		},
	}
}
