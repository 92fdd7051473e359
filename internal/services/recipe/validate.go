package recipe

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/socialchef/chefai/internal/errors"
)

// Validate decodes raw model text and checks it against the Recipe contract, filling
// defaults for absent or empty optional fields. Every violation found is reported in one
// SCHEMA_VIOLATION error; text that does not decode is MALFORMED_JSON. Validate is pure and
// returns the input unchanged when it is already a complete, valid recipe.
func Validate(raw string) (*Recipe, error) {
	text := stripCodeFence(strings.TrimSpace(raw))

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewMalformedJSONError(len(raw), err)
	}
	// More() is false before a stray '}' or ']', so read one more token and insist on EOF.
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewMalformedJSONError(len(raw), fmt.Errorf("trailing data after JSON value"))
	}

	return ValidateValue(doc)
}

// ValidateValue checks an already decoded value. Numbers may be json.Number or float64.
func ValidateValue(doc any) (*Recipe, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.NewSchemaViolationError([]errors.FieldViolation{
			{Field: "(root)", Reason: "model response is not a JSON object"},
		})
	}

	c := &checker{}
	r := &Recipe{
		Title:              c.requiredString(obj, "title", "title", "Recipe title is required"),
		Description:        c.optionalString(obj, "description", "description", DefaultDescription),
		Cuisine:            c.optionalString(obj, "cuisine", "cuisine", DefaultCuisine),
		MealType:           c.optionalString(obj, "mealType", "mealType", DefaultMealType),
		PrepTime:           c.optionalString(obj, "prepTime", "prepTime", DefaultPrepTime),
		CookTime:           c.optionalString(obj, "cookTime", "cookTime", DefaultCookTime),
		Servings:           c.servings(obj),
		Difficulty:         c.difficulty(obj),
		Ingredients:        c.ingredients(obj),
		Instructions:       c.instructions(obj),
		Tips:               c.stringList(obj, "tips"),
		Substitutions:      c.stringList(obj, "substitutions"),
		ServingSuggestions: c.optionalString(obj, "servingSuggestions", "servingSuggestions", DefaultServingSuggestions),
		Nutrition:          c.nutrition(obj),
		ImagePrompt:        c.imagePrompt(obj),
	}

	if len(c.violations) > 0 {
		return nil, errors.NewSchemaViolationError(c.violations)
	}
	return r, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence some models add despite a JSON
// response mime type.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

type checker struct {
	violations []errors.FieldViolation
}

func (c *checker) fail(field, reason string) {
	c.violations = append(c.violations, errors.FieldViolation{Field: field, Reason: reason})
}

// lookup returns the value for key, treating JSON null as absent.
func lookup(obj map[string]any, key string) (any, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func (c *checker) requiredString(obj map[string]any, key, path, missing string) string {
	v, ok := lookup(obj, key)
	if !ok {
		c.fail(path, missing)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.fail(path, "must be a string")
		return ""
	}
	if isBlank(s) {
		c.fail(path, missing)
		return ""
	}
	return s
}

func (c *checker) optionalString(obj map[string]any, key, path, def string) string {
	v, ok := lookup(obj, key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		c.fail(path, "must be a string")
		return ""
	}
	if isBlank(s) {
		return def
	}
	return s
}

// optionalText accepts strings and numbers, rendering numbers with suffix appended.
func (c *checker) optionalText(obj map[string]any, key, path, def, suffix string) string {
	v, ok := lookup(obj, key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		if isBlank(t) {
			return def
		}
		return t
	case json.Number, float64:
		f, _ := toFloat(t)
		return strconv.FormatFloat(f, 'f', -1, 64) + suffix
	default:
		c.fail(path, "must be a string")
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	}
	return 0, false
}

func (c *checker) servings(obj map[string]any) int {
	v, ok := lookup(obj, "servings")
	if !ok {
		return DefaultServings
	}
	var f float64
	switch t := v.(type) {
	case string:
		if isBlank(t) {
			return DefaultServings
		}
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			c.fail("servings", "must be a positive integer")
			return 0
		}
		f = float64(n)
	default:
		n, isNum := toFloat(t)
		if !isNum {
			c.fail("servings", "must be a positive integer")
			return 0
		}
		f = n
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		c.fail("servings", "must be a positive integer")
		return 0
	}
	return int(f)
}

func (c *checker) difficulty(obj map[string]any) Difficulty {
	v, ok := lookup(obj, "difficulty")
	if !ok {
		return DefaultDifficulty
	}
	s, ok := v.(string)
	if !ok {
		c.fail("difficulty", "must be one of Beginner, Intermediate, Advanced")
		return ""
	}
	if isBlank(s) {
		return DefaultDifficulty
	}
	d, ok := ParseDifficulty(s)
	if !ok {
		c.fail("difficulty", fmt.Sprintf("must be one of Beginner, Intermediate, Advanced (got %q)", s))
		return ""
	}
	return d
}

func (c *checker) ingredients(obj map[string]any) []Ingredient {
	v, ok := lookup(obj, "ingredients")
	if !ok {
		c.fail("ingredients", "At least one ingredient is required")
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		c.fail("ingredients", "must be an array")
		return nil
	}
	if len(items) == 0 {
		c.fail("ingredients", "At least one ingredient is required")
		return nil
	}

	out := make([]Ingredient, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("ingredients[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			c.fail(path, "must be an object")
			continue
		}
		out = append(out, Ingredient{
			Name:   c.requiredString(m, "name", path+".name", "Ingredient name cannot be empty"),
			Amount: c.optionalText(m, "amount", path+".amount", DefaultAmount, ""),
			Unit:   c.optionalString(m, "unit", path+".unit", DefaultUnit),
		})
	}
	return out
}

func (c *checker) instructions(obj map[string]any) []string {
	v, ok := lookup(obj, "instructions")
	if !ok {
		c.fail("instructions", "Instructions are required")
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		c.fail("instructions", "must be an array")
		return nil
	}
	if len(items) == 0 {
		c.fail("instructions", "Instructions are required")
		return nil
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || isBlank(s) {
			c.fail(fmt.Sprintf("instructions[%d]", i), "must be a non-empty string")
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *checker) stringList(obj map[string]any, key string) []string {
	v, ok := lookup(obj, key)
	if !ok {
		return []string{}
	}
	items, ok := v.([]any)
	if !ok {
		c.fail(key, "must be an array of strings")
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			c.fail(fmt.Sprintf("%s[%d]", key, i), "must be a string")
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *checker) nutrition(obj map[string]any) Nutrition {
	def := Nutrition{Protein: DefaultMacro, Carbs: DefaultMacro, Fat: DefaultMacro}
	v, ok := lookup(obj, "nutrition")
	if !ok {
		return def
	}
	m, ok := v.(map[string]any)
	if !ok {
		c.fail("nutrition", "must be an object")
		return def
	}

	n := Nutrition{
		Protein: c.optionalText(m, "protein", "nutrition.protein", DefaultMacro, "g"),
		Carbs:   c.optionalText(m, "carbs", "nutrition.carbs", DefaultMacro, "g"),
		Fat:     c.optionalText(m, "fat", "nutrition.fat", DefaultMacro, "g"),
	}
	if cal, ok := lookup(m, "calories"); ok {
		f, isNum := toFloat(cal)
		switch {
		case !isNum:
			c.fail("nutrition.calories", "must be a number")
		case f < 0:
			c.fail("nutrition.calories", "must be greater than or equal to 0")
		default:
			n.Calories = f
		}
	}
	return n
}

func (c *checker) imagePrompt(obj map[string]any) string {
	const tooShort = "Image prompt is too short for quality generation"
	v, ok := lookup(obj, "imagePrompt")
	if !ok {
		c.fail("imagePrompt", "Image prompt is required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.fail("imagePrompt", "must be a string")
		return ""
	}
	if utf8.RuneCountInString(strings.TrimSpace(s)) < MinImagePromptLength {
		c.fail("imagePrompt", fmt.Sprintf("%s (minimum %d characters)", tooShort, MinImagePromptLength))
		return ""
	}
	return s
}
