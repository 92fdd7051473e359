// Package validation runs cheap checks on a generation request before any model call.
package validation

import (
	"fmt"
	"strings"
)

// IngredientCheckResult is the outcome of CheckIngredients.
type IngredientCheckResult struct {
	IsValid bool     `json:"is_valid"`
	Reason  string   `json:"reason"`
	Missing []string `json:"missing"`
}

// MinIngredientsWithoutCore is the list length at which no core ingredient is needed.
const MinIngredientsWithoutCore = 3

// coreIngredients are the proteins, vegetables and grains that can anchor a dish on their own.
var coreIngredients = []string{
	// Proteins
	"chicken", "eggs", "egg", "fish", "shrimp", "paneer", "tofu", "chana", "dal", "kidney beans",
	"lentils", "chickpeas", "beef", "lamb", "mutton", "pork", "prawns", "turkey",
	// Vegetables
	"onion", "tomato", "potato", "carrot", "spinach", "bell pepper", "mushroom", "cauliflower",
	"okra", "brinjal", "eggplant", "broccoli", "cabbage", "zucchini", "peas",
	// Grains
	"rice", "atta", "maida", "basmati", "poha", "bread", "pasta", "quinoa", "noodles", "oats",
}

var coreSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(coreIngredients))
	for _, c := range coreIngredients {
		m[c] = struct{}{}
	}
	return m
}()

// NormalizeIngredients trims and lowercases names, drops blanks and keeps the first
// occurrence of duplicates.
func NormalizeIngredients(ingredients []string) []string {
	out := make([]string, 0, len(ingredients))
	seen := make(map[string]struct{}, len(ingredients))
	for _, ing := range ingredients {
		ing = strings.ToLower(strings.Join(strings.Fields(ing), " "))
		if ing == "" {
			continue
		}
		if _, dup := seen[ing]; dup {
			continue
		}
		seen[ing] = struct{}{}
		out = append(out, ing)
	}
	return out
}

// IsCore reports whether name is, or contains as a whole word or phrase, a core ingredient,
// so "chicken breast" and "red onion" both count.
func IsCore(name string) bool {
	name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	if _, ok := coreSet[name]; ok {
		return true
	}
	padded := " " + name + " "
	for _, c := range coreIngredients {
		if strings.Contains(padded, " "+c+" ") {
			return true
		}
	}
	return false
}

// CheckIngredients rejects short lists that have nothing to build a dish around. Lists of
// MinIngredientsWithoutCore or more always pass.
func CheckIngredients(ingredients []string) IngredientCheckResult {
	if len(ingredients) == 0 {
		return IngredientCheckResult{
			IsValid: false,
			Reason:  "No ingredients provided",
			Missing: []string{"ingredients"},
		}
	}

	for _, ing := range ingredients {
		if IsCore(ing) {
			return IngredientCheckResult{IsValid: true, Reason: fmt.Sprintf("Core ingredient found: %s", ing), Missing: []string{}}
		}
	}

	if len(ingredients) >= MinIngredientsWithoutCore {
		return IngredientCheckResult{IsValid: true, Reason: "Enough ingredients to build a dish", Missing: []string{}}
	}

	return IngredientCheckResult{
		IsValid: false,
		Reason:  "Missing main ingredient (Protein/Veg/Grain).",
		Missing: []string{"main ingredient"},
	}
}
