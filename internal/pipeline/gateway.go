package pipeline

import (
	"context"
	"net/http"

	"github.com/socialchef/chefai/internal/credentials"
	"github.com/socialchef/chefai/internal/services/gemini"
	"github.com/socialchef/chefai/internal/services/recipe"
)

// Gateway issues the three model request kinds for a single credential.
type Gateway interface {
	GenerateRecipeText(ctx context.Context, model, prompt string, schema *recipe.Schema, thinkingBudget int) (string, error)
	RecognizeIngredients(ctx context.Context, model, prompt string, image []byte, mimeType string) (string, error)
	SynthesizeImage(ctx context.Context, model, prompt, aspectRatio string) (*gemini.Image, error)
}

// GatewayFactory builds a gateway bound to cred. It is called inside each failover attempt,
// so no client outlives the attempt it was made for.
type GatewayFactory func(cred credentials.Credential) Gateway

// GeminiGateways returns a factory producing Gemini REST clients that share httpClient.
func GeminiGateways(baseURL string, httpClient *http.Client) GatewayFactory {
	return func(cred credentials.Credential) Gateway {
		return gemini.NewClient(baseURL, cred.Secret(), httpClient)
	}
}
