// Package gemini issues generateContent calls to the Gemini REST API for one credential.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/httpclient"
	"github.com/socialchef/chefai/internal/metrics"
	"github.com/socialchef/chefai/internal/services/recipe"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Client is bound to a single API key. Build one per failover attempt.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for apiKey. A nil httpClient gets an instrumented default.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = httpclient.New(120 * time.Second)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type generationConfig struct {
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseSchema     *recipe.Schema  `json:"responseSchema,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
	ImageConfig        *imageConfig    `json:"imageConfig,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type generateResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateRecipeText requests a single structured completion constrained by schema and
// returns the raw, unvalidated text.
func (c *Client) GenerateRecipeText(ctx context.Context, model, prompt string, schema *recipe.Schema, thinkingBudget int) (string, error) {
	cfg := &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   schema,
	}
	if thinkingBudget > 0 {
		cfg.ThinkingConfig = &thinkingConfig{ThinkingBudget: thinkingBudget}
	}

	resp, err := c.generate(ctx, "generate_recipe", model, generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return "", err
	}
	return requireText(resp)
}

// RecognizeIngredients asks the model to list the food items visible in one image. An
// image with no food yields an empty string, not an error.
func (c *Client) RecognizeIngredients(ctx context.Context, model, prompt string, image []byte, mimeType string) (string, error) {
	resp, err := c.generate(ctx, "recognize_ingredients", model, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{
			{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
			{Text: prompt},
		}}},
	})
	if err != nil {
		return "", err
	}
	if err := blocked(resp); err != nil {
		return "", err
	}
	return collectText(resp), nil
}

// Image is one generated picture, base64 encoded.
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// DataURL renders the image as a data: URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Data
}

// SynthesizeImage requests one image for prompt. The first candidate part carrying inline
// image data wins; a response with none is NO_IMAGE_PRODUCED.
func (c *Client) SynthesizeImage(ctx context.Context, model, prompt, aspectRatio string) (*Image, error) {
	cfg := &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}
	if aspectRatio != "" {
		cfg.ImageConfig = &imageConfig{AspectRatio: aspectRatio}
	}

	resp, err := c.generate(ctx, "synthesize_image", model, generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := blocked(resp); err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				mime := p.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				return &Image{MIMEType: mime, Data: p.InlineData.Data}, nil
			}
		}
	}
	return nil, errors.NewNoImageProducedError()
}

func (c *Client) generate(ctx context.Context, operation, model string, req generateRequest) (*generateResponse, error) {
	startTime := time.Now()
	status := 0
	defer func() {
		attrs := []attribute.KeyValue{
			attribute.String("upstream", "gemini"),
			attribute.String("operation", operation),
			attribute.String("status", strconv.Itoa(status)),
		}
		metrics.ExternalAPIDuration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(attrs...))
		metrics.ExternalAPICallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(httpclient.WithUpstream(ctx, "Gemini", operation), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		return nil, newStatusError(resp.StatusCode, &eb)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, newEmptyResponseError("undecodable body")
	}
	return &out, nil
}

func blocked(resp *generateResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return newSafetyError(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 {
		switch reason := resp.Candidates[0].FinishReason; reason {
		case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII", "IMAGE_SAFETY":
			return newSafetyError(reason)
		}
	}
	return nil
}

// collectText joins the non-thought text parts of the first candidate.
func collectText(resp *generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func requireText(resp *generateResponse) (string, error) {
	if err := blocked(resp); err != nil {
		return "", err
	}
	text := collectText(resp)
	if strings.TrimSpace(text) == "" {
		reason := ""
		if len(resp.Candidates) > 0 {
			reason = resp.Candidates[0].FinishReason
		}
		return "", newEmptyResponseError(reason)
	}
	return text, nil
}
