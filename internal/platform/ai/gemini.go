package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiURL is the Gemini API base URL. The SDK appends the API
// version and the model path.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com/"

const defaultAPIVersion = "v1beta"

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
}

// DefaultGenerationConfig keeps answers close to deterministic.
func DefaultGenerationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		TopK:            genai.Ptr[float32](40),
		TopP:            genai.Ptr[float32](0.95),
		MaxOutputTokens: 2048,
	}
}

// GeminiClient is a Provider backed by the Gemini API.
type GeminiClient struct {
	apiKey    string
	model     string
	genConfig *genai.GenerateContentConfig
	client    *genai.Client
}

// NewGeminiClient builds the SDK client for cfg. Without an API key the
// client is returned unconfigured and Generate answers ErrNotConfigured.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultGeminiURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	g := &GeminiClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		genConfig: DefaultGenerationConfig(),
	}
	if cfg.APIKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.URL,
			APIVersion: defaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %s", redactKey(err.Error(), cfg.APIKey))
	}
	g.client = client
	return g, nil
}

func (g *GeminiClient) Model() string { return g.model }

// Generate sends prompt as a single user turn and returns the text of the
// first candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.genConfig)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: gemini status %d: %s", ErrProviderUnavailable,
				apiErr.Code, truncate(redactKey(apiErr.Message, g.apiKey), 200))
		}
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, redactKey(err.Error(), g.apiKey))
	}

	text := candidateText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "REDACTED")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
