package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements Provider for Google's Gemini models.
type GeminiProvider struct {
	APIKey string // falls back to GEMINI_API_KEY
	Model  string

	once   sync.Once
	client *genai.Client
	err    error
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider returns a provider for model using apiKey.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{APIKey: apiKey, Model: model}
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		apiKey := p.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			p.err = fmt.Errorf("GEMINI_API_KEY environment variable not set")
			return
		}
		p.client, p.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if p.err != nil {
			p.err = fmt.Errorf("failed to create GenAI client: %w", p.err)
		}
	})
	return p.client, p.err
}

// GenerateResponse sends a generateContent request through the GenAI SDK.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, opts Options) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	model, config := p.requestConfig(prompt, systemPrompt, opts)
	result, err := client.Models.GenerateContent(ctx, model, buildContents(prompt, opts.Attachments), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return result.Text(), nil
}

// requestConfig resolves the model name and generation config for one call.
func (p *GeminiProvider) requestConfig(prompt, systemPrompt string, opts Options) (string, *genai.GenerateContentConfig) {
	model := opts.Model
	if model == "" {
		model = p.Model
	}
	if model == "" {
		model = defaultGeminiModel
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}

	if opts.JSON || strings.Contains(strings.ToLower(systemPrompt), "json") || strings.Contains(strings.ToLower(prompt), "json") {
		config.ResponseMIMEType = "application/json"
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	return model, config
}

func buildContents(prompt string, attachments []Attachment) []*genai.Content {
	if len(attachments) == 0 {
		return genai.Text(prompt)
	}
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, a := range attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}
