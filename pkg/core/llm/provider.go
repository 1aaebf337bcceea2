// Package llm wraps the language-model backends used for field extraction.
package llm

import "context"

// Attachment is a binary document passed to the model alongside the prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Options tunes one generation request. Zero values select provider defaults.
type Options struct {
	Model       string
	JSON        bool // request an application/json response
	Temperature float32
	Attachments []Attachment
}

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, opts Options) (string, error)
}
