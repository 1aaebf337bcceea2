package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/core/llm"
	"noi_analyzer/pkg/core/logger"
	"noi_analyzer/pkg/core/normalize"
	"noi_analyzer/pkg/core/prompt"
)

// maxPromptBytes bounds the document text embedded in one prompt.
const maxPromptBytes = 200_000

// LLMExtractor asks a language model for the raw fields of a document.
type LLMExtractor struct {
	provider llm.Provider
	prompts  *prompt.Registry
	logger   arbor.ILogger
}

// NewLLMExtractor returns an extractor backed by provider using the global
// prompt library.
func NewLLMExtractor(provider llm.Provider, l arbor.ILogger) *LLMExtractor {
	return &LLMExtractor{provider: provider, prompts: prompt.Get(), logger: logger.Or(l)}
}

var _ Extractor = (*LLMExtractor)(nil)

// Extract sends text documents inline and binary documents as attachments.
func (e *LLMExtractor) Extract(ctx context.Context, doc Document) (normalize.RawExtraction, error) {
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: no file provided for extraction", ErrExtractionFailed)
	}

	vars := map[string]any{"Name": doc.Name, "TypeHint": doc.TypeHint}
	opts := llm.Options{JSON: true}
	if isText(doc.ContentType) {
		text := doc.Content
		if len(text) > maxPromptBytes {
			text = text[:maxPromptBytes]
			e.logger.Warn().Str("file", doc.Name).Int("bytes", len(doc.Content)).Msg("[EXTRACT] Document truncated for prompt")
		}
		vars["Content"] = string(text)
	} else {
		opts.Attachments = []llm.Attachment{{MIMEType: doc.ContentType, Data: doc.Content}}
	}

	system, user, err := e.prompts.Render(prompt.NOIExtraction, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	resp, err := e.provider.GenerateResponse(ctx, user, system, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	raw, err := normalize.ParseRawExtraction([]byte(resp))
	if err != nil {
		e.logger.Error().Err(err).Str("file", doc.Name).Msg("[EXTRACT] Model returned unusable JSON")
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return raw, nil
}

func isText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json") || strings.Contains(ct, "csv")
}
