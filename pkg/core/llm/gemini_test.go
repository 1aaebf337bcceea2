package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestConfig(t *testing.T) {
	p := NewGeminiProvider("key", "")

	model, cfg := p.requestConfig("extract fields", "Return JSON only.", Options{})
	assert.Equal(t, defaultGeminiModel, model)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "Return JSON only.", cfg.SystemInstruction.Parts[0].Text)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.1, *cfg.Temperature, 1e-6)

	model, cfg = p.requestConfig("summarize", "", Options{Model: "gemini-pro", Temperature: 0.4})
	assert.Equal(t, "gemini-pro", model)
	assert.Empty(t, cfg.ResponseMIMEType)
	assert.Nil(t, cfg.SystemInstruction)
	assert.InDelta(t, 0.4, *cfg.Temperature, 1e-6)
}

func TestBuildContents(t *testing.T) {
	plain := buildContents("hello", nil)
	require.Len(t, plain, 1)
	assert.Equal(t, "hello", plain[0].Parts[0].Text)

	withDoc := buildContents("hello", []Attachment{{MIMEType: "application/pdf", Data: []byte("%PDF")}})
	require.Len(t, withDoc, 1)
	require.Len(t, withDoc[0].Parts, 2)
	require.NotNil(t, withDoc[0].Parts[1].InlineData)
	assert.Equal(t, "application/pdf", withDoc[0].Parts[1].InlineData.MIMEType)
}

func TestGenerateResponse_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := (&GeminiProvider{}).GenerateResponse(context.Background(), "p", "", Options{})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
