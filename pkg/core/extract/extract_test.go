package extract

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/core/llm"
	"noi_analyzer/pkg/core/normalize"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(url string) *HTTPClient {
	c := NewHTTPClient(url, "test-key", WithLogger(arbor.NewLogger()), WithRateLimit(0), WithRetries(3, time.Millisecond))
	c.sleep = noSleep
	return c
}

var sampleDoc = Document{Name: "current.csv", ContentType: "text/csv", Content: []byte("gpr,100000"), TypeHint: "current_month"}

func TestHTTPClient_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "current_month", r.FormValue("document_type"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "current.csv", header.Filename)
		assert.Equal(t, "gpr,100000", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"gross_potential_rent": 100000, "document_type": "current_month"}`))
	}))
	defer server.Close()

	raw, err := newTestClient(server.URL+"/extract").Extract(context.Background(), sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, raw["gross_potential_rent"])
}

func TestHTTPClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"noi": 46000}`))
		}
	}))
	defer server.Close()

	raw, err := newTestClient(server.URL).Extract(context.Background(), sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, 46000.0, raw["noi"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Extract(context.Background(), sampleDoc)
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorContains(t, err, "all 3 attempts failed")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": "unsupported file type"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Extract(context.Background(), sampleDoc)
	require.ErrorIs(t, err, ErrExtractionFailed)
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "unsupported file type", apiErr.Detail)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPClient_ErrorBodyIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "could not read document"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Extract(context.Background(), sampleDoc)
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorContains(t, err, "could not read document")
}

func TestHTTPClient_Configuration(t *testing.T) {
	ctx := context.Background()

	_, err := NewHTTPClient("", "key").Extract(ctx, sampleDoc)
	assert.ErrorContains(t, err, "URL is not configured")

	_, err = NewHTTPClient("http://localhost", "").Extract(ctx, sampleDoc)
	assert.ErrorContains(t, err, "key is not configured")

	_, err = NewHTTPClient("http://localhost", "key").Extract(ctx, Document{Name: "empty.pdf"})
	assert.ErrorContains(t, err, "no file provided")
}

func TestHTTPClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(server.URL+"/extract").Health(context.Background()))
	assert.Equal(t, "http://host/api/health", healthURL("http://host/api/extract"))
	assert.Equal(t, "http://host/health", healthURL("http://host"))
}

func TestHTTPClient_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := c.Extract(context.Background(), sampleDoc)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorContains(t, err, "context canceled")
}

// --- LLM extractor ---

type MockProvider struct {
	GenerateFunc func(ctx context.Context, prompt, systemPrompt string, opts llm.Options) (string, error)
}

func (m *MockProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, opts llm.Options) (string, error) {
	return m.GenerateFunc(ctx, prompt, systemPrompt, opts)
}

func TestLLMExtractor(t *testing.T) {
	tests := []struct {
		name      string
		doc       Document
		response  string
		genErr    error
		wantErr   bool
		checkOpts func(t *testing.T, prompt string, opts llm.Options)
		want      normalize.RawExtraction
	}{
		{
			name:     "Text document inline",
			doc:      sampleDoc,
			response: "```json\n{\"gross_potential_rent\": 100000}\n```",
			checkOpts: func(t *testing.T, prompt string, opts llm.Options) {
				assert.Contains(t, prompt, "gpr,100000")
				assert.Contains(t, prompt, "current_month")
				assert.True(t, opts.JSON)
				assert.Empty(t, opts.Attachments)
			},
			want: normalize.RawExtraction{"gross_potential_rent": 100000.0},
		},
		{
			name:     "PDF as attachment",
			doc:      Document{Name: "budget.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.7")},
			response: `{"noi": 44300}`,
			checkOpts: func(t *testing.T, prompt string, opts llm.Options) {
				require.Len(t, opts.Attachments, 1)
				assert.Equal(t, "application/pdf", opts.Attachments[0].MIMEType)
				assert.NotContains(t, prompt, "%PDF")
			},
			want: normalize.RawExtraction{"noi": 44300.0},
		},
		{
			name:    "Provider failure",
			doc:     sampleDoc,
			genErr:  errors.New("quota exceeded"),
			wantErr: true,
		},
		{
			name:     "Unusable response",
			doc:      sampleDoc,
			response: "[1, 2, 3]",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &MockProvider{GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, opts llm.Options) (string, error) {
				assert.Contains(t, systemPrompt, "JSON")
				if tt.checkOpts != nil {
					tt.checkOpts(t, prompt, opts)
				}
				return tt.response, tt.genErr
			}}

			raw, err := NewLLMExtractor(provider, arbor.NewLogger()).Extract(context.Background(), tt.doc)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrExtractionFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw)
		})
	}
}
