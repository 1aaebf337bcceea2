package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"noi_analyzer/pkg/core/logger"
	"noi_analyzer/pkg/core/normalize"
)

const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = time.Second
	DefaultRatePerSecond  = 2.0
)

// APIError is a non-retryable response from the extraction service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error (%d): %s", e.StatusCode, e.Detail)
}

// HTTPClient calls the extraction service with a multipart upload.
type HTTPClient struct {
	url         string
	apiKey      string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.httpClient.Timeout = d
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l arbor.ILogger) ClientOption {
	return func(h *HTTPClient) { h.logger = l }
}

// WithRetries sets the total number of attempts and the first backoff delay.
func WithRetries(attempts int, baseDelay time.Duration) ClientOption {
	return func(h *HTTPClient) {
		if attempts > 0 {
			h.maxAttempts = attempts
		}
		if baseDelay >= 0 {
			h.baseDelay = baseDelay
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(h *HTTPClient) {
		if perSecond <= 0 {
			h.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewHTTPClient creates a client for the service at url.
func NewHTTPClient(url, apiKey string, opts ...ClientOption) *HTTPClient {
	h := &HTTPClient{
		url:         strings.TrimRight(url, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRatePerSecond), int(DefaultRatePerSecond)),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultRetryBaseDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logger.Or(h.logger)
	return h
}

var _ Extractor = (*HTTPClient)(nil)

// Extract uploads doc and returns the decoded response. 429, 5xx, timeouts,
// connection failures and undecodable bodies are retried with exponential
// backoff; other 4xx responses fail immediately.
func (h *HTTPClient) Extract(ctx context.Context, doc Document) (normalize.RawExtraction, error) {
	if h.url == "" {
		return nil, fmt.Errorf("%w: extraction API URL is not configured", ErrExtractionFailed)
	}
	if h.apiKey == "" {
		return nil, fmt.Errorf("%w: extraction API key is not configured", ErrExtractionFailed)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: no file provided for extraction", ErrExtractionFailed)
	}

	body, contentType, err := buildMultipart(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt < h.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := h.baseDelay * time.Duration(1<<(attempt-1))
			h.logger.Warn().
				Str("file", doc.Name).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Err(lastErr).
				Msg("[EXTRACT] Retrying extraction request")
			if err := h.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
		}

		raw, retry, err := h.do(ctx, body, contentType)
		if err == nil {
			h.logger.Info().Str("file", doc.Name).Int("fields", len(raw)).Msg("[EXTRACT] Extraction succeeded")
			return raw, nil
		}
		if !retry {
			return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: all %d attempts failed, last error: %v", ErrExtractionFailed, h.maxAttempts, lastErr)
}

// do performs one request. retry reports whether the failure is transient.
func (h *HTTPClient) do(ctx context.Context, body []byte, contentType string) (raw normalize.RawExtraction, retry bool, err error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", h.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("rate limit exceeded (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error (status %d)", resp.StatusCode)
	default:
		return nil, false, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	raw, err = normalize.ParseRawExtraction(data)
	if err != nil {
		return nil, true, fmt.Errorf("invalid response format: %w", err)
	}
	if apiErr, ok := raw["error"]; ok && apiErr != nil {
		return nil, false, fmt.Errorf("API Error: %v", apiErr)
	}
	return raw, false, nil
}

// Health checks GET <base>/health, where base is the service URL without its last path segment.
func (h *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(h.url), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", h.apiKey)
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

func healthURL(u string) string {
	scheme := strings.Index(u, "://")
	if i := strings.LastIndexByte(u, '/'); i > scheme+2 {
		return u[:i] + "/health"
	}
	return u + "/health"
}

func buildMultipart(doc Document) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := doc.Name
	if name == "" {
		name = "document"
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, "", err
	}
	if doc.TypeHint != "" {
		if err := w.WriteField("document_type", doc.TypeHint); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		return fmt.Sprint(payload.Detail)
	}
	return strings.TrimSpace(string(body))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsAPIError reports whether err carries a service response error.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
