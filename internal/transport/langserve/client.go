// Package langserve calls a LangServe RemoteRunnable over its HTTP invoke endpoint.
package langserve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain"
	"github.com/kailas-cloud/zonemap/internal/metrics"
)

const maxResponseBytes = 4 << 20

// Client invokes a runnable such as http://host:8000/pa-pd.
type Client struct {
	baseURL  string
	http     *http.Client
	headers  map[string]string
	provider string
	logger   *zap.Logger
}

// Config holds the runnable endpoint settings.
type Config struct {
	URL        string
	Headers    map[string]string
	HTTPClient *http.Client
	Provider   string
	Logger     *zap.Logger
}

// NewClient creates a LangServe client. The timeout comes from the caller's context.
func NewClient(cfg *Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "langserve"
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		http:     httpClient,
		headers:  cfg.Headers,
		provider: provider,
		logger:   cfg.Logger,
	}
}

type invokeRequest struct {
	Input  string         `json:"input"`
	Config map[string]any `json:"config"`
	Kwargs map[string]any `json:"kwargs"`
}

type invokeResponse struct {
	Output   json.RawMessage `json:"output"`
	Metadata struct {
		RunID string `json:"run_id"`
	} `json:"metadata"`
}

// Invoke implements domain.QueryClient: POST {url}/invoke with the prompt as input.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(invokeRequest{Input: prompt, Config: map[string]any{}, Kwargs: map[string]any{}})
	if err != nil {
		return "", fmt.Errorf("marshal invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.QueryRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return "", fmt.Errorf("invoke request: %w: %w", err, domain.ErrQueryProviderError)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return "", fmt.Errorf("read invoke response: %w: %w", err, domain.ErrQueryProviderError)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.QueryRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return "", fmt.Errorf("runnable error %d: %s: %w",
			resp.StatusCode, errorDetail(raw), domain.ErrQueryProviderError)
	}

	var out invokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return "", fmt.Errorf("decode invoke response: %w: %w", err, domain.ErrQueryProviderError)
	}

	text, err := outputText(out.Output)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(c.provider, "no_output").Inc()
		return "", fmt.Errorf("%w: %w", err, domain.ErrQueryProviderError)
	}

	metrics.QueryRequestsTotal.WithLabelValues(c.provider, "success").Inc()
	c.logger.Debug("Runnable invoked",
		zap.String("run_id", out.Metadata.RunID),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

var errNoOutput = errors.New("runnable returned no output")

// outputText accepts a plain string output or a message object with a content field.
// A string is returned as is, even when empty; only a missing output is an error.
func outputText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errNoOutput
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var msg struct {
		Content json.RawMessage `json:"content"`
		Output  json.RawMessage `json:"output"`
		Answer  *string         `json:"answer"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("unsupported output shape: %w", err)
	}
	switch {
	case len(msg.Content) > 0:
		return outputText(msg.Content)
	case len(msg.Output) > 0:
		return outputText(msg.Output)
	case msg.Answer != nil:
		return *msg.Answer, nil
	}
	return "", errNoOutput
}

func errorDetail(body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Detail) > 0 {
		var s string
		if json.Unmarshal(parsed.Detail, &s) == nil {
			return s
		}
		return string(parsed.Detail)
	}
	return strings.TrimSpace(string(body))
}

// HealthCheck fetches the runnable input schema, a cheap endpoint every LangServe route exposes.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/input_schema", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("input schema: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("input schema: unexpected status %d", resp.StatusCode)
	}
	return nil
}
