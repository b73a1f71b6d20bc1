// Package gemini is a minimal client for Google's Gemini text
// generation API, covering just the generateContent call.
package gemini

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

	"github.com/cenkalti/backoff/v4"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client represents a Google Gemini API client.
type Client struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	defaultModel string
	maxTokens    int
	temperature  float64
	httpClient   *http.Client
	maxRetries   int
	logger       *loggy.Logger
}

// NewClient creates a new Gemini client from config.
func NewClient(cfg config.GeminiConfig, logger *loggy.Logger) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		apiVersion:   apiVersion,
		defaultModel: cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		httpClient:   &http.Client{Timeout: timeout},
		maxRetries:   cfg.MaxRetries,
		logger:       logger,
	}
}

// Generate sends a single-turn prompt and returns the model's text. It
// is the narrow call the review pipeline needs.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := ChatRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: prompt}}},
		},
	}

	resp, err := c.GenerateChat(ctx, req)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fault.New(fault.KindMalformedResponse, "model returned an empty completion")
	}
	return text, nil
}

// GenerateChat sends a chat completion request to Gemini.
func (c *Client) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.GenerationConfig == nil {
		gen := &GenerationConfig{MaxOutputTokens: c.maxTokens}
		if c.temperature > 0 {
			gen.Temperature = Float64Ptr(c.temperature)
		}
		req.GenerationConfig = gen
	}

	var resp ChatResponse
	path := fmt.Sprintf("/models/%s:generateContent", req.Model)
	if err := c.makeRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// makeRequest performs one API call with retries. Only failures the
// taxonomy marks retryable get another attempt; the configured timeout
// bounds each attempt, not the whole call.
func (c *Client) makeRequest(ctx context.Context, method, path string, requestBody, responseBody any) error {
	url := fmt.Sprintf("%s/%s%s", c.baseURL, c.apiVersion, path)

	requestBytes, err := json.Marshal(requestBody)
	if err != nil {
		return fault.Wrap(fault.KindInternal, err, "marshalling request")
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(requestBytes))
		if err != nil {
			return backoff.Permanent(fault.Wrap(fault.KindInternal, err, "creating request"))
		}
		req.Header.Set("Content-Type", "application/json")

		q := req.URL.Query()
		q.Add("key", c.apiKey)
		req.URL.RawQuery = q.Encode()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport failures and client timeouts get more attempts
			return fault.Wrap(fault.KindTimeout, err, "sending request to %s", path)
		}
		defer resp.Body.Close()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fault.Wrap(fault.KindTimeout, err, "reading response body")
		}

		c.logger.Debug("Gemini API response",
			"status", resp.StatusCode,
			"path", path,
			"bytes", len(bodyBytes))

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			classified := c.classifyError(resp, bodyBytes)
			if !fault.Retryable(classified) {
				return backoff.Permanent(classified)
			}
			return classified
		}

		if err := json.Unmarshal(bodyBytes, responseBody); err != nil {
			return backoff.Permanent(
				fault.Wrap(fault.KindMalformedResponse, err, "unmarshalling response"))
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)
	err = backoff.Retry(operation, bo)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && fault.KindOf(err) == fault.KindInternal {
		return fault.Wrap(fault.KindTimeout, err, "model call deadline exceeded")
	}
	return err
}

// classifyError maps an API error response onto the fault taxonomy. A
// 429 whose status reports exhausted quota is permanent; any other 429
// and all 5xx responses are treated as transient.
func (c *Client) classifyError(resp *http.Response, body []byte) error {
	var apiErr APIError
	message := strings.TrimSpace(string(body))
	status := ""
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorDetail != nil {
		message = apiErr.ErrorDetail.Message
		status = apiErr.ErrorDetail.Status
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if status == "RESOURCE_EXHAUSTED" && strings.Contains(strings.ToLower(message), "quota") {
			return fault.New(fault.KindQuotaExceeded, "model quota exhausted: %s", message)
		}
		return fault.New(fault.KindRateLimit, "model rate limited: %s", message).
			WithRetryAfter(retryAfterHint(resp.Header.Get("Retry-After")))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fault.New(fault.KindAuth, "model auth failed: HTTP %d: %s", resp.StatusCode, message)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fault.New(fault.KindTimeout, "model unavailable: HTTP %d: %s", resp.StatusCode, message)
	default:
		// Bad requests and other 4xx are a caller bug, never retried
		return fault.New(fault.KindInternal, "model rejected request: HTTP %d: %s", resp.StatusCode, message)
	}
}

// retryAfterHint parses a Retry-After style value in seconds; zero when
// absent or unparseable.
func retryAfterHint(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value + "s")
	if err != nil {
		return 0
	}
	return d
}
