package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

// restClient is a minimal JSON/text HTTP client shared by the GitLab and
// Bitbucket adapters. Retry policy lives in withRetry; this type only
// classifies outcomes into the fault taxonomy.
type restClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	authorize  func(*http.Request)
	logger     *loggy.Logger
}

func newRESTClient(baseURL string, cfg config.PlatformConfig, authorize func(*http.Request), logger *loggy.Logger) *restClient {
	return &restClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		maxRetries: cfg.MaxRetries,
		authorize:  authorize,
		logger:     logger,
	}
}

// getJSON fetches path and decodes the response body into out.
func (c *restClient) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fault.Wrap(fault.KindInternal, err, "decoding response from %s", path)
	}
	return nil
}

// getText fetches path and returns the raw response body as text.
func (c *restClient) getText(ctx context.Context, path string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, "text/plain")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// postJSON sends payload as a JSON body to path.
func (c *restClient) postJSON(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fault.Wrap(fault.KindInternal, err, "marshalling request for %s", path)
	}
	_, err = c.do(ctx, http.MethodPost, path, data, "application/json")
	return err
}

func (c *restClient) do(ctx context.Context, method, path string, body []byte, accept string) ([]byte, error) {
	var result []byte

	op := func() error {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return fault.Wrap(fault.KindInternal, err, "creating request for %s", path)
		}
		req.Header.Set("Accept", accept)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.authorize != nil {
			c.authorize(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Timeouts and transport failures both get another attempt
			return fault.Wrap(fault.KindTimeout, err, "%s %s", method, path)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fault.Wrap(fault.KindTimeout, err, "reading response from %s", path)
		}

		c.logger.Debug("platform API response",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"bytes", len(respBody))

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			result = respBody
			return nil
		}

		return c.statusFault(resp, respBody, method, path)
	}

	if err := withRetry(ctx, c.maxRetries, op); err != nil {
		return nil, err
	}
	return result, nil
}

// statusFault maps a non-2xx platform response onto the taxonomy.
// Retryability follows fault.Retryable, so rate limits and 5xx-as-timeout
// get more attempts while auth and not-found fail immediately.
func (c *restClient) statusFault(resp *http.Response, body []byte, method, path string) error {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fault.New(fault.KindAuth, "%s %s: HTTP %d: %s", method, path, resp.StatusCode, snippet)
	case resp.StatusCode == http.StatusNotFound:
		return fault.New(fault.KindNotFound, "%s %s: HTTP 404", method, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fault.New(fault.KindRateLimit, "%s %s: HTTP 429", method, path).
			WithRetryAfter(retryAfterHint(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= http.StatusInternalServerError:
		// 5xx is transient from the caller's perspective: retry, and
		// surface as a budget-exhausted failure once attempts run out
		return fault.New(fault.KindTimeout, "%s %s: HTTP %d: %s", method, path, resp.StatusCode, snippet)
	default:
		return fault.New(fault.KindInternal, "%s %s: HTTP %d: %s", method, path, resp.StatusCode, snippet)
	}
}
