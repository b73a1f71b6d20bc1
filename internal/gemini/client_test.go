package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	geminiCfg := config.GeminiConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		APIVersion:  "v1beta",
		Model:       "test-model",
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		MaxTokens:   2048,
		Temperature: 0.2,
	}

	client := NewClient(geminiCfg, loggy.NewNoopLogger())
	require.NotNil(t, client)
	return server, client
}

func completionResponse(text string) ChatResponse {
	return ChatResponse{
		Candidates: []Candidate{
			{
				Content:      Content{Role: "model", Parts: []Part{{Text: text}}},
				FinishReason: "STOP",
			},
		},
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(config.GeminiConfig{APIKey: "k", Model: "gemini-1.5-flash"}, loggy.NewNoopLogger())

	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, "v1beta", client.apiVersion)
	assert.Equal(t, "gemini-1.5-flash", client.defaultModel)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestGenerate(t *testing.T) {
	var received ChatRequest
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("the review"))
	})

	text, err := client.Generate(context.Background(), "review this diff")
	require.NoError(t, err)
	assert.Equal(t, "the review", text)

	require.Len(t, received.Contents, 1)
	assert.Equal(t, "user", received.Contents[0].Role)
	assert.Equal(t, "review this diff", received.Contents[0].Parts[0].Text)
	require.NotNil(t, received.GenerationConfig)
	assert.Equal(t, 2048, received.GenerationConfig.MaxOutputTokens)
	require.NotNil(t, received.GenerationConfig.Temperature)
	assert.Equal(t, 0.2, *received.GenerationConfig.Temperature)
}

func TestGenerateEmptyCompletion(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{})
	})

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, fault.KindMalformedResponse, fault.KindOf(err))
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	attempts := 0
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("recovered"))
	})

	text, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "recovered", text)
}

func TestGenerateRetriesTimedOutAttempts(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			// Hold the connection until the client's per-attempt
			// deadline abandons it. The body must be drained first:
			// the server only watches for the client going away (and
			// cancels the request context) once the body hits EOF.
			io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("third time lucky"))
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Timeout:    100 * time.Millisecond,
		MaxRetries: 2,
	}, loggy.NewNoopLogger())

	text, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "two timed-out attempts then success")
	assert.Equal(t, "third time lucky", text)
}

func TestGenerateAllAttemptsTimeOut(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Timeout:    50 * time.Millisecond,
		MaxRetries: 2,
	}, loggy.NewNoopLogger())

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "every configured attempt is spent before giving up")
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
}

func TestGenerateExhaustedRetries(t *testing.T) {
	attempts := 0
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	// Initial attempt plus MaxRetries more
	assert.Equal(t, 3, attempts)
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
}

func TestGenerateQuotaExhaustedIsPermanent(t *testing.T) {
	attempts := 0
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(APIError{ErrorDetail: &ErrorDetails{
			Code:    429,
			Message: "You exceeded your current quota",
			Status:  "RESOURCE_EXHAUSTED",
		}})
	})

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "quota exhaustion must not be retried")
	assert.Equal(t, fault.KindQuotaExceeded, fault.KindOf(err))
}

func TestGenerateRateLimitIsRetryable(t *testing.T) {
	attempts := 0
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("ok"))
	})

	text, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "ok", text)
}

func TestGenerateBadRequestIsPermanent(t *testing.T) {
	attempts := 0
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(APIError{ErrorDetail: &ErrorDetails{
			Code:    400,
			Message: "Invalid JSON payload",
			Status:  "INVALID_ARGUMENT",
		}})
	})

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))
}

func TestGenerateAuthFault(t *testing.T) {
	_, client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, fault.KindAuth, fault.KindOf(err))
}

func TestChatResponseText(t *testing.T) {
	resp := &ChatResponse{
		Candidates: []Candidate{
			{Content: Content{Parts: []Part{{Text: "part one "}, {Text: "part two"}}}},
			{Content: Content{Parts: []Part{{Text: "ignored second candidate"}}}},
		},
	}
	assert.Equal(t, "part one part two", resp.Text())

	var nilResp *ChatResponse
	assert.Equal(t, "", nilResp.Text())
}
