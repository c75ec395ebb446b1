// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbindex/internal/httputil"
	"github.com/pdiddy/kbindex/pkg/types"
)

func TestMain(m *testing.M) {
	// Keep retry backoff short so retry tests finish quickly.
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) types.AIConfig {
	return types.AIConfig{
		BaseURL:    baseURL,
		Model:      "test-model",
		APIKey:     "sk-test",
		MaxRetries: 3,
		Timeout:    2 * time.Second,
	}
}

func completion(content string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(data)
}

func TestSummarize_Success(t *testing.T) {
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(completion("  Greeting.\n")))
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL + "/v1/")
	cfg.ProjectContext = "Project: community bot."
	c := New(ts.Client(), cfg, discardLogger())

	summary, err := c.Summarize(context.Background(), "notes/a.txt", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "Greeting.", summary)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 0.0, got.Temperature)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, chatMessage{Role: "system", Content: "Project: community bot."}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "system", Content: DefaultInstruction}, got.Messages[1])
	assert.Equal(t, chatMessage{Role: "user", Content: "hello world"}, got.Messages[2])
}

func TestSummarize_TemperatureIsAlwaysSent(t *testing.T) {
	var raw map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(completion("ok")))
	}))
	defer ts.Close()

	c := New(ts.Client(), testConfig(ts.URL), discardLogger())
	_, err := c.Summarize(context.Background(), "a", "text")
	require.NoError(t, err)

	temp, ok := raw["temperature"]
	require.True(t, ok, "temperature must be present even when zero")
	assert.Equal(t, 0.0, temp)
}

func TestSummarize_PromptOverrideAndNoContext(t *testing.T) {
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(completion("ok")))
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.APIKey = ""
	cfg.SummarizationPrompt = "Describe briefly."
	c := New(ts.Client(), cfg, discardLogger())

	_, err := c.Summarize(context.Background(), "a", "text")
	require.NoError(t, err)
	assert.Equal(t, []chatMessage{
		{Role: "system", Content: "Describe briefly."},
		{Role: "user", Content: "text"},
	}, got.Messages)
}

func TestSummarize_EmptyTextSkipsNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	c := New(ts.Client(), testConfig(ts.URL), discardLogger())
	for _, text := range []string{"", "   ", "\n\t\n"} {
		summary, err := c.Summarize(context.Background(), "a", text)
		require.NoError(t, err)
		assert.Empty(t, summary)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSummarize_RetryBound(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.MaxRetries = 4
	c := New(ts.Client(), cfg, discardLogger())

	_, err := c.Summarize(context.Background(), "a", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransient)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls), "max_retries + 1 attempts")
}

func TestSummarize_UnauthorizedFailsImmediately(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer ts.Close()

	c := New(ts.Client(), testConfig(ts.URL), discardLogger())

	_, err := c.Summarize(context.Background(), "a", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFatalRemote)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSummarize_NoContentStatusIsRejected(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := New(ts.Client(), testConfig(ts.URL), discardLogger())

	_, err := c.Summarize(context.Background(), "a", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFatalRemote)
	assert.Contains(t, err.Error(), "HTTP 204")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSummarize_RecoversAfterRateLimit(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(completion("Doc.")))
	}))
	defer ts.Close()

	c := New(ts.Client(), testConfig(ts.URL), discardLogger())

	summary, err := c.Summarize(context.Background(), "https://example.com/doc", "text")
	require.NoError(t, err)
	assert.Equal(t, "Doc.", summary)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSummarize_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"no choices", `{"choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				atomic.AddInt32(&calls, 1)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := New(ts.Client(), testConfig(ts.URL), discardLogger())
			_, err := c.Summarize(context.Background(), "a", "text")
			require.Error(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "malformed responses are not retried")
		})
	}
}
