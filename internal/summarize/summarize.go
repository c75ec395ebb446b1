// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize produces knowledge-base index descriptions by calling an
// OpenAI-compatible chat completion endpoint.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/kbindex/internal/httputil"
	"github.com/pdiddy/kbindex/pkg/types"
)

// DefaultInstruction is the system instruction sent when no override is configured.
const DefaultInstruction = `You are indexing documents for a knowledge base that an assistant will search to answer user questions.
Summarize the document in the user message in two to four sentences: what it covers, which concrete topics, names or procedures it contains, and what kinds of questions it can answer.
Reply with the summary only, as plain text on consecutive lines, with no headings and no blank lines.`

// Client summarizes source text. It is safe for sequential use by one build.
type Client struct {
	http           *http.Client
	endpoint       string
	apiKey         string
	model          string
	projectContext string
	instruction    string
	policy         httputil.RetryPolicy
	logger         *slog.Logger
}

// New creates a Client from cfg. The HTTP client is owned by the caller.
func New(client *http.Client, cfg types.AIConfig, logger *slog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	instruction := cfg.SummarizationPrompt
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}

	policy := httputil.RetryPolicy{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.RetryBaseDelay,
		AttemptTimeout: cfg.Timeout,
		ExpectStatus:   http.StatusOK,
	}
	if cfg.RequestsPerSecond > 0 {
		policy.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		http:           client,
		endpoint:       strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		projectContext: cfg.ProjectContext,
		instruction:    instruction,
		policy:         policy,
		logger:         logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest always carries temperature, including zero.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize returns a trimmed summary of text. Empty or whitespace-only text
// yields "" without a network call. Transient failures are retried per the
// configured policy; fatal statuses fail immediately.
func (c *Client) Summarize(ctx context.Context, sourceID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    c.messages(text),
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	respBody, err := httputil.DoWithRetry(ctx, c.http, req, c.policy)
	if err != nil {
		c.logger.Error("kb.summarize_failed", "source_id", sourceID, "error", err)
		return "", fmt.Errorf("summarizing %s: %w", sourceID, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decoding completion for %s: %w", sourceID, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion for %s has no choices", sourceID)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) messages(text string) []chatMessage {
	var msgs []chatMessage
	if strings.TrimSpace(c.projectContext) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.projectContext})
	}
	msgs = append(msgs,
		chatMessage{Role: "system", Content: c.instruction},
		chatMessage{Role: "user", Content: text},
	)
	return msgs
}
