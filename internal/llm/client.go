// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package llm provides the chat-completion and embedding gateway.
// It speaks the OpenAI-compatible HTTP API exposed by llama.cpp and similar
// servers: an ordered message list plus sampling options in, a single text
// completion out. The package owns no retry policy; upstream failures are
// returned to the caller untouched.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dbchat/cli/internal/prompt"
)

// ChatCompleter is the narrow capability the pipeline depends on.
// The concrete Client implements it; tests substitute fakes.
type ChatCompleter interface {
	Chat(ctx context.Context, messages []prompt.Message, opts ChatOptions) (string, error)
}

// Embedder produces a fixed-length vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatOptions bound a single completion request.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// Config holds the LLM endpoint settings.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080". The client
	// appends the /v1 API paths itself.
	BaseURL string
	// APIKey is sent as a bearer token. llama.cpp accepts any value; hosted
	// endpoints require a real key.
	APIKey string
	// Model is the model name passed through to the server.
	Model string
	// EmbedModel is the model used for /v1/embeddings. Defaults to Model.
	EmbedModel string
	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat/embedding server.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	client     *http.Client
}

// New creates a Client from config, applying defaults for blank fields.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("llm: base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "local-model"
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = "not-needed" // llama.cpp ignores the key but the header must be present
	}
	embedModel := strings.TrimSpace(cfg.EmbedModel)
	if embedModel == "" {
		embedModel = model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Chat sends the message list and returns the first choice's text.
func (c *Client) Chat(ctx context.Context, messages []prompt.Message, opts ChatOptions) (string, error) {
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}

	raw, err := c.post(ctx, "/v1/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("llm: decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for a single input text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model": c.embedModel,
		"input": text,
	}

	raw, err := c.post(ctx, "/v1/embeddings", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("llm: decode embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("llm: server returned no embeddings")
	}
	return parsed.Data[0].Embedding, nil
}

// Ping verifies the server is reachable by requesting a tiny completion.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Chat(ctx, []prompt.Message{{Role: prompt.RoleUser, Content: "Hello"}}, ChatOptions{MaxTokens: 5})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("llm: server returned status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
