// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dbchat/cli/internal/prompt"
)

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8080/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, trailing slash not trimmed", c.baseURL)
	}
	if c.model != "local-model" {
		t.Errorf("model = %q, want local-model default", c.model)
	}
	if c.apiKey != "not-needed" {
		t.Errorf("apiKey = %q, want not-needed default", c.apiKey)
	}
	if c.embedModel != "local-model" {
		t.Errorf("embedModel = %q, want to default to model", c.embedModel)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty base URL did not error")
	}
}

func TestChat(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "SELECT * FROM users"}},
			},
		})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Model: "test-model"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out, err := c.Chat(context.Background(), []prompt.Message{
		{Role: prompt.RoleSystem, Content: "sys"},
		{Role: prompt.RoleUser, Content: "q"},
	}, ChatOptions{Temperature: 0.2, MaxTokens: 500})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if out != "SELECT * FROM users" {
		t.Errorf("Chat() = %q", out)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model in payload = %v", gotBody["model"])
	}
	if gotBody["temperature"].(float64) != 0.2 {
		t.Errorf("temperature in payload = %v", gotBody["temperature"])
	}
	if gotBody["max_tokens"].(float64) != 500 {
		t.Errorf("max_tokens in payload = %v", gotBody["max_tokens"])
	}
	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Errorf("messages in payload = %v", gotBody["messages"])
	}
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	if _, err := c.Chat(context.Background(), nil, ChatOptions{}); err == nil {
		t.Error("Chat() did not surface server error")
	}
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	if _, err := c.Chat(context.Background(), nil, ChatOptions{}); err == nil {
		t.Error("Chat() accepted a response with no choices")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("request path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	vec, err := c.Embed(context.Background(), "refund policy")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Embed() vector length = %d, want 3", len(vec))
	}
}

func TestEmbedNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Error("Embed() accepted a response with no data")
	}
}
