// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads CLI configuration. Non-secret settings live in a JSON
// file under the XDG config dir; secrets (DSN, API key) are resolved through
// a fallback chain: OS keychain, then environment, then default.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dbchat/cli/internal/keychain"
	"dbchat/cli/internal/xdg"
)

// File holds non-sensitive CLI settings persisted to disk.
type File struct {
	LogLevel string    `json:"log_level"`
	LLM      LLMConfig `json:"llm"`
	RAG      RAGConfig `json:"rag"`
}

// LLMConfig holds inference server settings. The API key is a secret and is
// resolved by Loader, never written here.
type LLMConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embedding_model"`
}

// RAGConfig holds retrieval tuning knobs.
type RAGConfig struct {
	TopK         int `json:"top_k"`
	HistoryLimit int `json:"history_limit"`
}

// Defaults match a local llama.cpp-style server that needs no real API key.
const (
	DefaultLLMBaseURL     = "http://localhost:8080"
	DefaultLLMModel       = "local-model"
	DefaultLLMAPIKey      = "not-needed"
	DefaultEmbeddingModel = "all-MiniLM-L6-v2"
	DefaultTopK           = 3
	DefaultHistoryLimit   = 5
)

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the settings file; a missing file returns defaults.
func Load() (File, error) {
	var c File
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return withDefaults(c), nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return withDefaults(c), nil
}

// Save writes the settings file with 0600 permissions.
func Save(c File) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func withDefaults(c File) File {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModel
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = DefaultTopK
	}
	if c.RAG.HistoryLimit == 0 {
		c.RAG.HistoryLimit = DefaultHistoryLimit
	}
	return c
}

// SecretStore is the subset of the keychain manager the loader needs.
type SecretStore interface {
	Get(key string) (string, error)
}

// Loader resolves configuration values through the fallback chain:
// keychain, then environment variable, then default. Results are cached
// for the lifetime of the loader.
type Loader struct {
	store SecretStore

	mu    sync.Mutex
	cache map[string]string
}

// NewLoader builds a loader over the given secret store. A nil store skips
// the keychain step, leaving environment and defaults.
func NewLoader(store SecretStore) *Loader {
	return &Loader{store: store, cache: make(map[string]string)}
}

// DefaultLoader returns a loader backed by the OS keychain. Keychain
// initialization failure degrades to env-and-defaults rather than erroring;
// the CLI must stay usable on hosts without a credential store.
func DefaultLoader() *Loader {
	mgr, err := keychain.GetManager()
	if err != nil {
		return NewLoader(nil)
	}
	return NewLoader(mgr)
}

// Get resolves key through the fallback chain. envVar overrides the
// environment variable name; empty means strings.ToUpper(key). Returns ""
// when no source has a value and def is empty.
func (l *Loader) Get(key, def, envVar string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.cache[key]; ok {
		return v
	}
	if l.store != nil {
		if v, err := l.store.Get(strings.ToLower(key)); err == nil && v != "" {
			l.cache[key] = v
			return v
		}
	}
	name := envVar
	if name == "" {
		name = strings.ToUpper(key)
	}
	if v := os.Getenv(name); v != "" {
		l.cache[key] = v
		return v
	}
	if def != "" {
		l.cache[key] = def
	}
	return def
}

// Require resolves key and errors when no source provides a value.
func (l *Loader) Require(key, envVar string) (string, error) {
	v := l.Get(key, "", envVar)
	if v == "" {
		name := envVar
		if name == "" {
			name = strings.ToUpper(key)
		}
		return "", fmt.Errorf("required configuration %q not found: set it in the keychain or the %s environment variable", key, name)
	}
	return v, nil
}

// DatabaseDSN resolves the Postgres connection string. Checks the keychain
// entry first, then DBCHAT_DSN, then DATABASE_URL.
func (l *Loader) DatabaseDSN() (string, error) {
	if v := l.Get(keychain.KeyDBDSN, "", "DBCHAT_DSN"); v != "" {
		return v, nil
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}
	return "", errors.New("no database configured: run 'dbchat connect' or set DBCHAT_DSN")
}

// LLMBaseURL resolves the inference server URL.
func (l *Loader) LLMBaseURL(file File) string {
	return l.Get("llm_base_url", file.LLM.BaseURL, "DBCHAT_LLM_URL")
}

// LLMAPIKey resolves the API key for the inference server. Local servers
// accept any value, so the default placeholder is fine.
func (l *Loader) LLMAPIKey() string {
	return l.Get(keychain.KeyLLMAPIKey, DefaultLLMAPIKey, "DBCHAT_LLM_API_KEY")
}

// EmbeddingModel resolves the embedding model name sent to the server.
func (l *Loader) EmbeddingModel(file File) string {
	return l.Get("embedding_model", file.LLM.EmbeddingModel, "DBCHAT_EMBEDDING_MODEL")
}
