// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package app assembles the CLI's long-lived collaborators: config, the
// Postgres pool, the LLM client and the pipeline built on top of them.
// Commands construct one App at startup and close it on exit.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dbchat/cli/internal/config"
	"dbchat/cli/internal/db"
	"dbchat/cli/internal/history"
	"dbchat/cli/internal/llm"
	"dbchat/cli/internal/pipeline"
	"dbchat/cli/internal/rag"
	"dbchat/cli/internal/schema"
)

// App holds the wired collaborators for one CLI session.
type App struct {
	File      config.File
	Loader    *config.Loader
	Pool      *pgxpool.Pool
	LLM       *llm.Client
	Schema    *schema.Introspector
	History   *history.Store
	Retriever *rag.Retriever
	SessionID string
}

// New resolves configuration, connects to Postgres and builds the LLM
// client. The caller owns the returned App and must Close it.
func New(ctx context.Context) (*App, error) {
	loader := config.DefaultLoader()
	file, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dsn, err := loader.DatabaseDSN()
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	client, err := llm.New(llm.Config{
		BaseURL:    loader.LLMBaseURL(file),
		APIKey:     loader.LLMAPIKey(),
		Model:      file.LLM.Model,
		EmbedModel: loader.EmbeddingModel(file),
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		File:      file,
		Loader:    loader,
		Pool:      pool,
		LLM:       client,
		Schema:    schema.NewIntrospector(pool),
		History:   history.NewStore(pool),
		Retriever: rag.NewRetriever(pool, client),
		SessionID: uuid.NewString(),
	}, nil
}

// Pipeline builds the query pipeline over the app's collaborators. The
// confirmer stays a parameter so commands can plug in their own prompt.
func (a *App) Pipeline(confirm pipeline.Confirmer) *pipeline.Pipeline {
	p := pipeline.New(a.Schema, a.LLM, db.NewExecutor(a.Pool), confirm, a.Retriever, a.History, a.SessionID)
	p.Tune(a.File.RAG.TopK, a.File.RAG.HistoryLimit)
	return p
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
