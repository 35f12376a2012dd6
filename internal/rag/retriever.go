// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package rag retrieves knowledge-base documents by vector similarity.
// Documents live in a pgvector-backed table; similarity is defined as
// 1 - cosine_distance(query embedding, document embedding). Documents whose
// embedding has not been computed yet are excluded from the candidate set
// entirely, never scored as zero.
package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Document is a knowledge-base entry. Immutable post-embedding; the embedding
// is derived data computed once from the content.
type Document struct {
	ID       int64
	Content  string
	Metadata map[string]any
}

// Scored pairs a document with its similarity to the query, in [0,1].
type Scored struct {
	Document   Document
	Similarity float64
}

// Embedder turns text into a fixed-length vector. The LLM gateway provides
// the production implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DB is the pgx capability the retriever needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Retriever performs similarity search and embedding backfill over the
// documents table. Search is read-only; Backfill is the only writer and
// serializes itself behind row locks.
type Retriever struct {
	db       DB
	embedder Embedder
}

// NewRetriever creates a Retriever.
func NewRetriever(db DB, embedder Embedder) *Retriever {
	return &Retriever{db: db, embedder: embedder}
}

const searchQuery = `
	SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
	FROM documents
	WHERE embedding IS NOT NULL
	ORDER BY embedding <=> $1
	LIMIT $2`

// Search embeds the question and returns up to topK documents ordered by
// descending similarity. Zero embedded documents yields an empty slice and a
// nil error: "no knowledge available" is not a failure.
func (r *Retriever) Search(ctx context.Context, question string, topK int) ([]Scored, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("rag: topK must be positive, got %d", topK)
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}

	rows, err := r.db.Query(ctx, searchQuery, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("rag: similarity search failed: %w", err)
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		var s Scored
		if err := rows.Scan(&s.Document.ID, &s.Document.Content, &s.Document.Metadata, &s.Similarity); err != nil {
			return nil, fmt.Errorf("rag: scan result row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: read result rows: %w", err)
	}
	return out, nil
}

// Backfill computes embeddings for documents that do not have one yet and
// returns how many were embedded. Candidate rows are locked for the duration
// of the transaction (SKIP LOCKED) so two concurrent backfills never embed
// the same document twice.
func (r *Retriever) Backfill(ctx context.Context) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("rag: begin backfill transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id, content FROM documents WHERE embedding IS NULL FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return 0, fmt.Errorf("rag: list unembedded documents: %w", err)
	}

	type pending struct {
		id      int64
		content string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			rows.Close()
			return 0, fmt.Errorf("rag: scan unembedded document: %w", err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("rag: read unembedded documents: %w", err)
	}

	for _, p := range todo {
		vec, err := r.embedder.Embed(ctx, p.content)
		if err != nil {
			return 0, fmt.Errorf("rag: embed document %d: %w", p.id, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE documents SET embedding = $1 WHERE id = $2`,
			pgvector.NewVector(vec), p.id); err != nil {
			return 0, fmt.Errorf("rag: store embedding for document %d: %w", p.id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("rag: commit backfill: %w", err)
	}
	return len(todo), nil
}
