// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package history persists chat turns scoped to a session. All statements
// here are internally authored and parameterized; they never pass through the
// read-only guard, which exists only for LLM-generated SQL.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Message is one chat turn. Immutable once stored; ordered by timestamp
// within a session.
type Message struct {
	SessionID string
	Role      string
	Content   string
	Timestamp time.Time
}

// DB is the pgx capability the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads and writes the chat_history table.
type Store struct {
	db DB
}

// NewStore creates a Store over the given connection source.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Append inserts one chat turn. Callers treat a failure here as a non-fatal
// warning: a lost history row must never abort an in-progress answer.
func (s *Store) Append(ctx context.Context, sessionID, role, content string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_history (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, role, content)
	if err != nil {
		return fmt.Errorf("history: append failed: %w", err)
	}
	return nil
}

// Recent returns the last limit messages of a session in chronological order
// (oldest first). Storage order is newest-first, so the rows are reversed
// before returning.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT role, content, timestamp
		 FROM chat_history
		 WHERE session_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: read failed: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m := Message{SessionID: sessionID}
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: read rows: %w", err)
	}

	// newest-first from storage, back to chronological
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
