// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package db owns the PostgreSQL connection pool and the executor that runs
// guard-approved statements. Generated SQL is executed inside a READ ONLY
// transaction: even a statement that slipped past the keyword guard cannot
// commit a write, and any partial state is rolled back before the error is
// returned.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Result is a normalized query result: column names in projection order and
// rows of raw values.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Open creates a connection pool and verifies connectivity with a bounded ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: invalid connection config: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping failed: %w", err)
	}
	return pool, nil
}

// Beginner is the transaction capability the executor needs.
// *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Executor runs read-only statements against the pool.
type Executor struct {
	db Beginner
}

// NewExecutor creates an Executor.
func NewExecutor(db Beginner) *Executor {
	return &Executor{db: db}
}

// Query executes sql inside a READ ONLY transaction and returns the collected
// result. The string is executed exactly as received; callers are responsible
// for having validated it first.
func (e *Executor) Query(ctx context.Context, sql string) (*Result, error) {
	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("db: begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("db: query failed: %w", err)
	}

	res := &Result{}
	fds := rows.FieldDescriptions()
	res.Columns = make([]string, len(fds))
	for i, fd := range fds {
		res.Columns[i] = string(fd.Name)
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("db: read row values: %w", err)
		}
		res.Rows = append(res.Rows, vals)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: read rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("db: commit read-only transaction: %w", err)
	}
	return res, nil
}
