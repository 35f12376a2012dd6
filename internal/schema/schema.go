// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package schema introspects the database catalog and renders it as the text
// grounding block embedded in SQL-generation prompts. Only the public schema
// is described; ordering follows the catalog's declaration order (table name,
// then ordinal position) so the rendering is stable across calls.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Column is one row of the catalog description.
type Column struct {
	Table    string
	Name     string
	DataType string
	Nullable bool
}

// Descriptor is the ordered catalog description, grouped by table.
type Descriptor struct {
	Columns []Column
}

// Querier is the single pgx capability the introspector needs.
// *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Introspector reads table/column metadata from information_schema.
type Introspector struct {
	db Querier
}

// NewIntrospector creates an Introspector over the given connection source.
func NewIntrospector(db Querier) *Introspector {
	return &Introspector{db: db}
}

const describeQuery = `
	SELECT table_name, column_name, data_type, is_nullable
	FROM information_schema.columns
	WHERE table_schema = 'public'
	ORDER BY table_name, ordinal_position`

// Describe queries the catalog and returns the ordered descriptor.
func (in *Introspector) Describe(ctx context.Context) (Descriptor, error) {
	rows, err := in.db.Query(ctx, describeQuery)
	if err != nil {
		return Descriptor{}, fmt.Errorf("schema: introspection query failed: %w", err)
	}
	defer rows.Close()

	var d Descriptor
	for rows.Next() {
		var c Column
		var nullable string
		if err := rows.Scan(&c.Table, &c.Name, &c.DataType, &nullable); err != nil {
			return Descriptor{}, fmt.Errorf("schema: scan catalog row: %w", err)
		}
		c.Nullable = !strings.EqualFold(nullable, "NO")
		d.Columns = append(d.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("schema: read catalog rows: %w", err)
	}
	return d, nil
}

// Render produces the prompt grounding text: a header, one block per table,
// and one "  - column: type" line per column with NOT NULL flagged.
func (d Descriptor) Render() string {
	var sb strings.Builder
	sb.WriteString("Database Schema:\n\n")

	currentTable := ""
	for _, c := range d.Columns {
		if c.Table != currentTable {
			currentTable = c.Table
			sb.WriteString("\nTable: " + currentTable + "\n")
		}
		sb.WriteString("  - " + c.Name + ": " + c.DataType)
		if !c.Nullable {
			sb.WriteString(" (NOT NULL)")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Tables returns the distinct table names in declaration order.
func (d Descriptor) Tables() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range d.Columns {
		if _, ok := seen[c.Table]; ok {
			continue
		}
		seen[c.Table] = struct{}{}
		out = append(out, c.Table)
	}
	return out
}
