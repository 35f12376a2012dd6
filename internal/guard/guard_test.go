// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package guard

import (
	"testing"
)

func TestClassifyAllowed(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{
			name: "simple select",
			sql:  "SELECT * FROM users",
		},
		{
			name: "select with where clause",
			sql:  "SELECT id, name FROM products WHERE price > 100",
		},
		{
			name: "select with aggregate",
			sql:  "SELECT COUNT(*) FROM orders",
		},
		{
			name: "common table expression",
			sql:  "WITH cte AS (SELECT * FROM users) SELECT * FROM cte",
		},
		{
			name: "trailing semicolon",
			sql:  "SELECT * FROM users;",
		},
		{
			name: "extra whitespace",
			sql:  "  SELECT  *  FROM  users  ",
		},
		{
			name: "lowercase",
			sql:  "select * from users",
		},
		{
			name: "mixed case",
			sql:  "SeLeCt * FrOm users",
		},
		{
			name: "newlines between clauses",
			sql:  "SELECT id,\n  name\nFROM users\nWHERE active",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.sql)
			if !res.Allowed {
				t.Errorf("Classify(%q) rejected (%s: %s), want allowed", tt.sql, res.Kind, res.Detail)
			}
		})
	}
}

func TestClassifyRejected(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		kind ViolationKind
	}{
		{
			name: "insert",
			sql:  "INSERT INTO users VALUES (1, 'test')",
			kind: ForbiddenKeyword,
		},
		{
			name: "update",
			sql:  "UPDATE users SET name = 'hacked'",
			kind: ForbiddenKeyword,
		},
		{
			name: "delete",
			sql:  "DELETE FROM users WHERE id = 1",
			kind: ForbiddenKeyword,
		},
		{
			name: "drop table",
			sql:  "DROP TABLE users",
			kind: ForbiddenKeyword,
		},
		{
			name: "create table",
			sql:  "CREATE TABLE hackers (id INT)",
			kind: ForbiddenKeyword,
		},
		{
			name: "alter table",
			sql:  "ALTER TABLE users ADD COLUMN evil TEXT",
			kind: ForbiddenKeyword,
		},
		{
			name: "truncate",
			sql:  "TRUNCATE TABLE users",
			kind: ForbiddenKeyword,
		},
		{
			name: "execute stored procedure",
			sql:  "EXECUTE sp_malicious",
			kind: ForbiddenKeyword,
		},
		{
			name: "call function",
			sql:  "CALL malicious_function()",
			kind: ForbiddenKeyword,
		},
		{
			name: "grant privileges",
			sql:  "GRANT ALL ON users TO hacker",
			kind: ForbiddenKeyword,
		},
		{
			name: "revoke privileges",
			sql:  "REVOKE ALL ON users FROM admin",
			kind: ForbiddenKeyword,
		},
		{
			name: "stacked drop after select",
			sql:  "SELECT * FROM users; DROP TABLE users;",
			kind: ForbiddenKeyword,
		},
		{
			name: "stacked delete after select",
			sql:  "SELECT * FROM users; DELETE FROM users WHERE 1=1;",
			kind: ForbiddenKeyword,
		},
		{
			name: "comment based injection fragment",
			sql:  "'; DROP TABLE users; --",
			kind: ForbiddenKeyword,
		},
		{
			name: "mid-query semicolon",
			sql:  "SELECT * FROM users; SELECT * FROM orders",
			kind: MultipleStatements,
		},
		{
			name: "two trailing statements",
			sql:  "SELECT 1; SELECT 2;",
			kind: MultipleStatements,
		},
		{
			name: "bare prose",
			sql:  "show me everything please",
			kind: NotReadOnlyPrefix,
		},
		{
			name: "explain statement",
			sql:  "EXPLAIN SELECT * FROM users",
			kind: NotReadOnlyPrefix,
		},
		{
			name: "empty string",
			sql:  "",
			kind: NotReadOnlyPrefix,
		},
		{
			name: "whitespace only",
			sql:  "   \n\t  ",
			kind: NotReadOnlyPrefix,
		},
		{
			name: "lowercase write keyword",
			sql:  "delete from users",
			kind: ForbiddenKeyword,
		},
		{
			name: "keyword split across lines still caught",
			sql:  "SELECT * FROM users WHERE note = 'x'\n; DROP\nTABLE users",
			kind: ForbiddenKeyword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.sql)
			if res.Allowed {
				t.Fatalf("Classify(%q) allowed, want rejection", tt.sql)
			}
			if res.Kind != tt.kind {
				t.Errorf("Classify(%q) kind = %s, want %s", tt.sql, res.Kind, tt.kind)
			}
			if res.Detail == "" {
				t.Errorf("Classify(%q) returned empty detail", tt.sql)
			}
		})
	}
}

// The substring scan is intentionally conservative: identifiers that merely
// contain a forbidden keyword are rejected too.
func TestClassifyConservativeFalsePositives(t *testing.T) {
	tests := []string{
		"SELECT * FROM updates",              // contains UPDATE
		"SELECT created_at FROM events",      // contains CREATE
		"SELECT * FROM domain_records",       // contains DO
		"SELECT executor_name FROM job_runs", // contains EXEC
	}
	for _, sql := range tests {
		res := Classify(sql)
		if res.Allowed {
			t.Errorf("Classify(%q) allowed; the substring scan should reject it", sql)
		}
		if res.Kind != ForbiddenKeyword {
			t.Errorf("Classify(%q) kind = %s, want %s", sql, res.Kind, ForbiddenKeyword)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := []string{
		"SELECT * FROM users",
		"DROP TABLE users",
		"SELECT 1; SELECT 2;",
		"",
		"random text",
	}
	for _, in := range inputs {
		first := Classify(in)
		second := Classify(in)
		if first != second {
			t.Errorf("Classify(%q) not deterministic: %+v then %+v", in, first, second)
		}
	}
}

func TestClassifyReportsFirstViolation(t *testing.T) {
	// A stacked write query trips both the keyword scan and the statement
	// count; the keyword scan runs first so it decides the reported reason.
	res := Classify("SELECT * FROM users; DROP TABLE users;")
	if res.Allowed {
		t.Fatal("stacked write query was allowed")
	}
	if res.Kind != ForbiddenKeyword {
		t.Errorf("kind = %s, want %s", res.Kind, ForbiddenKeyword)
	}
	if want := "DROP operations are not allowed. Read-only mode is enforced."; res.Detail != want {
		t.Errorf("detail = %q, want %q", res.Detail, want)
	}
}
