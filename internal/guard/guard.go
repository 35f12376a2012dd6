// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package guard implements the read-only validation gate for LLM-generated SQL.
// Every statement produced by the model must pass Classify before it may reach
// the database; the classifier is pure and deterministic so it can be called
// from any number of goroutines without synchronization.
//
// The guard is a keyword blacklist over a normalized copy of the statement,
// not a SQL parser. It deliberately errs toward rejecting safe queries (an
// identifier merely containing a forbidden keyword as a substring is rejected)
// rather than risking a missed write. SQL comments are not stripped before
// scanning; a semicolon inside a comment is indistinguishable from a real
// statement separator. Generated statements additionally run inside a
// read-only transaction, which backstops anything the scan misses.
package guard

import "strings"

// ViolationKind is a machine-readable rejection category.
type ViolationKind string

const (
	// ForbiddenKeyword means a write/DDL keyword was found in the statement.
	ForbiddenKeyword ViolationKind = "forbidden_keyword"
	// NotReadOnlyPrefix means the statement does not begin with SELECT or WITH.
	NotReadOnlyPrefix ViolationKind = "not_read_only_prefix"
	// MultipleStatements means more than one statement was detected via semicolons.
	MultipleStatements ViolationKind = "multiple_statements"
)

// Result is the total classification of a candidate statement.
// Exactly one of the two shapes holds: Allowed, or Rejected with a kind
// and a human-readable detail.
type Result struct {
	Allowed bool
	Kind    ViolationKind
	Detail  string
}

// forbiddenKeywords lists every write, DDL, and execution keyword that
// disqualifies a statement. The scan is a substring test on the uppercased
// statement, not a word-boundary test.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "REPLACE", "MERGE", "GRANT", "REVOKE",
	"EXECUTE", "EXEC", "CALL", "DO",
}

// Classify decides whether raw may be executed in read-only mode.
// It never errors: malformed input that is not a recognized write keyword and
// does not start with SELECT/WITH is rejected via the prefix check.
//
// Checks run in a fixed order (keyword scan, prefix, statement count), so a
// statement violating several rules reports only the first one detected.
func Classify(raw string) Result {
	// Collapse whitespace runs to single spaces. Comments are NOT stripped.
	clean := strings.Join(strings.Fields(raw), " ")
	clean = strings.ToUpper(clean)
	clean = strings.Trim(clean, "; ")

	for _, kw := range forbiddenKeywords {
		if strings.Contains(clean, kw) {
			return Result{
				Kind:   ForbiddenKeyword,
				Detail: kw + " operations are not allowed. Read-only mode is enforced.",
			}
		}
	}

	if !strings.HasPrefix(clean, "SELECT") && !strings.HasPrefix(clean, "WITH") {
		return Result{
			Kind:   NotReadOnlyPrefix,
			Detail: "Only SELECT queries are allowed in read-only mode.",
		}
	}

	// Count semicolons on the original input: only a single trailing semicolon
	// is tolerated, anything else implies a second statement follows.
	semis := strings.Count(raw, ";")
	if semis > 1 || (semis == 1 && !strings.HasSuffix(strings.TrimSpace(raw), ";")) {
		return Result{
			Kind:   MultipleStatements,
			Detail: "Multiple statements or inline semicolons are not allowed.",
		}
	}

	return Result{Allowed: true}
}
