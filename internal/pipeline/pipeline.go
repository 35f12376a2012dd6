// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package pipeline orchestrates the three answer flows: natural language to
// SQL, retrieval-augmented answering, and general conversation.
//
// The SQL flow is the security-sensitive one. Its shape is fixed: build the
// schema-grounded prompt, call the model, strip formatting artifacts, classify
// through the read-only guard, ask the human to confirm, execute. The string
// that passed classification is the string that executes; nothing is
// regenerated or rewritten in between, and a rejected statement is never sent
// back to the model for "repair".
package pipeline

import (
	"context"
	"strings"

	"dbchat/cli/internal/db"
	apperrors "dbchat/cli/internal/errors"
	"dbchat/cli/internal/guard"
	"dbchat/cli/internal/history"
	"dbchat/cli/internal/llm"
	"dbchat/cli/internal/prompt"
	"dbchat/cli/internal/rag"
	"dbchat/cli/internal/schema"
)

// NoRelevantInfo is the fixed terminal response when the knowledge base has
// nothing to offer. Returned without an LLM call.
const NoRelevantInfo = "I couldn't find any relevant information in the knowledge base."

// Sampling bounds per task. SQL generation runs cold so the model stays close
// to the schema; conversation runs warmer.
const (
	sqlTemperature  = 0.2
	sqlMaxTokens    = 500
	ragTemperature  = 0.7
	ragMaxTokens    = 500
	chatTemperature = 0.8
	chatMaxTokens   = 800

	ragTopK          = 3
	ragHistoryLimit  = 5
	chatHistoryLimit = 10
)

// SchemaProvider yields the catalog descriptor for prompt grounding.
type SchemaProvider interface {
	Describe(ctx context.Context) (schema.Descriptor, error)
}

// SQLExecutor executes an already-validated statement.
type SQLExecutor interface {
	Query(ctx context.Context, sql string) (*db.Result, error)
}

// Confirmer is the human-in-the-loop collaborator. It shows the statement and
// reports whether the user approved execution.
type Confirmer interface {
	Confirm(sql string) bool
}

// Searcher retrieves scored knowledge-base documents.
type Searcher interface {
	Search(ctx context.Context, question string, topK int) ([]rag.Scored, error)
}

// HistoryReader supplies recent chat turns in chronological order.
type HistoryReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
}

// Pipeline wires the collaborators together for one session.
type Pipeline struct {
	schema    SchemaProvider
	llm       llm.ChatCompleter
	exec      SQLExecutor
	confirm   Confirmer
	search    Searcher
	history   HistoryReader
	sessionID string

	topK       int
	ragHistory int
}

// New creates a Pipeline. All collaborators are required except search and
// history, which may be nil when the corresponding flow is unused (tests).
func New(sp SchemaProvider, completer llm.ChatCompleter, exec SQLExecutor, confirm Confirmer, search Searcher, hist HistoryReader, sessionID string) *Pipeline {
	return &Pipeline{
		schema:     sp,
		llm:        completer,
		exec:       exec,
		confirm:    confirm,
		search:     search,
		history:    hist,
		sessionID:  sessionID,
		topK:       ragTopK,
		ragHistory: ragHistoryLimit,
	}
}

// Tune overrides the retrieval settings. Non-positive values keep the
// defaults.
func (p *Pipeline) Tune(topK, ragHistory int) {
	if topK > 0 {
		p.topK = topK
	}
	if ragHistory > 0 {
		p.ragHistory = ragHistory
	}
}

// GenerateSQL produces a guard-approved statement for the question, without
// executing it. The returned string is exactly what classification saw.
func (p *Pipeline) GenerateSQL(ctx context.Context, question string) (string, error) {
	desc, err := p.schema.Describe(ctx)
	if err != nil {
		return "", apperrors.Wrap(apperrors.UpstreamUnavailable, "schema introspection failed", err)
	}

	raw, err := p.llm.Chat(ctx, prompt.BuildSQL(desc.Render(), question), llm.ChatOptions{
		Temperature: sqlTemperature,
		MaxTokens:   sqlMaxTokens,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.UpstreamUnavailable, "LLM request failed", err)
	}

	sql := Sanitize(raw)

	res := guard.Classify(sql)
	if !res.Allowed {
		// Surfaced verbatim. No auto-repair, no re-query: retrying a
		// rejected write is itself an injection vector.
		return "", apperrors.New(apperrors.SecurityRejected, res.Detail)
	}
	return sql, nil
}

// Run executes the full SQL flow for a question: generate, confirm, execute.
// Declining the confirmation returns a Cancelled error and leaves the
// database untouched.
func (p *Pipeline) Run(ctx context.Context, question string) (*db.Result, error) {
	sql, err := p.GenerateSQL(ctx, question)
	if err != nil {
		return nil, err
	}

	if !p.confirm.Confirm(sql) {
		return nil, apperrors.New(apperrors.Cancelled, "query cancelled")
	}

	// The exact validated string, unmodified.
	res, err := p.exec.Query(ctx, sql)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ExecutionFailed, "query execution failed", err)
	}
	return res, nil
}

// Answer runs the RAG flow: retrieve top documents, short-circuit when the
// knowledge base is empty, otherwise answer from the retrieved context and
// recent history.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	scored, err := p.search.Search(ctx, question, p.topK)
	if err != nil {
		return "", apperrors.Wrap(apperrors.UpstreamUnavailable, "knowledge base search failed", err)
	}
	if len(scored) == 0 {
		return NoRelevantInfo, nil
	}

	docs := make([]prompt.RetrievedDoc, len(scored))
	for i, s := range scored {
		docs[i] = prompt.RetrievedDoc{Content: s.Document.Content, Similarity: s.Similarity}
	}

	hist, err := p.recentHistory(ctx, p.ragHistory)
	if err != nil {
		return "", err
	}

	answer, err := p.llm.Chat(ctx, prompt.BuildRAG(docs, hist, question), llm.ChatOptions{
		Temperature: ragTemperature,
		MaxTokens:   ragMaxTokens,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.UpstreamUnavailable, "LLM request failed", err)
	}
	return answer, nil
}

// ChatReply runs the general conversation flow with recent history as context.
func (p *Pipeline) ChatReply(ctx context.Context, message string) (string, error) {
	hist, err := p.recentHistory(ctx, chatHistoryLimit)
	if err != nil {
		return "", err
	}

	reply, err := p.llm.Chat(ctx, prompt.BuildChat(hist, message), llm.ChatOptions{
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.UpstreamUnavailable, "LLM request failed", err)
	}
	return reply, nil
}

func (p *Pipeline) recentHistory(ctx context.Context, limit int) ([]prompt.HistoryEntry, error) {
	if p.history == nil {
		return nil, nil
	}
	msgs, err := p.history.Recent(ctx, p.sessionID, limit)
	if err != nil {
		// History is context, not the answer; a read failure degrades to an
		// empty history block rather than failing the flow.
		return nil, nil
	}
	entries := make([]prompt.HistoryEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = prompt.HistoryEntry{Role: m.Role, Content: m.Content}
	}
	return entries, nil
}

// Sanitize trims the model output and strips a Markdown code fence if the
// response begins with one, by dropping the first and last lines. The fence
// marker is treated as a literal three-character prefix.
func Sanitize(raw string) string {
	out := strings.TrimSpace(raw)
	if strings.HasPrefix(out, "```") {
		lines := strings.Split(out, "\n")
		if len(lines) >= 2 {
			out = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return strings.TrimSpace(out)
}
