// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package prompt

import (
	"strings"
	"testing"
)

func TestBuildSQL(t *testing.T) {
	schema := "Database Schema:\n\nTable: users\n  - id: integer (NOT NULL)\n"
	msgs := BuildSQL(schema, "how many users are there?")

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleSystem {
		t.Errorf("first message role = %q, want %q", msgs[0].Role, RoleSystem)
	}
	if msgs[1].Role != RoleUser {
		t.Errorf("second message role = %q, want %q", msgs[1].Role, RoleUser)
	}
	if !strings.Contains(msgs[1].Content, schema) {
		t.Error("user message does not embed the schema text")
	}
	if !strings.Contains(msgs[1].Content, "how many users are there?") {
		t.Error("user message does not embed the question")
	}
	if !strings.Contains(msgs[1].Content, "ONLY the SQL query") {
		t.Error("user message is missing the output-format instruction")
	}

	// Same inputs must yield the same messages.
	again := BuildSQL(schema, "how many users are there?")
	for i := range msgs {
		if msgs[i] != again[i] {
			t.Errorf("message %d differs across identical calls", i)
		}
	}
}

func TestBuildRAG(t *testing.T) {
	docs := []RetrievedDoc{
		{Content: "Refunds are accepted within 30 days.", Similarity: 0.91},
		{Content: "Shipping takes 3-5 business days.", Similarity: 0.78},
	}
	history := []HistoryEntry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello, how can I help?"},
	}
	msgs := BuildRAG(docs, history, "what is the refund policy?")

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	body := msgs[1].Content
	if !strings.Contains(body, "Document 1: Refunds are accepted within 30 days.") {
		t.Error("first document is missing its ordinal label")
	}
	if !strings.Contains(body, "Document 2: Shipping takes 3-5 business days.") {
		t.Error("second document is missing its ordinal label")
	}
	if !strings.Contains(body, "user: hi\nassistant: hello, how can I help?") {
		t.Error("history block is not chronological role:content lines")
	}
	if !strings.Contains(body, "User Question: what is the refund policy?") {
		t.Error("question missing from user message")
	}
}

func TestBuildRAGDocumentOrderPreserved(t *testing.T) {
	docs := []RetrievedDoc{
		{Content: "first"},
		{Content: "second"},
		{Content: "third"},
	}
	body := BuildRAG(docs, nil, "q")[1].Content
	i1 := strings.Index(body, "Document 1: first")
	i2 := strings.Index(body, "Document 2: second")
	i3 := strings.Index(body, "Document 3: third")
	if i1 < 0 || i2 < 0 || i3 < 0 || !(i1 < i2 && i2 < i3) {
		t.Errorf("documents out of order: indexes %d %d %d", i1, i2, i3)
	}
}

func TestBuildChat(t *testing.T) {
	history := []HistoryEntry{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
	}
	msgs := BuildChat(history, "second question")

	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[0].Role != RoleSystem {
		t.Errorf("first message role = %q, want %q", msgs[0].Role, RoleSystem)
	}
	if msgs[1].Content != "first question" || msgs[2].Content != "first answer" {
		t.Error("history turns not carried verbatim in order")
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleUser || last.Content != "second question" {
		t.Errorf("last message = %+v, want current user question", last)
	}
}

func TestBuildChatNoHistory(t *testing.T) {
	msgs := BuildChat(nil, "hello")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}
