// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package prompt assembles the deterministic message sequences sent to the
// chat-completion endpoint. There are three distinct tasks: SQL generation,
// RAG answering, and general conversation; each gets its own system prompt
// and user-message layout so the model's role is fixed per task.
package prompt

import (
	"fmt"
	"strings"
)

// Message roles in the chat-completion shape.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievedDoc is a knowledge-base document selected for a RAG answer.
type RetrievedDoc struct {
	Content    string
	Similarity float64
}

// HistoryEntry is one prior chat turn, rendered into the compact
// "role: content" history block.
type HistoryEntry struct {
	Role    string
	Content string
}

const (
	sqlSystemPrompt  = "You are a helpful SQL expert assistant."
	ragSystemPrompt  = "You are a helpful assistant with access to a knowledge base."
	chatSystemPrompt = "You are a helpful assistant for a database chat system. You can help users understand their data, answer questions, and provide guidance."
)

// BuildSQL constructs the message pair for SQL generation. The schema text
// grounds the model in the actual catalog, and the trailing instruction pins
// the output format so the sanitizer has little to strip.
func BuildSQL(schemaText, question string) []Message {
	user := fmt.Sprintf(`You are a SQL expert. Given the following database schema and user question, generate a valid PostgreSQL query.

%s

User Question: %s

Generate ONLY the SQL query, without any explanation or markdown formatting. The query should be ready to execute.
`, schemaText, question)

	return []Message{
		{Role: RoleSystem, Content: sqlSystemPrompt},
		{Role: RoleUser, Content: user},
	}
}

// BuildRAG constructs the message pair for answering from retrieved documents.
// Documents are labelled with ordinals, history is rendered chronologically
// (oldest first) as role:content lines, and the model is instructed to answer
// from the given context.
func BuildRAG(docs []RetrievedDoc, history []HistoryEntry, question string) []Message {
	var ctx strings.Builder
	for i, d := range docs {
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		fmt.Fprintf(&ctx, "Document %d: %s", i+1, d.Content)
	}

	user := fmt.Sprintf(`Based on the following information, answer the user's question.

Context from knowledge base:
%s

Recent conversation:
%s

User Question: %s

Provide a helpful and accurate answer based on the context provided.
`, ctx.String(), renderHistory(history), question)

	return []Message{
		{Role: RoleSystem, Content: ragSystemPrompt},
		{Role: RoleUser, Content: user},
	}
}

// BuildChat constructs the message list for general conversation: the chat
// system prompt, the prior turns verbatim, then the current user message.
func BuildChat(history []HistoryEntry, question string) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: chatSystemPrompt})
	for _, h := range history {
		messages = append(messages, Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, Message{Role: RoleUser, Content: question})
	return messages
}

func renderHistory(history []HistoryEntry) string {
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, h.Role+": "+h.Content)
	}
	return strings.Join(lines, "\n")
}
