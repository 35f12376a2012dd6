// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dbchat/cli/internal/app"
	apperrors "dbchat/cli/internal/errors"
	"dbchat/cli/internal/logging"
	"dbchat/cli/internal/pipeline"
)

// historyDisplayLimit caps the /history listing.
const historyDisplayLimit = 20

// rowDisplayLimit caps how many result rows are rendered in the table.
const rowDisplayLimit = 50

// sqlKeywords trigger SQL mode when a bare message mentions one of them.
var sqlKeywords = []string{"show", "list", "how many", "count", "total", "find", "get", "customers", "products", "orders"}

// chatCmd starts the interactive session combining SQL generation, retrieval
// and general conversation.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session with the database",
	Long: `The chat command opens an interactive session. Messages prefixed with /sql,
/ask or /chat pick a mode explicitly; bare messages are routed by a keyword
heuristic. Generated SQL is validated against a read-only guard and only
executed after confirmation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		s := &chatSession{app: a, in: bufio.NewReader(os.Stdin)}
		return s.run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatSession holds the state of one interactive run.
type chatSession struct {
	app *app.App
	in  *bufio.Reader
}

func (s *chatSession) run(ctx context.Context) error {
	pterm.DefaultBox.Println(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("dbchat - Conversational Database Interface"))

	// Verify the inference server before entering the loop.
	stop := spin("checking LLM server")
	err := s.app.LLM.Ping(ctx)
	stop()
	if err != nil {
		pterm.Println(logging.FormatUpstreamError(err.Error()))
		return apperrors.Wrap(apperrors.UpstreamUnavailable, "LLM server connection failed", err)
	}
	pterm.Success.Println("LLM server connected")

	// Embed any knowledge-base documents added since the last session.
	stop = spin("generating embeddings")
	n, err := s.app.Retriever.Backfill(ctx)
	stop()
	if err != nil {
		pterm.Warning.Println(logging.PresentError("embedding backfill failed", err))
	} else if n > 0 {
		pterm.Success.Printf("Generated embeddings for %d documents\n", n)
	}

	pterm.Println()
	pterm.Println(pterm.FgGray.Sprint("Session ID: " + s.app.SessionID))
	pterm.Println(pterm.FgGray.Sprint("Type /help for commands or just start chatting!"))
	pterm.Println()

	pipe := s.app.Pipeline(s)

	for {
		fmt.Print("You: ")
		line, err := s.in.ReadString('\n')
		if err != nil {
			// EOF or closed stdin ends the session
			pterm.Println()
			pterm.Println(pterm.FgCyan.Sprint("Goodbye!"))
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := s.dispatch(ctx, pipe, input); quit {
				pterm.Println(pterm.FgCyan.Sprint("Goodbye!"))
				return nil
			}
		} else {
			s.saveMessage(ctx, "user", input)
			if looksLikeSQLQuestion(input) {
				s.handleSQL(ctx, pipe, input)
			} else {
				s.handleChat(ctx, pipe, input)
			}
		}

		pterm.Println()
	}
}

// dispatch handles a slash command. It returns true when the session should end.
func (s *chatSession) dispatch(ctx context.Context, pipe *pipeline.Pipeline, input string) bool {
	command, content := splitCommand(input)

	switch command {
	case "/quit", "/exit":
		return true
	case "/help":
		printHelp()
	case "/sql":
		if content == "" {
			pterm.Warning.Println("Usage: /sql <your question>")
			return false
		}
		s.saveMessage(ctx, "user", input)
		s.handleSQL(ctx, pipe, content)
	case "/ask":
		if content == "" {
			pterm.Warning.Println("Usage: /ask <your question>")
			return false
		}
		s.saveMessage(ctx, "user", input)
		s.handleAsk(ctx, pipe, content)
	case "/chat":
		if content == "" {
			pterm.Warning.Println("Usage: /chat <your message>")
			return false
		}
		s.saveMessage(ctx, "user", content)
		s.handleChat(ctx, pipe, content)
	case "/history":
		s.printHistory(ctx)
	case "/schema":
		s.printSchema(ctx)
	default:
		pterm.Error.Println("Unknown command: " + command)
		pterm.Println(pterm.FgGray.Sprint("Type /help for available commands"))
	}
	return false
}

// Confirm shows the generated statement and asks for approval. It implements
// pipeline.Confirmer.
func (s *chatSession) Confirm(sql string) bool {
	pterm.Println()
	pterm.Println(pterm.FgYellow.Sprint("Generated Query:"))
	pterm.DefaultBox.Println(sql)

	fmt.Print("\nExecute this query? (y/n): ")
	line, err := s.in.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func (s *chatSession) handleSQL(ctx context.Context, pipe *pipeline.Pipeline, question string) {
	pterm.Println()
	pterm.Println(pterm.FgCyan.Sprint("Generating SQL query..."))

	result, err := pipe.Run(ctx, question)
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.Cancelled:
			pterm.Println(pterm.FgGray.Sprint("Query cancelled"))
		case apperrors.SecurityRejected:
			pterm.Error.Println(logging.PresentError("Query rejected", err))
		case apperrors.UpstreamUnavailable:
			pterm.Println(logging.FormatUpstreamError(err.Error()))
		default:
			pterm.Error.Println(logging.PresentError("Error", err))
		}
		return
	}

	renderResult(result.Columns, result.Rows)
}

func (s *chatSession) handleAsk(ctx context.Context, pipe *pipeline.Pipeline, question string) {
	pterm.Println()
	pterm.Println(pterm.FgCyan.Sprint("Searching knowledge base..."))

	stop := spin("thinking")
	answer, err := pipe.Answer(ctx, question)
	stop()
	if err != nil {
		pterm.Error.Println(logging.PresentError("Error", err))
		return
	}

	pterm.Println()
	pterm.Println(pterm.FgGreen.Sprint("Answer:"))
	pterm.Println(answer)
}

func (s *chatSession) handleChat(ctx context.Context, pipe *pipeline.Pipeline, message string) {
	pterm.Println()
	stop := spin("thinking")
	reply, err := pipe.ChatReply(ctx, message)
	stop()
	if err != nil {
		pterm.Error.Println(logging.PresentError("Error", err))
		return
	}

	pterm.Println()
	pterm.Println(pterm.FgGreen.Sprint("Assistant:"))
	pterm.Println(reply)

	s.saveMessage(ctx, "assistant", reply)
}

func (s *chatSession) printHistory(ctx context.Context) {
	msgs, err := s.app.History.Recent(ctx, s.app.SessionID, historyDisplayLimit)
	if err != nil {
		pterm.Error.Println(logging.PresentError("Error", err))
		return
	}

	pterm.Println()
	pterm.Println(pterm.FgCyan.Sprint("Recent Chat History:"))
	for _, m := range msgs {
		content := truncate(m.Content, 100)
		pterm.Println(pterm.Bold.Sprint(titleRole(m.Role)+":") + " " + content)
	}
}

func (s *chatSession) printSchema(ctx context.Context) {
	desc, err := s.app.Schema.Describe(ctx)
	if err != nil {
		pterm.Error.Println(logging.PresentError("Error", err))
		return
	}
	pterm.DefaultBox.Println(desc.Render())
	pterm.Println(pterm.FgGray.Sprint(fmt.Sprintf("%d tables", len(desc.Tables()))))
}

// saveMessage persists one chat turn. Failures are reported as warnings and
// never interrupt the session.
func (s *chatSession) saveMessage(ctx context.Context, role, content string) {
	if err := s.app.History.Append(ctx, s.app.SessionID, role, content); err != nil {
		warn := apperrors.Wrap(apperrors.PersistenceWarning, "could not save chat message", err)
		pterm.Warning.Println(logging.Mask(warn.Error()))
	}
}

// renderResult prints query results as a table, capped at rowDisplayLimit rows.
func renderResult(columns []string, rows [][]any) {
	if len(rows) == 0 {
		pterm.Println()
		pterm.Println(pterm.FgYellow.Sprint("Query returned no results"))
		return
	}

	data := pterm.TableData{columns}
	limit := len(rows)
	if limit > rowDisplayLimit {
		limit = rowDisplayLimit
	}
	for _, row := range rows[:limit] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		data = append(data, cells)
	}

	pterm.Println()
	pterm.Println(pterm.FgGreen.Sprint("Query Results:"))
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(logging.PresentError("could not render table", err))
	}

	if len(rows) > rowDisplayLimit {
		pterm.Println()
		pterm.Println(pterm.FgGray.Sprint(fmt.Sprintf("Showing %d of %d rows", rowDisplayLimit, len(rows))))
	}
}

// looksLikeSQLQuestion routes bare messages: anything mentioning data-ish
// keywords goes to SQL mode, the rest to conversation.
func looksLikeSQLQuestion(input string) bool {
	lower := strings.ToLower(input)
	for _, kw := range sqlKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// truncate shortens content to at most n runes, appending an ellipsis when
// anything was cut. Truncating on runes keeps multibyte characters intact.
func truncate(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "..."
}

func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

func splitCommand(input string) (command, content string) {
	parts := strings.SplitN(input, " ", 2)
	command = strings.ToLower(parts[0])
	if len(parts) > 1 {
		content = strings.TrimSpace(parts[1])
	}
	return command, content
}

func printHelp() {
	pterm.DefaultSection.Println("Commands")
	pterm.Println("  /sql <question>   Generate and execute a SQL query")
	pterm.Println("  /ask <question>   Ask about policies/info using the knowledge base")
	pterm.Println("  /chat <message>   General conversation")
	pterm.Println("  /history          Show chat history")
	pterm.Println("  /schema           Show database schema")
	pterm.Println("  /help             Show this help")
	pterm.Println("  /quit or /exit    Exit the application")
	pterm.Println()
	pterm.DefaultSection.Println("Default Mode")
	pterm.Println("  Without a command prefix, database-looking questions go to SQL mode,")
	pterm.Println("  everything else to chat mode.")
	pterm.Println()
	pterm.DefaultSection.Println("Examples")
	pterm.Println("  /sql Show me all customers who spent more than $1000")
	pterm.Println("  /ask What is your return policy?")
	pterm.Println("  /chat Can you explain how to use this system?")
	pterm.Println("  How many products are in stock?")
}

// spin starts the inline spinner with the cursor hidden and returns a stop func.
func spin(text string) func() {
	cursor.Hide()
	stop := startInlineSpinner(os.Stdout, text, []string{"-", "\\", "|", "/"}, 100*time.Millisecond)
	return func() {
		stop()
		cursor.Show()
	}
}
