// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dbchat/cli/internal/app"
	"dbchat/cli/internal/logging"
)

// embedCmd backfills embeddings for knowledge-base documents that do not
// have one yet. The chat command runs the same backfill at startup; this
// standalone version is useful after bulk-loading documents.
var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for knowledge-base documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		stop := startInlineSpinner(os.Stdout, "generating embeddings", []string{"-", "\\", "|", "/"}, 100*time.Millisecond)
		n, err := a.Retriever.Backfill(ctx)
		stop()
		if err != nil {
			pterm.Error.Println(logging.PresentError("embedding backfill failed", err))
			return err
		}

		if n == 0 {
			pterm.Println("All documents already have embeddings")
		} else {
			pterm.Success.Printf("Generated embeddings for %d documents\n", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}
