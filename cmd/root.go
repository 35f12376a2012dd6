// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for dbchat.
// It implements subcommands for the interactive chat session, database
// connection management and credential storage using the Cobra CLI framework,
// with a terminal UI built on pterm.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "dbchat",
	Short:         "Conversational interface to a PostgreSQL database",
	Long:          `dbchat is a command-line tool that answers questions about a PostgreSQL database using a local LLM: it generates read-only SQL from natural language, answers knowledge-base questions via retrieval, and holds general conversation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("dbchat %s\n", Version)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
}
