// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dbchat/cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change non-secret settings",
	Long: `The config command manages the non-secret settings stored in the config file
(LLM server URL, model names, retrieval tuning). Secrets are managed with
'dbchat credentials' instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and write it to the config file. Keys:

  llm.base_url         LLM server root URL
  llm.model            chat model name
  llm.embedding_model  embedding model name
  rag.top_k            documents retrieved per question
  rag.history_limit    history messages included in RAG prompts
  log_level            log verbosity`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}

		key, value := args[0], args[1]
		switch key {
		case "llm.base_url":
			c.LLM.BaseURL = value
		case "llm.model":
			c.LLM.Model = value
		case "llm.embedding_model":
			c.LLM.EmbeddingModel = value
		case "rag.top_k":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("rag.top_k must be a positive integer, got %q", value)
			}
			c.RAG.TopK = n
		case "rag.history_limit":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("rag.history_limit must be a positive integer, got %q", value)
			}
			c.RAG.HistoryLimit = n
		case "log_level":
			c.LogLevel = value
		default:
			return fmt.Errorf("unknown setting %q", key)
		}

		if err := config.Save(c); err != nil {
			return err
		}
		pterm.Success.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

func showConfig() error {
	c, err := config.Load()
	if err != nil {
		return err
	}

	data := pterm.TableData{
		{"Setting", "Value"},
		{"llm.base_url", c.LLM.BaseURL},
		{"llm.model", c.LLM.Model},
		{"llm.embedding_model", c.LLM.EmbeddingModel},
		{"rag.top_k", strconv.Itoa(c.RAG.TopK)},
		{"rag.history_limit", strconv.Itoa(c.RAG.HistoryLimit)},
		{"log_level", c.LogLevel},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
