// Copyright (c) 2025 dbchat
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dbchat/cli/internal/dsn"
	"dbchat/cli/internal/keychain"
)

// credential describes one keychain entry the setup flow manages.
type credential struct {
	key    string
	prompt string
	secret bool
}

// credentials lists the entries in setup/display order.
var credentials = []credential{
	{key: keychain.KeyDBDSN, prompt: "PostgreSQL DSN", secret: true},
	{key: keychain.KeyLLMAPIKey, prompt: "LLM API Key", secret: true},
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage secrets stored in the OS keychain",
	Long: `The credentials command manages the secrets dbchat keeps in the OS keychain:
the database DSN and the LLM API key. Run without a subcommand to start the
interactive setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setupCredentials()
	},
}

var credentialsSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively store credentials in the keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setupCredentials()
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials without showing values",
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return keychainUnavailable(err)
		}

		pterm.DefaultSection.Println("Stored Credentials")
		for _, cred := range credentials {
			if _, err := km.Get(cred.key); err == nil {
				pterm.Success.Println(cred.prompt + ": ********")
			} else {
				pterm.Println("✗ " + cred.prompt + ": Not set")
			}
		}
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete all stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("⚠️  Delete all stored credentials? (yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(line), "yes") {
			pterm.Println("Cancelled")
			return nil
		}

		km, err := keychain.GetManager()
		if err != nil {
			return keychainUnavailable(err)
		}
		if err := km.ClearAll(); err != nil {
			return err
		}
		pterm.Success.Println("All credentials deleted")
		return nil
	},
}

func setupCredentials() error {
	km, err := keychain.GetManager()
	if err != nil {
		return keychainUnavailable(err)
	}

	pterm.DefaultSection.Println("Secure Credential Setup")
	pterm.Println("Credentials will be stored in your system keychain under the service " + keychain.ServiceName + ".")
	pterm.Println()

	reader := bufio.NewReader(os.Stdin)
	for _, cred := range credentials {
		value, err := promptCredential(reader, cred)
		if err != nil {
			return err
		}
		if value == "" {
			pterm.Println(pterm.FgGray.Sprint("  skipped " + cred.prompt))
			continue
		}

		// DSNs are normalized before storage so later connections do not
		// trip over unescaped special characters.
		if cred.key == keychain.KeyDBDSN {
			value, err = dsn.Parse(value)
			if err != nil {
				return err
			}
		}

		if err := km.Set(cred.key, value); err != nil {
			return fmt.Errorf("store %s: %w", cred.prompt, err)
		}
		pterm.Success.Println("Stored " + cred.prompt)
	}

	pterm.Println()
	pterm.Success.Println("Setup complete")
	return nil
}

// promptCredential reads one value, without echo for secrets. Empty input
// leaves the existing entry untouched.
func promptCredential(reader *bufio.Reader, cred credential) (string, error) {
	fmt.Print(cred.prompt + " (leave empty to skip): ")

	if cred.secret && term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func keychainUnavailable(err error) error {
	pterm.Error.Println("Secure storage is not available on this system")
	pterm.Println("   Keychain is only supported on macOS and Windows")
	pterm.Println("   Use DBCHAT_DSN and DBCHAT_LLM_API_KEY environment variables instead")
	return err
}

func init() {
	credentialsCmd.AddCommand(credentialsSetupCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}
