// Package main is the entry point for the dbchat CLI application.
// It provides a conversational interface to a PostgreSQL database.
package main

import (
	"dbchat/cli/cmd"
)

// main is the entry point for the dbchat CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
