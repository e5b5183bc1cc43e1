// Package main provides the entry point for the B2B migration agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "migrate_agent",
	Short: "B2B integration migration agent",
	Long:  "Migrates integration configuration artifacts from a legacy B2B platform export into a target platform via its REST API, with a reviewable artifact ledger in between.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
