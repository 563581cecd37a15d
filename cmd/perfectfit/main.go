// Package main provides the perfectfit command: the hiring platform API
// server, the scoring worker and operator tooling.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "perfectfit",
	Short:        "Hiring platform backend",
	Long:         "perfectfit runs the job role approval workflow, candidate applications and AI-scored technical assessments behind a REST API.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
