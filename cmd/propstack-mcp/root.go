package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "propstack-mcp",
	Short: "MCP adapter for the Propstack real-estate CRM",
	Long: "propstack-mcp lets an AI agent operate a Propstack CRM through MCP tools:\n" +
		"contact/property/deal/task operations plus property matching and\npipeline reporting built on a resilient API client.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
