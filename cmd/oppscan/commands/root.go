package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	rulesFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oppscan",
	Short: "oppscan - opportunity scanner for Indian small caps",
	Long: `oppscan scores and ranks equities from fundamentals, valuation,
corporate events and quality metrics, driven by a YAML rule set.

Usage:
  go run ./cmd/oppscan [command]

Examples:
  go run ./cmd/oppscan scan
  go run ./cmd/oppscan api
  go run ./cmd/oppscan scheduler
  go run ./cmd/oppscan migrate`,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "rules YAML path (default from RULES_PATH)")
}
