package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantgrid/oppscan/internal/contracts"
)

var scanDryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the top picks",
	Long: `Runs the full pipeline once: load universe, filter, score, rank,
persist and (if enabled) notify. Prints the ranked top picks.

Example:
  go run ./cmd/oppscan scan
  go run ./cmd/oppscan scan --dry-run`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "use in-memory stores, nothing is persisted")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := buildApp(scanDryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.runner.Run(context.Background(), contracts.RunTypeManual)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printRunResult(result)
	return nil
}

func printRunResult(result *contracts.RunResult) {
	fmt.Printf("\nRun %s (%s) — %s\n", result.RunID, result.RunType, result.State)
	fmt.Printf("Universe: %d, passed filters: %d, skipped: %d\n",
		result.UniverseSize, result.PassedFilterCount, len(result.Skipped))

	if len(result.FilteredOut) > 0 {
		var parts []string
		for name, count := range result.FilteredOut {
			parts = append(parts, fmt.Sprintf("%s=%d", name, count))
		}
		fmt.Printf("Filtered out: %s\n", strings.Join(parts, ", "))
	}

	if len(result.TopN) == 0 {
		fmt.Println("\nNo picks.")
		return
	}

	fmt.Printf("\n%-4s %-12s %8s %8s  %s\n", "Rank", "Symbol", "Score", "P/E", "Top reason")
	for _, pick := range result.TopN {
		reason := ""
		if len(pick.Reasons) > 0 {
			reason = pick.Reasons[0]
		}
		fmt.Printf("%-4d %-12s %8.1f %8.1f  %s\n",
			pick.Rank, pick.Symbol, pick.FinalScore, pick.PE, reason)
	}
}
