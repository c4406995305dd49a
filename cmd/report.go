package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/scanhub/pkg/store"
)

var (
	reportBaseline string
	reportCurrent  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compare a findings snapshot against a baseline",
	Run: func(cmd *cobra.Command, args []string) {
		current := store.New()
		if err := current.LoadSnapshot(reportCurrent); err != nil {
			fmt.Printf("Error loading snapshot '%s': %v\n", reportCurrent, err)
			return
		}

		baseline := store.New()
		if err := baseline.LoadSnapshot(reportBaseline); err != nil {
			fmt.Printf("Error loading baseline snapshot '%s': %v. Have you saved a snapshot before?\n", reportBaseline, err)
			return
		}

		diff := current.CompareSnapshot(baseline)

		fmt.Printf("Snapshot Comparison (vs %s):\n", reportBaseline)
		fmt.Println("--------------------------------------------------")

		fmt.Printf("NEW RISKS: %d\n", len(diff.New))
		for _, f := range diff.New {
			fmt.Printf("  [+] [%s] %s (%s) - %s\n", f.Severity, f.Title, f.Tool, f.Message)
		}
		fmt.Println()

		fmt.Printf("FIXED RISKS: %d\n", len(diff.Fixed))
		for _, f := range diff.Fixed {
			fmt.Printf("  [-] [%s] %s (%s) - %s\n", f.Severity, f.Title, f.Tool, f.Message)
		}
		fmt.Println()

		fmt.Printf("UNCHANGED RISKS: %d\n", len(diff.Unchanged))
		shown := diff.Unchanged
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, f := range shown {
			fmt.Printf("  [=] [%s] %s (%s) - %s\n", f.Severity, f.Title, f.Tool, f.Message)
		}
		if rest := len(diff.Unchanged) - len(shown); rest > 0 {
			fmt.Printf("  ... and %d more.\n", rest)
		}
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportCurrent, "snapshot", store.DefaultSnapshotPath, "Snapshot to report on")
	reportCmd.Flags().StringVar(&reportBaseline, "baseline", store.DefaultSnapshotPath, "Baseline snapshot to compare against")
	rootCmd.AddCommand(reportCmd)
}
