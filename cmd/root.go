package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/scanhub/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "scanhub",
	Short: "Scan orchestration hub with AI-enriched findings",
	Long: `Scanhub coordinates asynchronous security and compliance scans run by
remote tools, normalizes their results into one canonical finding shape,
and annotates the merged findings with AI-generated explanations.`,
}

var DebugMode bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(func() {
		logging.Init(DebugMode)
	})
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
}
