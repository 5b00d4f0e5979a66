// Command searchctl inspects and converts Doxygen search directories.
//
// Usage:
//
//	searchctl validate html/search --strict
//	searchctl query html/search "call conv" --mode fulltext
//	searchctl snapshot html/search mimicpp.dsx --codec zstd
//	searchctl stats mimicpp.dsx
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "searchctl",
		Short:         "Inspect, query and convert Doxygen search data",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newValidateCmd(),
		newQueryCmd(),
		newRenderCmd(),
		newSnapshotCmd(),
		newStatsCmd(),
		newEncodeCmd(),
		newDecodeCmd(),
	)
	return root
}
