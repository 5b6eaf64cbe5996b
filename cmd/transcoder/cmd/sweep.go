package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evict empty, stale and excess cache entries once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctrl, err := newController(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		report, err := ctrl.Sweep()
		if err != nil {
			return err
		}
		for _, name := range report.Removed {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "removed %d entries, freed %s, %s remaining\n",
			len(report.Removed), humanize.IBytes(uint64(report.Freed)), humanize.IBytes(uint64(report.Remaining)))
		return nil
	},
}

func init() {
	sweepCmd.Flags().Duration("max-age", 0, "evict entries unused for longer (overrides cache.max_age)")
	sweepCmd.Flags().String("max-size", "", "evict oldest entries above this size (overrides cache.max_size)")
	mustBindPFlag("cache.max_age", sweepCmd.Flags().Lookup("max-age"))
	mustBindPFlag("cache.max_size", sweepCmd.Flags().Lookup("max-size"))
	rootCmd.AddCommand(sweepCmd)
}
