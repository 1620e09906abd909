package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss-metrics/joss-pipeline/internal/report"
	"github.com/joss-metrics/joss-pipeline/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reports per-year counts and charts from normalized submissions",
	Long: `Loads the submissions file produced by normalize, buckets opened and
closed timestamps by UTC calendar year, prints a per-year table with
time-to-close statistics, and writes one bar chart per bucket set. It is an
error for a requested bucket set to be empty; an empty chart would only
mask incomplete upstream data.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)

		inFile, _ := cmd.Flags().GetString("in-file")
		outDir, _ := cmd.Flags().GetString("out-dir")

		submissions, err := store.ReadSubmissions(inFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load submissions: %v\n", err)
			os.Exit(1)
		}

		reporter := report.New(logger, os.Stdout)
		if err := reporter.Run(submissions, outDir); err != nil {
			fmt.Fprintf(os.Stderr, "Report failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Wrote plots to %s\n", outDir)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("in-file", "data/derived/joss_submissions.json", "Input normalized submissions JSON (from normalize)")
	reportCmd.Flags().String("out-dir", "data/plots", "Directory to write PNG plots")
}
