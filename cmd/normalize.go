package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss-metrics/joss-pipeline/internal/normalizer"
	"github.com/joss-metrics/joss-pipeline/internal/parser"
	"github.com/joss-metrics/joss-pipeline/internal/store"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalizes raw issue files into one submissions JSON file",
	Long: `Reads every issue_<N>.json file produced by collect, extracts a
structured submission record from each issue body, and writes the full list
to a single JSON file, replacing any previous output. Items that fail
validation are counted and skipped; items the body parser rejects are
counted as failed. Neither aborts the run.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)

		inDir, _ := cmd.Flags().GetString("in-dir")
		outFile, _ := cmd.Flags().GetString("out-file")

		n := normalizer.New(store.NewRawStore(inDir), parser.NewMarkerParser(), logger)
		result, err := n.Normalize()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Normalization failed: %v\n", err)
			os.Exit(1)
		}

		if err := store.WriteSubmissions(outFile, result.Submissions); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write submissions: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Wrote %d normalized submissions to %s (skipped=%d failed=%d)\n",
			len(result.Submissions), outFile, result.Skipped, result.Failed)
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().String("in-dir", "data/raw/openjournals_joss-reviews/issues", "Directory containing issue_<N>.json files from collect")
	normalizeCmd.Flags().String("out-file", "data/derived/joss_submissions.json", "Output JSON file (list of normalized submissions)")
}
