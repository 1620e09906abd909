package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss-metrics/joss-pipeline/internal/collector"
	"github.com/joss-metrics/joss-pipeline/internal/domain"
	"github.com/joss-metrics/joss-pipeline/internal/gateway"
	"github.com/joss-metrics/joss-pipeline/internal/store"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collects bot-authored issues into per-issue JSON files",
	Long: `Pages through the target repository's issue list, filters to issues
opened by the configured bot account, and writes each match to
<out-dir>/issue_<N>.json. Existing files are left untouched unless
--overwrite is set, so repeated runs are idempotent.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger(cmd)

		owner, _ := cmd.Flags().GetString("owner")
		repo, _ := cmd.Flags().GetString("repo")
		bot, _ := cmd.Flags().GetString("bot")
		outDir, _ := cmd.Flags().GetString("out-dir")
		state, _ := cmd.Flags().GetString("state")
		perPage, _ := cmd.Flags().GetInt("per-page")
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
			fmt.Fprintln(os.Stderr, "Set it before running, e.g.: export GITHUB_TOKEN='ghp_...'")
			os.Exit(1)
		}

		if state != "open" && state != "closed" && state != "all" {
			fmt.Fprintf(os.Stderr, "Invalid --state %q: must be open, closed or all.\n", state)
			os.Exit(1)
		}
		if perPage != 100 {
			logger.Printf("Project requirement is per-page=100. You set %d.", perPage)
		}

		source, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}

		c := collector.New(source, store.NewRawStore(outDir), logger)
		totals, err := c.Collect(ctx, collector.Options{
			Target:    domain.RepoTarget{Owner: owner, Name: repo},
			Bot:       bot,
			State:     state,
			PerPage:   perPage,
			MaxPages:  maxPages,
			Overwrite: overwrite,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Collected %s/%s: fetched=%d matched=%d written=%d\n",
			owner, repo, totals.Fetched, totals.Matched, totals.Written)
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().String("owner", "openjournals", "Target GitHub owner/org")
	collectCmd.Flags().String("repo", "joss-reviews", "Target GitHub repository name")
	collectCmd.Flags().String("bot", "editorialbot", "User login to filter on")
	collectCmd.Flags().String("out-dir", "data/raw/openjournals_joss-reviews/issues", "Output directory for issue JSON files")
	collectCmd.Flags().String("state", "all", "Issue state filter (open, closed or all)")
	collectCmd.Flags().Int("per-page", 100, "Items per page (GitHub max is 100)")
	collectCmd.Flags().Int("max-pages", 0, "Maximum number of pages to fetch (0 = no limit)")
	collectCmd.Flags().Bool("overwrite", false, "Overwrite existing issue files")
}
