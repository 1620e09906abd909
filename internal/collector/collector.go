// Package collector paginates a repository's issue list, filters to issues
// opened by the configured bot account, and persists each match exactly once.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
	"github.com/joss-metrics/joss-pipeline/internal/gateway"
	"github.com/joss-metrics/joss-pipeline/internal/store"
)

// sourceName tags every raw item with its origin.
const sourceName = "github"

// Options configures one collection run.
type Options struct {
	Target    domain.RepoTarget
	Bot       string
	State     string // "open", "closed" or "all"
	PerPage   int
	MaxPages  int // 0 means no limit
	Overwrite bool
}

// Totals reports what a collection run did.
type Totals struct {
	Fetched int
	Matched int
	Written int
}

// Collector is the use case for harvesting bot-authored issues into the raw
// store. It is strictly sequential: one page at a time, one write at a time.
type Collector struct {
	source gateway.IssueSource
	store  *store.RawStore
	logger *log.Logger
	now    func() time.Time
}

// New creates a collector. The store must not be shared with a concurrent
// collector run; that is a caller responsibility.
func New(source gateway.IssueSource, st *store.RawStore, logger *log.Logger) *Collector {
	return &Collector{
		source: source,
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Collect fetches successive pages sorted by creation time descending until a
// page comes back shorter than PerPage or MaxPages is reached. Matching
// issues are persisted under their issue number; existing files are skipped
// unless Overwrite is set, so re-runs against unchanged remote state write
// nothing.
func (c *Collector) Collect(ctx context.Context, opts Options) (Totals, error) {
	var totals Totals

	c.logger.Printf("Starting collection for %s (bot=%s).", opts.Target.FullName(), opts.Bot)
	c.logger.Printf("Output directory: %s", c.store.Dir())

	// Advisory pre-flight: the search API knows the total up front, which
	// makes long runs easier to follow. Collection does not depend on it.
	if total, err := c.source.CountAuthoredIssues(ctx, opts.Target, opts.Bot); err != nil {
		c.logger.Printf("Issue count pre-flight failed (continuing): %v", err)
	} else {
		c.logger.Printf("Search reports %d issues by %s in %s.", total, opts.Bot, opts.Target.FullName())
	}

	page := 1
	for {
		issues, err := c.source.ListIssuesPage(ctx, opts.Target, opts.State, page, opts.PerPage)
		if err != nil {
			return totals, err
		}
		if len(issues) == 0 {
			break
		}
		totals.Fetched += len(issues)

		matched, written := 0, 0
		for _, issue := range issues {
			if issue.GetUser().GetLogin() != opts.Bot {
				continue
			}
			matched++

			number := issue.GetNumber()
			if number == 0 {
				continue
			}

			raw, err := json.Marshal(issue)
			if err != nil {
				return totals, fmt.Errorf("failed to encode issue #%d: %w", number, err)
			}
			item := domain.RawItem{
				FetchedAt:  c.now().UTC().Truncate(time.Second).Format(time.RFC3339),
				Issue:      raw,
				Repository: opts.Target.FullName(),
				Source:     sourceName,
			}

			ok, err := c.store.Write(number, item, opts.Overwrite)
			if err != nil {
				return totals, err
			}
			if ok {
				written++
			}
		}
		totals.Matched += matched
		totals.Written += written

		c.logger.Printf("Page %d: fetched=%d matched=%d written=%d (total_written=%d)",
			page, len(issues), matched, written, totals.Written)

		if len(issues) < opts.PerPage {
			break
		}
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			c.logger.Printf("Reached max-pages=%d; stopping early.", opts.MaxPages)
			break
		}
		page++
	}

	c.logger.Printf("Done. total_fetched=%d total_matched=%d total_written=%d",
		totals.Fetched, totals.Matched, totals.Written)
	return totals, nil
}
