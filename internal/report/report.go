// Package report aggregates normalized submissions into per-year counts and
// renders a summary table, time-to-close statistics and bar charts.
package report

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
)

const (
	openedPlotName = "open_issues_per_year.png"
	closedPlotName = "closed_issues_per_year.png"
)

// secondsPerDay converts unix-second durations into days.
const secondsPerDay = 24 * 60 * 60

// CountOpenedPerYear buckets submissions by the UTC calendar year they were
// opened.
func CountOpenedPerYear(submissions []domain.Submission) map[int]int {
	return countPerYear(submissions, func(s domain.Submission) int64 { return s.Opened }, false)
}

// CountClosedPerYear buckets submissions by the UTC calendar year they were
// closed. The Closed == 0 sentinel (never closed) is excluded entirely.
func CountClosedPerYear(submissions []domain.Submission) map[int]int {
	return countPerYear(submissions, func(s domain.Submission) int64 { return s.Closed }, true)
}

func countPerYear(submissions []domain.Submission, pick func(domain.Submission) int64, skipZero bool) map[int]int {
	counts := make(map[int]int)
	for _, s := range submissions {
		ts := pick(s)
		if skipZero && ts == 0 {
			continue
		}
		counts[time.Unix(ts, 0).UTC().Year()]++
	}
	return counts
}

// Reporter renders the aggregation outputs.
type Reporter struct {
	logger *log.Logger
	out    io.Writer
}

// New creates a reporter writing its tables to out.
func New(logger *log.Logger, out io.Writer) *Reporter {
	return &Reporter{logger: logger, out: out}
}

// Run produces the per-year table, close-time statistics and one bar chart
// per bucket set under plotDir. An empty opened bucket set fails before any
// output. An empty closed bucket set still produces the opened outputs and
// then fails loudly, so incomplete upstream data is never masked.
func (r *Reporter) Run(submissions []domain.Submission, plotDir string) error {
	opened := CountOpenedPerYear(submissions)
	if len(opened) == 0 {
		return fmt.Errorf("no opened submissions to report: run collect and normalize first")
	}
	closed := CountClosedPerYear(submissions)

	r.logger.Printf("Loaded %d submissions (opened years=%d closed years=%d).",
		len(submissions), len(opened), len(closed))

	r.renderTable(opened, closed)
	r.renderCloseStats(submissions)

	if err := os.MkdirAll(plotDir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory %s: %w", plotDir, err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		return plotCounts(opened, "Issues opened per year", "Opened issues", filepath.Join(plotDir, openedPlotName))
	})
	if len(closed) > 0 {
		eg.Go(func() error {
			return plotCounts(closed, "Issues closed per year", "Closed issues", filepath.Join(plotDir, closedPlotName))
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	r.logger.Printf("Wrote plots to %s", plotDir)

	if len(closed) == 0 {
		return fmt.Errorf("no closed submissions to plot (Closed == 0 everywhere); opened outputs were still produced")
	}
	return nil
}

// renderTable prints the opened/closed counts per year.
func (r *Reporter) renderTable(opened, closed map[int]int) {
	years := map[int]bool{}
	for y := range opened {
		years[y] = true
	}
	for y := range closed {
		years[y] = true
	}

	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	totalOpened, totalClosed := 0, 0
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.AppendHeader(table.Row{"Year", "Opened", "Closed"})
	for _, y := range sorted {
		t.AppendRow(table.Row{y, opened[y], closed[y]})
		totalOpened += opened[y]
		totalClosed += closed[y]
	}
	t.AppendFooter(table.Row{"Total", totalOpened, totalClosed})
	t.Render()
}

// renderCloseStats prints mean/median/p90 time-to-close across all closed
// submissions. Nothing is printed when no submission has been closed.
func (r *Reporter) renderCloseStats(submissions []domain.Submission) {
	durations := make([]float64, 0, len(submissions))
	for _, s := range submissions {
		if s.Closed == 0 || s.Closed < s.Opened {
			continue
		}
		durations = append(durations, float64(s.Closed-s.Opened)/secondsPerDay)
	}
	if len(durations) == 0 {
		return
	}

	mean, err := stats.Mean(durations)
	if err != nil {
		r.logger.Printf("Failed to compute close-time mean: %v", err)
		return
	}
	median, err := stats.Median(durations)
	if err != nil {
		r.logger.Printf("Failed to compute close-time median: %v", err)
		return
	}
	p90, err := stats.Percentile(durations, 90)
	if err != nil {
		r.logger.Printf("Failed to compute close-time p90: %v", err)
		return
	}

	fmt.Fprintf(r.out, "Time to close (days): mean=%.1f median=%.1f p90=%.1f (n=%d)\n",
		mean, median, p90, len(durations))
}

// plotCounts renders one bar chart of counts per year.
func plotCounts(counts map[int]int, title, ylabel, path string) error {
	years := make([]int, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	sort.Ints(years)

	values := make(plotter.Values, len(years))
	labels := make([]string, len(years))
	for i, y := range years {
		values[i] = float64(counts[y])
		labels[i] = strconv.Itoa(y)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Year"
	p.Y.Label.Text = ylabel

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("failed to build bar chart %q: %w", title, err)
	}
	p.Add(bars)
	p.NominalX(labels...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
