// Package normalizer turns the collector's raw issue files into a single
// validated, deterministically ordered list of submissions.
package normalizer

import (
	"bytes"
	"encoding/json"
	"log"
	"path/filepath"
	"strings"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
	"github.com/joss-metrics/joss-pipeline/internal/parser"
	"github.com/joss-metrics/joss-pipeline/internal/store"
)

// rawIssue is the subset of the wrapped issue object the gates inspect.
// Pointer fields distinguish absent from zero.
type rawIssue struct {
	Number    *int    `json:"number"`
	Body      *string `json:"body"`
	CreatedAt *string `json:"created_at"`
	ClosedAt  *string `json:"closed_at"`
	Labels    []struct {
		Name *string `json:"name"`
	} `json:"labels"`
}

// Result is the outcome of one normalization run. Skipped counts items that
// failed a validation gate; Failed counts items the body parser rejected.
type Result struct {
	Submissions []domain.Submission
	Skipped     int
	Failed      int
}

// Normalizer is the use case for deriving submissions from the raw store.
type Normalizer struct {
	store  *store.RawStore
	parser parser.BodyParser
	logger *log.Logger
}

// New creates a normalizer reading from st and delegating body parsing to p.
func New(st *store.RawStore, p parser.BodyParser, logger *log.Logger) *Normalizer {
	return &Normalizer{store: st, parser: p, logger: logger}
}

// Normalize processes every raw issue file in lexicographic filename order.
// Per-item problems never abort the run: gate failures are skipped, parser
// rejections are failed, and both are counted and logged. The only fatal
// condition is a missing or unreadable input directory.
func (n *Normalizer) Normalize() (Result, error) {
	paths, err := n.store.List()
	if err != nil {
		return Result{}, err
	}
	n.logger.Printf("Found %d issue files in %s", len(paths), n.store.Dir())

	result := Result{Submissions: []domain.Submission{}}
	seen := make(map[int]bool)

	for _, path := range paths {
		name := filepath.Base(path)

		raw, err := n.store.Read(path)
		if err != nil {
			result.Skipped++
			n.logger.Printf("Skipping %s: %v", name, err)
			continue
		}

		issue, ok := decodeIssue(raw.Issue)
		if !ok {
			result.Skipped++
			continue
		}
		if issue.Body == nil || !strings.Contains(*issue.Body, parser.AuthorHandleMarker) {
			result.Skipped++
			continue
		}
		if issue.Number == nil || issue.CreatedAt == nil {
			result.Skipped++
			continue
		}
		if seen[*issue.Number] {
			result.Skipped++
			n.logger.Printf("Skipping %s: duplicate issue number %d", name, *issue.Number)
			continue
		}

		in := parser.Input{
			IssueNumber: *issue.Number,
			Body:        *issue.Body,
			CreatedAt:   *issue.CreatedAt,
			Labels:      labelNames(issue),
		}
		if issue.ClosedAt != nil {
			in.ClosedAt = *issue.ClosedAt
		}

		submission, err := n.parser.Parse(in)
		if err != nil {
			result.Failed++
			n.logger.Printf("Failed to parse %s: %v", name, err)
			continue
		}

		seen[*issue.Number] = true
		result.Submissions = append(result.Submissions, submission)
	}

	return result, nil
}

// decodeIssue unpacks the wrapped issue object, reporting false when the
// payload has no nested issue object at all.
func decodeIssue(raw json.RawMessage) (rawIssue, bool) {
	var issue rawIssue
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return issue, false
	}
	if err := json.Unmarshal(trimmed, &issue); err != nil {
		return issue, false
	}
	return issue, true
}

// labelNames extracts the label names in their original order.
func labelNames(issue rawIssue) []string {
	names := []string{}
	for _, label := range issue.Labels {
		if label.Name != nil {
			names = append(names, *label.Name)
		}
	}
	return names
}
