// Package parser extracts structured submission fields from the free-form
// issue bodies written by the editorial bot. The bodies embed paired HTML
// comment markers of the form <!--field-->value<!--end-field-->.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
)

// AuthorHandleMarker is the token that distinguishes genuine submission
// records from the bot's housekeeping issues.
const AuthorHandleMarker = "<!--author-handle-->"

// ErrUnrecognizedFormat reports a body whose marker grammar does not match.
var ErrUnrecognizedFormat = errors.New("unrecognized submission body format")

// Input carries everything the parser needs from one raw issue.
type Input struct {
	IssueNumber int
	Body        string
	CreatedAt   string
	ClosedAt    string // empty when the issue was never closed
	Labels      []string
}

// BodyParser turns an issue body plus metadata into a Submission. It fails
// with an error wrapping ErrUnrecognizedFormat when the marker grammar does
// not match, so the grammar can evolve without touching collection or I/O.
type BodyParser interface {
	Parse(in Input) (domain.Submission, error)
}

// MarkerParser is the BodyParser for the bot's current marker grammar.
type MarkerParser struct{}

// NewMarkerParser creates a parser for the paired-marker body format.
func NewMarkerParser() *MarkerParser {
	return &MarkerParser{}
}

// Parse extracts a Submission. The author handle is required; the target
// repository, editor, reviewers and version markers are optional. Timestamps
// must be RFC 3339; an absent closed timestamp encodes as Closed = 0.
func (p *MarkerParser) Parse(in Input) (domain.Submission, error) {
	opened, err := time.Parse(time.RFC3339, in.CreatedAt)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("issue #%d: invalid created_at %q: %w", in.IssueNumber, in.CreatedAt, err)
	}

	var closed int64
	if in.ClosedAt != "" {
		t, err := time.Parse(time.RFC3339, in.ClosedAt)
		if err != nil {
			return domain.Submission{}, fmt.Errorf("issue #%d: invalid closed_at %q: %w", in.IssueNumber, in.ClosedAt, err)
		}
		closed = t.Unix()
	}

	handle, ok := markerValue(in.Body, "author-handle")
	if !ok || handle == "" {
		return domain.Submission{}, fmt.Errorf("issue #%d: author-handle: %w", in.IssueNumber, ErrUnrecognizedFormat)
	}

	repo, _ := markerValue(in.Body, "target-repository")
	editor, _ := markerValue(in.Body, "editor")
	reviewers, _ := markerValue(in.Body, "reviewers-list")
	version, _ := markerValue(in.Body, "version")

	labels := in.Labels
	if labels == nil {
		labels = []string{}
	}

	return domain.Submission{
		AuthorHandle: strings.TrimPrefix(handle, "@"),
		Closed:       closed,
		Editor:       strings.TrimPrefix(editor, "@"),
		IssueNumber:  in.IssueNumber,
		Labels:       labels,
		Opened:       opened.Unix(),
		Repository:   repo,
		Reviewers:    splitHandles(reviewers),
		Version:      version,
	}, nil
}

// markerValue returns the trimmed text between <!--field--> and
// <!--end-field-->, reporting whether the pair was found.
func markerValue(body, field string) (string, bool) {
	start := "<!--" + field + "-->"
	end := "<!--end-" + field + "-->"

	i := strings.Index(body, start)
	if i < 0 {
		return "", false
	}
	rest := body[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// splitHandles splits a comma-separated reviewer list into bare handles.
func splitHandles(s string) []string {
	handles := []string{}
	for _, part := range strings.Split(s, ",") {
		h := strings.TrimPrefix(strings.TrimSpace(part), "@")
		if h != "" {
			handles = append(handles, h)
		}
	}
	return handles
}
