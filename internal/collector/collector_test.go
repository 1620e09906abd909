package collector

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
	"github.com/joss-metrics/joss-pipeline/internal/store"
)

// mockSource is a mock implementation of the gateway.IssueSource interface.
type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListIssuesPage(ctx context.Context, target domain.RepoTarget, state string, page, perPage int) ([]*github.Issue, error) {
	args := m.Called(ctx, target, state, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*github.Issue), args.Error(1)
}

func (m *mockSource) CountAuthoredIssues(ctx context.Context, target domain.RepoTarget, author string) (int, error) {
	args := m.Called(ctx, target, author)
	return args.Int(0), args.Error(1)
}

var testTarget = domain.RepoTarget{Owner: "openjournals", Name: "joss-reviews"}

func ghIssue(number int, login string) *github.Issue {
	return &github.Issue{
		Number:    github.Int(number),
		User:      &github.User{Login: github.String(login)},
		Body:      github.String("<!--author-handle-->@someone<!--end-author-handle-->"),
		CreatedAt: &github.Timestamp{Time: time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func newTestCollector(t *testing.T, source *mockSource) (*Collector, string) {
	dir := t.TempDir()
	c := New(source, store.NewRawStore(dir), log.New(io.Discard, "", 0))
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c, dir
}

func defaultOptions() Options {
	return Options{
		Target:  testTarget,
		Bot:     "editorialbot",
		State:   "all",
		PerPage: 2,
	}
}

func storedFiles(t *testing.T, dir string) []string {
	paths, err := filepath.Glob(filepath.Join(dir, "issue_*.json"))
	require.NoError(t, err)
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names
}

func TestCollector_PaginationAndFilter(t *testing.T) {
	testCases := []struct {
		name           string
		pages          [][]*github.Issue
		opts           func() Options
		expectedTotals Totals
		expectedFiles  []string
	}{
		{
			name: "terminates after first short page and persists only bot issues",
			pages: [][]*github.Issue{
				{ghIssue(10, "editorialbot"), ghIssue(9, "someone")},
				{ghIssue(8, "editorialbot")},
			},
			opts:           defaultOptions,
			expectedTotals: Totals{Fetched: 3, Matched: 2, Written: 2},
			expectedFiles:  []string{"issue_10.json", "issue_8.json"},
		},
		{
			name: "a page with zero matches does not terminate the run",
			pages: [][]*github.Issue{
				{ghIssue(10, "someone"), ghIssue(9, "someone-else")},
				{ghIssue(8, "editorialbot")},
			},
			opts:           defaultOptions,
			expectedTotals: Totals{Fetched: 3, Matched: 1, Written: 1},
			expectedFiles:  []string{"issue_8.json"},
		},
		{
			name: "max-pages ceiling stops a run even on full pages",
			pages: [][]*github.Issue{
				{ghIssue(10, "editorialbot"), ghIssue(9, "editorialbot")},
			},
			opts: func() Options {
				o := defaultOptions()
				o.MaxPages = 1
				return o
			},
			expectedTotals: Totals{Fetched: 2, Matched: 2, Written: 2},
			expectedFiles:  []string{"issue_10.json", "issue_9.json"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			source := new(mockSource)
			source.On("CountAuthoredIssues", mock.Anything, testTarget, "editorialbot").Return(99, nil)
			for i, page := range tc.pages {
				source.On("ListIssuesPage", mock.Anything, testTarget, "all", i+1, 2).Return(page, nil).Once()
			}
			c, dir := newTestCollector(t, source)

			totals, err := c.Collect(context.Background(), tc.opts())

			require.NoError(t, err)
			assert.Equal(t, tc.expectedTotals, totals)
			assert.Equal(t, tc.expectedFiles, storedFiles(t, dir))
			source.AssertExpectations(t)
		})
	}
}

func TestCollector_Idempotency(t *testing.T) {
	pages := [][]*github.Issue{
		{ghIssue(10, "editorialbot"), ghIssue(9, "editorialbot")},
		{},
	}
	setup := func() *mockSource {
		source := new(mockSource)
		source.On("CountAuthoredIssues", mock.Anything, testTarget, "editorialbot").Return(2, nil)
		source.On("ListIssuesPage", mock.Anything, testTarget, "all", 1, 2).Return(pages[0], nil).Once()
		source.On("ListIssuesPage", mock.Anything, testTarget, "all", 2, 2).Return(pages[1], nil).Once()
		return source
	}

	source := setup()
	c, dir := newTestCollector(t, source)

	first, err := c.Collect(context.Background(), defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Written)

	before, err := os.ReadFile(filepath.Join(dir, "issue_10.json"))
	require.NoError(t, err)

	// Second run against identical remote state: zero new writes, identical
	// on-disk contents.
	c2 := New(setup(), store.NewRawStore(dir), log.New(io.Discard, "", 0))
	c2.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

	second, err := c2.Collect(context.Background(), defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Fetched)
	assert.Zero(t, second.Written)

	after, err := os.ReadFile(filepath.Join(dir, "issue_10.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCollector_OverwriteReconciles(t *testing.T) {
	source := new(mockSource)
	source.On("CountAuthoredIssues", mock.Anything, testTarget, "editorialbot").Return(1, nil)
	source.On("ListIssuesPage", mock.Anything, testTarget, "all", 1, 2).Return([]*github.Issue{ghIssue(7, "editorialbot")}, nil).Twice()
	c, dir := newTestCollector(t, source)

	opts := defaultOptions()
	_, err := c.Collect(context.Background(), opts)
	require.NoError(t, err)

	// Locally corrupt the cached copy; overwrite restores the remote state.
	path := filepath.Join(dir, "issue_7.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	opts.Overwrite = true
	totals, err := c.Collect(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Written)

	item, err := store.NewRawStore(dir).Read(path)
	require.NoError(t, err)
	assert.Equal(t, "github", item.Source)
	assert.Equal(t, "openjournals/joss-reviews", item.Repository)
	assert.Equal(t, "2026-01-02T03:04:05Z", item.FetchedAt)
}

func TestCollector_PreflightFailureIsNotFatal(t *testing.T) {
	source := new(mockSource)
	source.On("CountAuthoredIssues", mock.Anything, testTarget, "editorialbot").Return(0, assert.AnError)
	source.On("ListIssuesPage", mock.Anything, testTarget, "all", 1, 2).Return([]*github.Issue{}, nil).Once()
	c, _ := newTestCollector(t, source)

	totals, err := c.Collect(context.Background(), defaultOptions())
	require.NoError(t, err)
	assert.Zero(t, totals.Fetched)
}

func TestCollector_TransportErrorAborts(t *testing.T) {
	source := new(mockSource)
	source.On("CountAuthoredIssues", mock.Anything, testTarget, "editorialbot").Return(1, nil)
	source.On("ListIssuesPage", mock.Anything, testTarget, "all", 1, 2).Return(nil, assert.AnError)
	c, dir := newTestCollector(t, source)

	_, err := c.Collect(context.Background(), defaultOptions())
	assert.Error(t, err)
	assert.Empty(t, storedFiles(t, dir))
}
