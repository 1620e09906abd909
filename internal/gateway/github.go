// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/joss-metrics/joss-pipeline/internal/domain"
)

// resetMargin is added on top of the reported rate-limit reset time before
// retrying, so the quota is guaranteed to have been replenished.
const resetMargin = 5 * time.Second

// maxErrorBody caps the response excerpt carried in transport errors.
const maxErrorBody = 500

// IssueSource defines the behavior of a gateway for fetching issues from GitHub.
type IssueSource interface {
	// ListIssuesPage fetches one page of issues sorted by creation time
	// descending. A page shorter than perPage signals the last page.
	ListIssuesPage(ctx context.Context, target domain.RepoTarget, state string, page, perPage int) ([]*github.Issue, error)
	// CountAuthoredIssues returns the total number of issues opened by
	// author in the target repository, via the search API.
	CountAuthoredIssues(ctx context.Context, target domain.RepoTarget, author string) (int, error)
}

// GitHubGateway is the concrete implementation of the IssueSource interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	clock         Clock
	logger        *log.Logger
}

// issueCountQuery asks the search API for the total matching issue count.
type issueCountQuery struct {
	Search struct {
		IssueCount githubv4.Int
	} `graphql:"search(query: $query, type: ISSUE, first: 1)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// The underlying transport waits out GitHub's secondary rate limits; primary
// rate limits surface to ListIssuesPage so its wait-and-retry policy applies.
func NewGitHubGateway(token string, logger *log.Logger) (IssueSource, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		clock:         realClock{},
		logger:        logger,
	}, nil
}

// ListIssuesPage fetches a single page of issues for the target repository.
// On a primary rate-limit response it sleeps until the reported reset time
// plus a small margin and retries the same page exactly once; a second
// rate-limit response, like every other non-2xx response, is fatal.
func (g *GitHubGateway) ListIssuesPage(ctx context.Context, target domain.RepoTarget, state string, page, perPage int) ([]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:     state,
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	issues, resp, err := g.restClient.Issues.ListByRepo(ctx, target.Owner, target.Name, opts)
	if err != nil {
		var rateErr *github.RateLimitError
		if !errors.As(err, &rateErr) {
			return nil, apiError(err)
		}

		reset := rateErr.Rate.Reset.Time
		sleepFor := reset.Sub(g.clock.Now()) + resetMargin
		if sleepFor < resetMargin {
			sleepFor = resetMargin
		}
		g.logger.Printf("Rate limited. Sleeping %s until %s.", sleepFor.Round(time.Second), reset.UTC().Format(time.RFC3339))
		g.clock.Sleep(sleepFor)

		issues, resp, err = g.restClient.Issues.ListByRepo(ctx, target.Owner, target.Name, opts)
		if err != nil {
			if errors.As(err, &rateErr) {
				return nil, fmt.Errorf("still rate limited after waiting for reset (page %d): %w", page, err)
			}
			return nil, apiError(err)
		}
	}

	g.logger.Printf("Fetched page %d (%s). %s", page, target.FullName(), rateLimitStatus(resp))
	return issues, nil
}

// CountAuthoredIssues returns the search API's total issue count for the
// author in the target repository.
func (g *GitHubGateway) CountAuthoredIssues(ctx context.Context, target domain.RepoTarget, author string) (int, error) {
	query := fmt.Sprintf("repo:%s author:%s is:issue", target.FullName(), author)
	variables := map[string]interface{}{"query": githubv4.String(query)}

	var q issueCountQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return 0, fmt.Errorf("failed to execute GraphQL query for issue count: %w", err)
	}
	return int(q.Search.IssueCount), nil
}

// apiError turns a go-github error into a diagnosable transport error
// carrying the status code and a truncated message body.
func apiError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		msg := ghErr.Message
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return fmt.Errorf("github api error %d for %s: %s", ghErr.Response.StatusCode, ghErr.Response.Request.URL, msg)
	}
	return fmt.Errorf("failed to list issues: %w", err)
}

// rateLimitStatus formats the rate-limit headers of a response for logging.
func rateLimitStatus(resp *github.Response) string {
	if resp == nil {
		return "rate-limit: unknown"
	}
	rate := resp.Rate
	if rate.Limit == 0 {
		return "rate-limit: unknown"
	}
	return fmt.Sprintf("rate-limit: %d/%d (resets %s)", rate.Remaining, rate.Limit, rate.Reset.UTC().Format(time.RFC3339))
}
