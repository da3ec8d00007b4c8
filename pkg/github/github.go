// Package github provides GitHub API client operations.
//
// The client is a thin wrapper around google/go-github returning native API
// types; translation into the canonical model lives in the provider adapter.
package github

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"
)

// ErrTokenRequired is returned when the client is constructed without a token.
var ErrTokenRequired = errors.New("a GitHub access token is required")

const maxPerPage = 100

// Client represents a GitHub API client wrapper.
type Client struct {
	client *github.Client
}

// NewClient creates a new GitHub client authenticating with the given
// personal access token.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &Client{client: github.NewClient(tc)}, nil
}

// CurrentUser returns the user owning the access token.
func (c *Client) CurrentUser(ctx context.Context) (*github.User, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated user: %w", err)
	}
	return user, nil
}

// ListRepositories returns all repositories visible to the token.
func (c *Client) ListRepositories(ctx context.Context) ([]*github.Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		ListOptions: github.ListOptions{PerPage: maxPerPage},
	}

	var all []*github.Repository
	for {
		repos, resp, err := c.client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", err)
		}
		all = append(all, repos...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetPullRequest fetches a single pull request.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}
	return pr, nil
}

// ListReviews returns all reviews on a pull request in submission order.
func (c *Client) ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	opts := &github.ListOptions{PerPage: maxPerPage}

	var all []*github.PullRequestReview
	for {
		reviews, resp, err := c.client.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews: %w", err)
		}
		all = append(all, reviews...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListCheckRuns returns all check runs for a commit ref.
func (c *Client) ListCheckRuns(ctx context.Context, owner, repo, ref string) ([]*github.CheckRun, error) {
	opts := &github.ListCheckRunsOptions{
		ListOptions: github.ListOptions{PerPage: maxPerPage},
	}

	var all []*github.CheckRun
	for {
		result, resp, err := c.client.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list check runs: %w", err)
		}
		all = append(all, result.CheckRuns...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListFiles returns all changed files of a pull request in API order.
func (c *Client) ListFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error) {
	opts := &github.ListOptions{PerPage: maxPerPage}

	var all []*github.CommitFile
	for {
		files, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull request files: %w", err)
		}
		all = append(all, files...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// MergePullRequest merges a pull request using the specified merge method
// ("merge", "squash", or "rebase").
func (c *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, mergeMethod string) (*github.PullRequestMergeResult, error) {
	options := &github.PullRequestOptions{MergeMethod: mergeMethod}

	result, _, err := c.client.PullRequests.Merge(ctx, owner, repo, number, "", options)
	if err != nil {
		return nil, fmt.Errorf("failed to merge pull request: %w", err)
	}
	return result, nil
}

// DeleteBranch deletes a branch from the remote repository.
func (c *Client) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	if _, err := c.client.Git.DeleteRef(ctx, owner, repo, "heads/"+branch); err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}
	return nil
}
