// Package gitlab provides GitLab API client operations.
//
// The client is a thin wrapper around the official client-go returning native
// API types; translation into the canonical model lives in the provider
// adapter.
package gitlab

import (
	"context"
	"errors"
	"fmt"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ErrTokenRequired is returned when the client is constructed without a token.
var ErrTokenRequired = errors.New("a GitLab access token is required")

const maxPerPage = 100

// Client represents a GitLab API client wrapper.
type Client struct {
	client *gitlab.Client
}

// NewClient creates a new GitLab client authenticating with the given
// personal access token.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	client, err := gitlab.NewClient(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}
	return &Client{client: client}, nil
}

// CurrentUser returns the user owning the access token.
func (c *Client) CurrentUser(ctx context.Context) (*gitlab.User, error) {
	user, _, err := c.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return user, nil
}

// ListProjects returns all projects the token's user is a member of.
func (c *Client) ListProjects(ctx context.Context) ([]*gitlab.Project, error) {
	opts := &gitlab.ListProjectsOptions{
		Membership:  gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{PerPage: maxPerPage},
	}

	var all []*gitlab.Project
	for {
		projects, resp, err := c.client.Projects.ListProjects(opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		all = append(all, projects...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetMergeRequest fetches a single merge request of a project. The project
// is addressed by its "namespace/name" path.
func (c *Client) GetMergeRequest(ctx context.Context, projectPath string, iid int) (*gitlab.MergeRequest, error) {
	mr, _, err := c.client.MergeRequests.GetMergeRequest(projectPath, iid,
		&gitlab.GetMergeRequestsOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get merge request: %w", err)
	}
	return mr, nil
}

// GetApprovals returns the approval state of a merge request.
func (c *Client) GetApprovals(ctx context.Context, projectPath string, iid int) (*gitlab.MergeRequestApprovals, error) {
	approvals, _, err := c.client.MergeRequestApprovals.GetConfiguration(projectPath, iid,
		gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get merge request approvals: %w", err)
	}
	return approvals, nil
}

// ListDiffs returns all diffs of a merge request in API order.
func (c *Client) ListDiffs(ctx context.Context, projectPath string, iid int) ([]*gitlab.MergeRequestDiff, error) {
	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: maxPerPage},
	}

	var all []*gitlab.MergeRequestDiff
	for {
		diffs, resp, err := c.client.MergeRequests.ListMergeRequestDiffs(projectPath, iid,
			opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list merge request diffs: %w", err)
		}
		all = append(all, diffs...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// AcceptMergeRequest merges a merge request. Squash and source branch
// removal are passed through to the API.
func (c *Client) AcceptMergeRequest(ctx context.Context, projectPath string, iid int, squash, removeSourceBranch bool) (*gitlab.MergeRequest, error) {
	opts := &gitlab.AcceptMergeRequestOptions{
		Squash:                   gitlab.Ptr(squash),
		ShouldRemoveSourceBranch: gitlab.Ptr(removeSourceBranch),
	}

	mr, _, err := c.client.MergeRequests.AcceptMergeRequest(projectPath, iid, opts,
		gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to merge MR: %w", err)
	}
	return mr, nil
}
