// Package bitbucket provides Bitbucket Cloud 2.0 API client operations.
//
// Unlike GitHub and GitLab there is no maintained official Go SDK, so the
// client speaks REST directly over hashicorp/go-retryablehttp. Transient 5xx
// and transport failures are retried at the HTTP layer; 429 responses are
// surfaced as APIError with RetryAfter so the caller's backoff policy owns
// rate-limit handling.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultBaseURL    = "https://api.bitbucket.org/2.0"
	transportRetryMax = 2
	maxPageLen        = 100
)

// Client represents a Bitbucket Cloud API client wrapper.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	password string
}

// NewClient creates a new Bitbucket client authenticating with a username
// and app password.
func NewClient(username, appPassword string) (*Client, error) {
	if username == "" || appPassword == "" {
		return nil, ErrCredentialsRequired
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = transportRetryMax
	rc.Logger = nil
	// 429 is not retried here; it must reach the caller as APIError with
	// RetryAfter so the merge backoff policy decides the wait.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Client{
		http:     rc.StandardClient(),
		baseURL:  defaultBaseURL,
		username: username,
		password: appPassword,
	}, nil
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// CurrentUser returns the account owning the app password.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, c.baseURL+"/user", &user); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &user, nil
}

// ListRepositories returns all repositories the account is a member of.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	url := fmt.Sprintf("%s/repositories?role=member&pagelen=%d", c.baseURL, maxPageLen)
	repos, err := listAll[Repository](ctx, c, url)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return repos, nil
}

// GetPullRequest fetches a single pull request including its participants.
func (c *Client) GetPullRequest(ctx context.Context, workspace, slug string, id int) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d", c.baseURL, workspace, slug, id)

	var pr PullRequest
	if err := c.getJSON(ctx, url, &pr); err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}
	return &pr, nil
}

// ListStatuses returns all commit statuses attached to a pull request.
func (c *Client) ListStatuses(ctx context.Context, workspace, slug string, id int) ([]CommitStatus, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/statuses?pagelen=%d",
		c.baseURL, workspace, slug, id, maxPageLen)

	statuses, err := listAll[CommitStatus](ctx, c, url)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull request statuses: %w", err)
	}
	return statuses, nil
}

// ListDiffStat returns the per-file diffstat of a pull request.
func (c *Client) ListDiffStat(ctx context.Context, workspace, slug string, id int) ([]DiffStatEntry, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/diffstat?pagelen=%d",
		c.baseURL, workspace, slug, id, maxPageLen)

	entries, err := listAll[DiffStatEntry](ctx, c, url)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull request diffstat: %w", err)
	}
	return entries, nil
}

// GetRawDiff returns the raw unified diff of a pull request.
func (c *Client) GetRawDiff(ctx context.Context, workspace, slug string, id int) (string, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/diff", c.baseURL, workspace, slug, id)

	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get pull request diff: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read diff body: %w", err)
	}
	return string(body), nil
}

// MergePullRequest merges a pull request. Strategy is one of merge_commit,
// squash, or fast_forward.
func (c *Client) MergePullRequest(ctx context.Context, workspace, slug string, id int, strategy string, closeSourceBranch bool) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/merge", c.baseURL, workspace, slug, id)

	payload := map[string]any{
		"type":                "pullrequest",
		"merge_strategy":      strategy,
		"close_source_branch": closeSourceBranch,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merge request body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to merge pull request: %w", err)
	}
	defer resp.Body.Close()

	var pr PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode merge response: %w", err)
	}
	return &pr, nil
}

// getJSON performs a GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do executes an authenticated request and converts non-2xx responses into
// *APIError.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer resp.Body.Close()
	return nil, apiError(resp)
}

// apiError builds an *APIError from a non-2xx response, extracting the
// error message and any Retry-After header.
func apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var errBody struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
		apiErr.Message = errBody.Error.Message
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			apiErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}

	return apiErr
}

// listAll follows the paginated collection starting at url until the last
// page.
func listAll[T any](ctx context.Context, c *Client, url string) ([]T, error) {
	var all []T
	for url != "" {
		var p page[T]
		if err := c.getJSON(ctx, url, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Values...)
		url = p.Next
	}
	return all, nil
}
