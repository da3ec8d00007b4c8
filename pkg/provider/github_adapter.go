package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v69/github"
	"github.com/sgaunet/bullets"

	"github.com/prampel/prampel/pkg/diff"
	ghclient "github.com/prampel/prampel/pkg/github"
	"github.com/prampel/prampel/pkg/model"
)

// GitHubAdapter wraps a GitHub client to implement the [Provider] interface.
// It owns the mapping from GitHub's native vocabulary (check run states,
// review states, file statuses) to the canonical model.
type GitHubAdapter struct {
	client  *ghclient.Client
	timeout time.Duration
	log     *bullets.Logger
}

// NewGitHubAdapter creates a new GitHub adapter.
func NewGitHubAdapter(client *ghclient.Client, timeout time.Duration, log *bullets.Logger) *GitHubAdapter {
	return &GitHubAdapter{
		client:  client,
		timeout: timeout,
		log:     log,
	}
}

// ValidateCredentials verifies the token against the authenticated-user
// endpoint.
func (a *GitHubAdapter) ValidateCredentials(ctx context.Context) (*model.TokenValidation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return nil, translateGitHubError(err)
	}
	return &model.TokenValidation{Username: user.GetLogin()}, nil
}

// ListRepositories returns the repositories visible to the token.
func (a *GitHubAdapter) ListRepositories(ctx context.Context) ([]model.DiscoveredRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	repos, err := a.client.ListRepositories(ctx)
	if err != nil {
		return nil, translateGitHubError(err)
	}

	discovered := make([]model.DiscoveredRepository, len(repos))
	for i, r := range repos {
		discovered[i] = model.DiscoveredRepository{
			Provider:      model.ProviderGitHub,
			Owner:         r.GetOwner().GetLogin(),
			Name:          r.GetName(),
			FullName:      r.GetFullName(),
			Private:       r.GetPrivate(),
			DefaultBranch: r.GetDefaultBranch(),
		}
	}
	return discovered, nil
}

// GetPullRequest fetches and normalizes one pull request including its
// reviews and check runs.
func (a *GitHubAdapter) GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (*model.PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	pr, err := a.client.GetPullRequest(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateGitHubError(err)
	}

	reviews, err := a.client.ListReviews(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateGitHubError(err)
	}

	checks, err := a.client.ListCheckRuns(ctx, repo.Owner, repo.Name, pr.GetHead().GetSHA())
	if err != nil {
		return nil, translateGitHubError(err)
	}

	canonical := &model.PullRequest{
		ID:            model.PRRef{Repo: repo, Number: number}.String(),
		Provider:      model.ProviderGitHub,
		RepositoryID:  repo.ID(),
		Number:        number,
		Title:         pr.GetTitle(),
		Author:        pr.GetUser().GetLogin(),
		SourceBranch:  pr.GetHead().GetRef(),
		TargetBranch:  pr.GetBase().GetRef(),
		IsDraft:       pr.GetDraft(),
		HasConflicts:  pr.GetMergeableState() == "dirty",
		Mergeable:     mergeableTristate(pr.Mergeable),
		Additions:     pr.GetAdditions(),
		Deletions:     pr.GetDeletions(),
		CommentsCount: pr.GetComments() + pr.GetReviewComments(),
	}

	for _, check := range checks {
		canonical.CiChecks = append(canonical.CiChecks, mapGitHubCheckRun(check))
	}
	for _, review := range reviews {
		state, ok := mapGitHubReviewState(review.GetState())
		if !ok {
			continue // pending reviews have not been submitted yet
		}
		canonical.Reviews = append(canonical.Reviews, model.Review{
			Author: review.GetUser().GetLogin(),
			State:  state,
		})
	}

	return canonical, nil
}

// GetPullRequestDiff returns the normalized file diff of a pull request.
func (a *GitHubAdapter) GetPullRequestDiff(ctx context.Context, repo model.RepoRef, number int) ([]model.DiffFile, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	files, err := a.client.ListFiles(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateGitHubError(err)
	}

	normalized := make([]model.DiffFile, len(files))
	for i, f := range files {
		fileStatus, known := MapGitHubFileStatus(f.GetStatus())
		if !known {
			a.log.Warnf("unmapped GitHub file status %q on %s, defaulting to modified", f.GetStatus(), f.GetFilename())
		}

		df := model.DiffFile{
			FilePath:  f.GetFilename(),
			Status:    fileStatus,
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.GetPatch(),
		}
		if fileStatus == model.FileRenamed {
			df.PreviousFilename = f.GetPreviousFilename()
		}
		diff.Finalize(&df)
		normalized[i] = df
	}
	return normalized, nil
}

// MergePullRequest merges a pull request. GitHub accepts the canonical
// strategy names directly. When deleteBranch is set the source branch is
// removed after a successful merge; deletion failures are logged, not fatal.
func (a *GitHubAdapter) MergePullRequest(ctx context.Context, repo model.RepoRef, number int, strategy model.MergeStrategy, deleteBranch bool) (*model.MergeOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var sourceBranch string
	if deleteBranch {
		pr, err := a.client.GetPullRequest(ctx, repo.Owner, repo.Name, number)
		if err != nil {
			return nil, translateGitHubError(err)
		}
		sourceBranch = pr.GetHead().GetRef()
	}

	result, err := a.client.MergePullRequest(ctx, repo.Owner, repo.Name, number, string(strategy))
	if err != nil {
		return nil, translateGitHubError(err)
	}

	if deleteBranch && sourceBranch != "" {
		a.log.Infof("deleting remote branch: %s", sourceBranch)
		if err := a.client.DeleteBranch(ctx, repo.Owner, repo.Name, sourceBranch); err != nil {
			a.log.Warnf("failed to delete remote branch: %v", err)
			// Branch deletion failing must not fail the merge itself.
		}
	}

	return &model.MergeOutcome{
		Merged:  result.GetMerged(),
		SHA:     result.GetSHA(),
		Message: result.GetMessage(),
	}, nil
}

// Name returns "GitHub".
func (a *GitHubAdapter) Name() string {
	return "GitHub"
}

// MapGitHubFileStatus maps GitHub's native file status to the canonical
// enum. The second return is false when the value was outside the known set
// and the modified fallback was applied.
func MapGitHubFileStatus(native string) (model.FileStatus, bool) {
	switch native {
	case "added":
		return model.FileAdded, true
	case "modified":
		return model.FileModified, true
	case "removed":
		return model.FileDeleted, true
	case "renamed":
		return model.FileRenamed, true
	case "copied":
		return model.FileCopied, true
	case "unchanged":
		return model.FileUnchanged, true
	default:
		return model.FileModified, false
	}
}

// mapGitHubCheckRun maps a check run to a canonical CI check. GitHub's
// status values match the canonical set 1:1; conclusions are folded into
// {success, failure, timed_out}.
func mapGitHubCheckRun(check *github.CheckRun) model.CiCheck {
	ci := model.CiCheck{Name: check.GetName()}

	switch check.GetStatus() {
	case "queued":
		ci.Status = model.CheckQueued
	case "in_progress":
		ci.Status = model.CheckInProgress
	default:
		ci.Status = model.CheckCompleted
	}

	if ci.Status == model.CheckCompleted {
		switch check.GetConclusion() {
		case "success", "neutral", "skipped":
			ci.Conclusion = model.CheckConclusionSuccess
		case "timed_out":
			ci.Conclusion = model.CheckConclusionTimedOut
		case "":
			ci.Conclusion = model.CheckConclusionNone
		default:
			// failure, cancelled, action_required, stale
			ci.Conclusion = model.CheckConclusionFailure
		}
	}
	return ci
}

// mapGitHubReviewState maps a submitted review state. Pending reviews return
// ok=false and are skipped.
func mapGitHubReviewState(native string) (model.ReviewState, bool) {
	switch strings.ToUpper(native) {
	case "APPROVED":
		return model.ReviewApproved, true
	case "CHANGES_REQUESTED":
		return model.ReviewChangesRequested, true
	case "COMMENTED", "DISMISSED":
		return model.ReviewCommented, true
	case "PENDING":
		return "", false
	default:
		return model.ReviewCommented, true
	}
}

func mergeableTristate(mergeable *bool) model.Tristate {
	switch {
	case mergeable == nil:
		return model.TristateUnknown
	case *mergeable:
		return model.TristateYes
	default:
		return model.TristateNo
	}
}

// translateGitHubError converts go-github failures into the provider error
// taxonomy.
func translateGitHubError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{RetryAfter: time.Until(rateErr.Rate.Reset.Time)}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var retryAfter time.Duration
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, respErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, respErr.Message)
		case http.StatusMethodNotAllowed, http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", ErrConflict, respErr.Message)
		case http.StatusTooManyRequests:
			return &RateLimitError{}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", ErrNetwork)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// Compile-time interface check.
var _ Provider = (*GitHubAdapter)(nil)
