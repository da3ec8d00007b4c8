package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sgaunet/bullets"
	gogitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/prampel/prampel/pkg/diff"
	glclient "github.com/prampel/prampel/pkg/gitlab"
	"github.com/prampel/prampel/pkg/model"
)

// GitLabAdapter wraps a GitLab client to implement the [Provider] interface.
// GitLab reports file statuses as booleans and CI as a single head pipeline;
// both are normalized here.
type GitLabAdapter struct {
	client  *glclient.Client
	timeout time.Duration
	log     *bullets.Logger
}

// NewGitLabAdapter creates a new GitLab adapter.
func NewGitLabAdapter(client *glclient.Client, timeout time.Duration, log *bullets.Logger) *GitLabAdapter {
	return &GitLabAdapter{
		client:  client,
		timeout: timeout,
		log:     log,
	}
}

// ValidateCredentials verifies the token against the current-user endpoint.
func (a *GitLabAdapter) ValidateCredentials(ctx context.Context) (*model.TokenValidation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return nil, translateGitLabError(err)
	}
	return &model.TokenValidation{Username: user.Username}, nil
}

// ListRepositories returns the projects the token's user is a member of.
func (a *GitLabAdapter) ListRepositories(ctx context.Context) ([]model.DiscoveredRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	projects, err := a.client.ListProjects(ctx)
	if err != nil {
		return nil, translateGitLabError(err)
	}

	discovered := make([]model.DiscoveredRepository, len(projects))
	for i, p := range projects {
		owner, name := splitProjectPath(p.PathWithNamespace)
		discovered[i] = model.DiscoveredRepository{
			Provider:      model.ProviderGitLab,
			Owner:         owner,
			Name:          name,
			FullName:      p.PathWithNamespace,
			Private:       p.Visibility != gogitlab.PublicVisibility,
			DefaultBranch: p.DefaultBranch,
		}
	}
	return discovered, nil
}

// GetPullRequest fetches and normalizes one merge request, including its
// approvals and head pipeline. Line totals are counted from the diffs since
// GitLab does not report per-MR addition/deletion counts.
func (a *GitLabAdapter) GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (*model.PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	mr, err := a.client.GetMergeRequest(ctx, repo.Path(), number)
	if err != nil {
		return nil, translateGitLabError(err)
	}

	approvals, err := a.client.GetApprovals(ctx, repo.Path(), number)
	if err != nil {
		return nil, translateGitLabError(err)
	}

	diffs, err := a.client.ListDiffs(ctx, repo.Path(), number)
	if err != nil {
		return nil, translateGitLabError(err)
	}

	canonical := &model.PullRequest{
		ID:            model.PRRef{Repo: repo, Number: number}.String(),
		Provider:      model.ProviderGitLab,
		RepositoryID:  repo.ID(),
		Number:        number,
		Title:         mr.Title,
		SourceBranch:  mr.SourceBranch,
		TargetBranch:  mr.TargetBranch,
		IsDraft:       mr.Draft,
		HasConflicts:  mr.HasConflicts,
		Mergeable:     mapGitLabMergeStatus(mr.DetailedMergeStatus),
		CommentsCount: mr.UserNotesCount,
	}
	if mr.Author != nil {
		canonical.Author = mr.Author.Username
	}

	for _, d := range diffs {
		additions, deletions := diff.CountPatchLines(d.Diff)
		canonical.Additions += additions
		canonical.Deletions += deletions
	}

	if mr.HeadPipeline != nil {
		status, conclusion := mapGitLabPipelineStatus(mr.HeadPipeline.Status)
		canonical.CiChecks = append(canonical.CiChecks, model.CiCheck{
			Name:       "pipeline",
			Status:     status,
			Conclusion: conclusion,
		})
	}

	// GitLab models review feedback as approvals; there is no native
	// changes-requested state to map.
	for _, approver := range approvals.ApprovedBy {
		if approver.User == nil {
			continue
		}
		canonical.Reviews = append(canonical.Reviews, model.Review{
			Author: approver.User.Username,
			State:  model.ReviewApproved,
		})
	}

	return canonical, nil
}

// GetPullRequestDiff returns the normalized file diff of a merge request.
func (a *GitLabAdapter) GetPullRequestDiff(ctx context.Context, repo model.RepoRef, number int) ([]model.DiffFile, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	diffs, err := a.client.ListDiffs(ctx, repo.Path(), number)
	if err != nil {
		return nil, translateGitLabError(err)
	}

	normalized := make([]model.DiffFile, len(diffs))
	for i, d := range diffs {
		fileStatus := MapGitLabFileStatus(d.NewFile, d.DeletedFile, d.RenamedFile)

		additions, deletions := diff.CountPatchLines(d.Diff)
		df := model.DiffFile{
			FilePath:  d.NewPath,
			Status:    fileStatus,
			Additions: additions,
			Deletions: deletions,
			Patch:     d.Diff,
		}
		if fileStatus == model.FileDeleted {
			df.FilePath = d.OldPath
		}
		if fileStatus == model.FileRenamed {
			df.PreviousFilename = d.OldPath
		}
		diff.Finalize(&df)
		normalized[i] = df
	}
	return normalized, nil
}

// MergePullRequest merges a merge request. GitLab has no rebase merge
// strategy on the accept endpoint; rebase falls back to a plain merge
// (fast-forward behavior is a project setting).
func (a *GitLabAdapter) MergePullRequest(ctx context.Context, repo model.RepoRef, number int, strategy model.MergeStrategy, deleteBranch bool) (*model.MergeOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	squash := strategy == model.StrategySquash
	mr, err := a.client.AcceptMergeRequest(ctx, repo.Path(), number, squash, deleteBranch)
	if err != nil {
		return nil, translateGitLabError(err)
	}

	return &model.MergeOutcome{
		Merged:  mr.State == "merged",
		SHA:     mr.MergeCommitSHA,
		Message: mr.Title,
	}, nil
}

// Name returns "GitLab".
func (a *GitLabAdapter) Name() string {
	return "GitLab"
}

// MapGitLabFileStatus derives the canonical file status from GitLab's
// boolean flags. Anything not flagged is modified.
func MapGitLabFileStatus(newFile, deletedFile, renamedFile bool) model.FileStatus {
	switch {
	case newFile:
		return model.FileAdded
	case deletedFile:
		return model.FileDeleted
	case renamedFile:
		return model.FileRenamed
	default:
		return model.FileModified
	}
}

// mapGitLabPipelineStatus maps a pipeline status to a canonical check state.
func mapGitLabPipelineStatus(native string) (model.CheckStatus, model.CheckConclusion) {
	switch native {
	case "created", "pending", "preparing", "waiting_for_resource", "scheduled", "manual":
		return model.CheckQueued, model.CheckConclusionNone
	case "running":
		return model.CheckInProgress, model.CheckConclusionNone
	case "success", "skipped":
		return model.CheckCompleted, model.CheckConclusionSuccess
	case "failed", "canceled":
		return model.CheckCompleted, model.CheckConclusionFailure
	default:
		return model.CheckCompleted, model.CheckConclusionNone
	}
}

// mapGitLabMergeStatus maps detailed_merge_status to the mergeable tristate.
func mapGitLabMergeStatus(native string) model.Tristate {
	switch native {
	case "mergeable":
		return model.TristateYes
	case "", "checking", "unchecked":
		return model.TristateUnknown
	default:
		// conflict, broken_status, need_rebase, draft_status, ...
		return model.TristateNo
	}
}

func splitProjectPath(pathWithNamespace string) (owner, name string) {
	idx := strings.LastIndex(pathWithNamespace, "/")
	if idx < 0 {
		return "", pathWithNamespace
	}
	return pathWithNamespace[:idx], pathWithNamespace[idx+1:]
}

// translateGitLabError converts client-go failures into the provider error
// taxonomy.
func translateGitLabError(err error) error {
	if err == nil {
		return nil
	}

	var respErr *gogitlab.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, respErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, respErr.Message)
		case http.StatusMethodNotAllowed, http.StatusNotAcceptable, http.StatusConflict, http.StatusUnprocessableEntity:
			// 405/406 are GitLab's "cannot be merged" answers on accept.
			return fmt.Errorf("%w: %s", ErrConflict, respErr.Message)
		case http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: retryAfterHeader(respErr.Response)}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", ErrNetwork)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func retryAfterHeader(resp *http.Response) time.Duration {
	seconds, err := time.ParseDuration(resp.Header.Get("Retry-After") + "s")
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// Compile-time interface check.
var _ Provider = (*GitLabAdapter)(nil)
