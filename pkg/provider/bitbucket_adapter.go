package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sgaunet/bullets"

	"github.com/prampel/prampel/pkg/bitbucket"
	"github.com/prampel/prampel/pkg/diff"
	"github.com/prampel/prampel/pkg/model"
)

// BitbucketAdapter wraps a Bitbucket Cloud client to implement the
// [Provider] interface. Bitbucket reports neither a conflicts flag nor
// mergeability, so Mergeable stays unknown; the merge endpoint is the
// authority and answers conflicts with an error.
type BitbucketAdapter struct {
	client  *bitbucket.Client
	timeout time.Duration
	log     *bullets.Logger
}

// NewBitbucketAdapter creates a new Bitbucket adapter.
func NewBitbucketAdapter(client *bitbucket.Client, timeout time.Duration, log *bullets.Logger) *BitbucketAdapter {
	return &BitbucketAdapter{
		client:  client,
		timeout: timeout,
		log:     log,
	}
}

// ValidateCredentials verifies the app password against the user endpoint.
func (a *BitbucketAdapter) ValidateCredentials(ctx context.Context) (*model.TokenValidation, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return nil, translateBitbucketError(err)
	}
	return &model.TokenValidation{Username: user.Username}, nil
}

// ListRepositories returns the repositories the account is a member of.
func (a *BitbucketAdapter) ListRepositories(ctx context.Context) ([]model.DiscoveredRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	repos, err := a.client.ListRepositories(ctx)
	if err != nil {
		return nil, translateBitbucketError(err)
	}

	discovered := make([]model.DiscoveredRepository, len(repos))
	for i, r := range repos {
		owner, name := splitFullName(r.FullName)
		discovered[i] = model.DiscoveredRepository{
			Provider:      model.ProviderBitbucket,
			Owner:         owner,
			Name:          name,
			FullName:      r.FullName,
			Private:       r.IsPrivate,
			DefaultBranch: r.MainBranch.Name,
		}
	}
	return discovered, nil
}

// GetPullRequest fetches and normalizes one pull request, including its
// commit statuses and participant reviews. Line totals come from the
// diffstat.
func (a *BitbucketAdapter) GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (*model.PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	pr, err := a.client.GetPullRequest(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateBitbucketError(err)
	}

	statuses, err := a.client.ListStatuses(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateBitbucketError(err)
	}

	diffstat, err := a.client.ListDiffStat(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateBitbucketError(err)
	}

	canonical := &model.PullRequest{
		ID:            model.PRRef{Repo: repo, Number: number}.String(),
		Provider:      model.ProviderBitbucket,
		RepositoryID:  repo.ID(),
		Number:        number,
		Title:         pr.Title,
		Author:        accountName(pr.Author),
		SourceBranch:  pr.Source.Branch.Name,
		TargetBranch:  pr.Destination.Branch.Name,
		IsDraft:       pr.Draft,
		Mergeable:     model.TristateUnknown,
		CommentsCount: pr.CommentCount,
	}

	for _, entry := range diffstat {
		canonical.Additions += entry.LinesAdded
		canonical.Deletions += entry.LinesRemoved
	}

	for _, s := range statuses {
		status, conclusion := mapBitbucketCommitStatus(s.State)
		name := s.Name
		if name == "" {
			name = s.Key
		}
		canonical.CiChecks = append(canonical.CiChecks, model.CiCheck{
			Name:       name,
			Status:     status,
			Conclusion: conclusion,
		})
	}

	for _, p := range pr.Participants {
		state, ok := mapBitbucketParticipantState(p)
		if !ok {
			continue
		}
		canonical.Reviews = append(canonical.Reviews, model.Review{
			Author: accountName(p.User),
			State:  state,
		})
	}

	return canonical, nil
}

// GetPullRequestDiff returns the normalized file diff. File statuses and
// line counts come from the diffstat; patch text comes from the raw unified
// diff, joined by path.
func (a *BitbucketAdapter) GetPullRequestDiff(ctx context.Context, repo model.RepoRef, number int) ([]model.DiffFile, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	diffstat, err := a.client.ListDiffStat(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateBitbucketError(err)
	}

	raw, err := a.client.GetRawDiff(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return nil, translateBitbucketError(err)
	}

	patches := make(map[string]string)
	for _, p := range diff.SplitUnifiedDiff(raw) {
		patches[p.NewPath] = p.Body
		patches[p.OldPath] = p.Body
	}

	normalized := make([]model.DiffFile, len(diffstat))
	for i, entry := range diffstat {
		fileStatus, known := MapBitbucketFileStatus(entry.Status)
		if !known {
			a.log.Warnf("unmapped Bitbucket file status %q, defaulting to modified", entry.Status)
		}

		path := ""
		switch {
		case entry.New != nil:
			path = entry.New.Path
		case entry.Old != nil:
			path = entry.Old.Path
		}

		df := model.DiffFile{
			FilePath:  path,
			Status:    fileStatus,
			Additions: entry.LinesAdded,
			Deletions: entry.LinesRemoved,
			Patch:     patches[path],
		}
		if fileStatus == model.FileRenamed && entry.Old != nil {
			df.PreviousFilename = entry.Old.Path
		}
		diff.Finalize(&df)
		normalized[i] = df
	}
	return normalized, nil
}

// MergePullRequest merges a pull request. Canonical strategies map to
// Bitbucket's merge_commit, squash, and fast_forward.
func (a *BitbucketAdapter) MergePullRequest(ctx context.Context, repo model.RepoRef, number int, strategy model.MergeStrategy, deleteBranch bool) (*model.MergeOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	pr, err := a.client.MergePullRequest(ctx, repo.Owner, repo.Name, number,
		mapBitbucketStrategy(strategy), deleteBranch)
	if err != nil {
		// The merge endpoint answers an unmergeable PR with 400.
		var apiErr *bitbucket.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
		}
		return nil, translateBitbucketError(err)
	}

	outcome := &model.MergeOutcome{
		Merged:  strings.EqualFold(pr.State, "MERGED"),
		Message: pr.Title,
	}
	if pr.MergeCommit != nil {
		outcome.SHA = pr.MergeCommit.Hash
	}
	return outcome, nil
}

// Name returns "Bitbucket".
func (a *BitbucketAdapter) Name() string {
	return "Bitbucket"
}

// MapBitbucketFileStatus maps a diffstat status to the canonical enum,
// case-folded; MOVED is Bitbucket's rename. The second return is false when
// the value was outside the known set and the modified fallback was applied.
func MapBitbucketFileStatus(native string) (model.FileStatus, bool) {
	switch strings.ToLower(native) {
	case "added":
		return model.FileAdded, true
	case "modified":
		return model.FileModified, true
	case "removed":
		return model.FileDeleted, true
	case "renamed", "moved":
		return model.FileRenamed, true
	default:
		return model.FileModified, false
	}
}

// mapBitbucketCommitStatus maps a commit status state to a canonical check
// state.
func mapBitbucketCommitStatus(native string) (model.CheckStatus, model.CheckConclusion) {
	switch strings.ToUpper(native) {
	case "SUCCESSFUL":
		return model.CheckCompleted, model.CheckConclusionSuccess
	case "FAILED":
		return model.CheckCompleted, model.CheckConclusionFailure
	case "STOPPED":
		return model.CheckCompleted, model.CheckConclusionFailure
	case "INPROGRESS":
		return model.CheckInProgress, model.CheckConclusionNone
	default:
		return model.CheckQueued, model.CheckConclusionNone
	}
}

// mapBitbucketParticipantState maps a participant to a review. Participants
// that have not acted are skipped.
func mapBitbucketParticipantState(p bitbucket.Participant) (model.ReviewState, bool) {
	switch strings.ToLower(p.State) {
	case "approved":
		return model.ReviewApproved, true
	case "changes_requested":
		return model.ReviewChangesRequested, true
	case "":
		if p.Approved {
			return model.ReviewApproved, true
		}
		return "", false
	default:
		return model.ReviewCommented, true
	}
}

func mapBitbucketStrategy(strategy model.MergeStrategy) string {
	switch strategy {
	case model.StrategySquash:
		return "squash"
	case model.StrategyRebase:
		return "fast_forward"
	default:
		return "merge_commit"
	}
}

func accountName(a bitbucket.Account) string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return a.DisplayName
}

func splitFullName(fullName string) (owner, name string) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok {
		return "", fullName
	}
	return owner, name
}

// translateBitbucketError converts Bitbucket API failures into the provider
// error taxonomy.
func translateBitbucketError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *bitbucket.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
		case http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: apiErr.RetryAfter}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", ErrNetwork)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// Compile-time interface check.
var _ Provider = (*BitbucketAdapter)(nil)
