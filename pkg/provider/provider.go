// Package provider implements the unified abstraction over GitHub, GitLab,
// and Bitbucket.
//
// The [Provider] interface defines a common API for reading and merging pull
// requests; one adapter per provider translates its native vocabulary into
// the canonical model and its native failures into the package's error
// taxonomy.
//
// Use [New] to create the adapter for a provider:
//
//	prov, err := provider.New(model.ProviderGitHub, creds, 30*time.Second, logger)
//	pr, _ := prov.GetPullRequest(ctx, repo, 42)
//	outcome, _ := prov.MergePullRequest(ctx, repo, 42, model.StrategySquash, true)
package provider

import (
	"context"
	"fmt"

	"github.com/prampel/prampel/pkg/model"
)

// Provider defines the unified interface over the supported providers.
type Provider interface {
	// ValidateCredentials verifies the configured token and returns the
	// account it belongs to.
	ValidateCredentials(ctx context.Context) (*model.TokenValidation, error)

	// ListRepositories returns the repositories visible to the credential.
	ListRepositories(ctx context.Context) ([]model.DiscoveredRepository, error)

	// GetPullRequest fetches one pull request fully normalized: reviews and
	// CI checks included, ready for classification.
	GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (*model.PullRequest, error)

	// GetPullRequestDiff returns the normalized, ordered file diff.
	GetPullRequestDiff(ctx context.Context, repo model.RepoRef, number int) ([]model.DiffFile, error)

	// MergePullRequest merges one pull request with the given strategy,
	// optionally deleting the source branch afterwards.
	MergePullRequest(ctx context.Context, repo model.RepoRef, number int, strategy model.MergeStrategy, deleteBranch bool) (*model.MergeOutcome, error)

	// Name returns "GitHub", "GitLab", or "Bitbucket".
	Name() string
}

// Source resolves the provider and owning account for a repository. The
// orchestrator uses the account identifier to isolate credential failures:
// one revoked token must not fail items of other accounts.
type Source interface {
	Provider(ctx context.Context, repo model.RepoRef) (Provider, string, error)
}

// StaticSource is a fixed provider-kind to adapter mapping with one account
// per provider. Suits the CLI, where each provider has a single credential.
type StaticSource map[model.ProviderKind]Provider

// Provider implements Source.
func (s StaticSource) Provider(_ context.Context, repo model.RepoRef) (Provider, string, error) {
	prov, ok := s[repo.Provider]
	if !ok {
		return nil, "", fmt.Errorf("%w: no credentials configured for %s", ErrAuth, repo.Provider)
	}
	return prov, string(repo.Provider), nil
}
