package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prampel/prampel/internal/logger"
	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/pkg/orchestrator"
	"github.com/prampel/prampel/pkg/provider"
	"github.com/prampel/prampel/testing/fixtures"
	"github.com/prampel/prampel/testing/mocks"
)

// sleepRecorder replaces the orchestrator sleep and records requested
// durations without waiting.
type sleepRecorder struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, d)
	return nil
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.durations))
	copy(out, s.durations)
	return out
}

func testPolicy() orchestrator.Policy {
	return orchestrator.Policy{
		MergeDelay:   2 * time.Second,
		MaxBatchSize: 50,
		MaxAttempts:  3,
		BackoffBase:  time.Second,
	}
}

// newFixture builds an orchestrator over one mock provider serving the given
// green pull requests, with sleeping stubbed out.
func newFixture(t *testing.T, policy orchestrator.Policy, refs ...model.PRRef) (*orchestrator.Orchestrator, *mocks.ProviderClient, *mocks.ProviderSource, *sleepRecorder) {
	t.Helper()

	mock := mocks.NewProviderClient("GitHub")
	for _, ref := range refs {
		mock.GetPullRequestResponses[ref.String()] = fixtures.GreenPullRequest(ref)
	}

	source := mocks.NewProviderSource(map[model.ProviderKind]provider.Provider{
		model.ProviderGitHub: mock,
	})

	orch := orchestrator.New(source, policy, logger.NoLogger())
	recorder := &sleepRecorder{}
	orch.SetSleep(recorder.sleep)
	return orch, mock, source, recorder
}

func TestExecute_Validation(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		orch, _, source, _ := newFixture(t, testPolicy())
		_, err := orch.Execute(context.Background(), orchestrator.Request{
			Strategy: model.StrategyMerge,
		})
		assert.ErrorIs(t, err, orchestrator.ErrEmptyBatch)
		assert.Zero(t, source.GetCallCount())
	})

	t.Run("batch over the cap fails before any provider call", func(t *testing.T) {
		policy := testPolicy()
		policy.MaxBatchSize = 2

		repo := fixtures.WidgetsRepo()
		refs := []model.PRRef{
			fixtures.PR(repo, 1), fixtures.PR(repo, 2), fixtures.PR(repo, 3),
		}
		orch, mock, source, _ := newFixture(t, policy, refs...)

		_, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: refs,
			Strategy:     model.StrategyMerge,
		})
		assert.ErrorIs(t, err, orchestrator.ErrBatchTooLarge)
		assert.Zero(t, source.GetCallCount())
		assert.Zero(t, mock.GetCallCount("MergePullRequest"))
	})

	t.Run("invalid strategy", func(t *testing.T) {
		repo := fixtures.WidgetsRepo()
		refs := []model.PRRef{fixtures.PR(repo, 1)}
		orch, _, source, _ := newFixture(t, testPolicy(), refs...)

		_, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: refs,
			Strategy:     model.MergeStrategy("fast-forward"),
		})
		assert.ErrorIs(t, err, orchestrator.ErrInvalidStrategy)
		assert.Zero(t, source.GetCallCount())
	})
}

func TestExecute_AllGreen(t *testing.T) {
	widgets := fixtures.WidgetsRepo()
	gadgets := fixtures.GadgetsRepo()
	refs := []model.PRRef{
		fixtures.PR(widgets, 1), fixtures.PR(widgets, 2), fixtures.PR(gadgets, 9),
	}
	orch, mock, _, _ := newFixture(t, testPolicy(), refs...)

	result, err := orch.Execute(context.Background(), orchestrator.Request{
		PullRequests: refs,
		Strategy:     model.StrategySquash,
		DeleteBranch: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Success)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Results, 3)
	for i, item := range result.Results {
		assert.Equal(t, refs[i].String(), item.PullRequestID)
		assert.True(t, item.Success)
		assert.Empty(t, item.ErrorCode)
	}

	calls := mock.GetCallsFor("MergePullRequest")
	require.Len(t, calls, 3)
	assert.Equal(t, model.StrategySquash, calls[0].Args["strategy"])
	assert.Equal(t, true, calls[0].Args["deleteBranch"])
}

func TestExecute_PartialFailureIsolation(t *testing.T) {
	// Five pull requests across two repositories; one hits a conflict. The
	// other four must still merge and the accounting must cover every item.
	widgets := fixtures.WidgetsRepo()
	gadgets := fixtures.GadgetsRepo()
	refs := []model.PRRef{
		fixtures.PR(widgets, 1),
		fixtures.PR(widgets, 2),
		fixtures.PR(widgets, 3),
		fixtures.PR(gadgets, 1),
		fixtures.PR(gadgets, 2),
	}
	orch, mock, _, _ := newFixture(t, testPolicy(), refs...)
	mock.MergeErrors[fixtures.PR(widgets, 2).String()] = provider.ErrConflict

	result, err := orch.Execute(context.Background(), orchestrator.Request{
		PullRequests: refs,
		Strategy:     model.StrategyMerge,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, len(refs), result.Success+result.Failed)

	require.Len(t, result.Results, 5)
	assert.False(t, result.Results[1].Success)
	assert.Equal(t, provider.CodeConflict, result.Results[1].ErrorCode)
	for _, i := range []int{0, 2, 3, 4} {
		assert.True(t, result.Results[i].Success, "item %d", i)
	}
}

func TestExecute_RevalidationBlocks(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	ref := fixtures.PR(repo, 1)

	cases := []struct {
		name string
		pr   *model.PullRequest
	}{
		{"conflicts appeared", fixtures.ConflictingPullRequest(ref)},
		{"turned draft", fixtures.DraftPullRequest(ref)},
		{"ci failed", fixtures.FailingCiPullRequest(ref)},
		{"changes requested", fixtures.ChangesRequestedPullRequest(ref)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orch, mock, _, _ := newFixture(t, testPolicy())
			mock.GetPullRequestResponses[ref.String()] = tc.pr

			result, err := orch.Execute(context.Background(), orchestrator.Request{
				PullRequests: []model.PRRef{ref},
				Strategy:     model.StrategyMerge,
			})
			require.NoError(t, err)

			assert.Equal(t, 1, result.Failed)
			assert.Equal(t, provider.CodePrecondition, result.Results[0].ErrorCode)
			assert.Contains(t, result.Results[0].Error, "refresh")
			// The merge endpoint must never be hit for a blocked item.
			assert.Zero(t, mock.GetCallCount("MergePullRequest"))
		})
	}

	t.Run("missing approvals do not block", func(t *testing.T) {
		orch, mock, _, _ := newFixture(t, testPolicy())
		mock.GetPullRequestResponses[ref.String()] = fixtures.UnreviewedPullRequest(ref)

		result, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: []model.PRRef{ref},
			Strategy:     model.StrategyMerge,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Success)
	})
}

func TestExecute_RateLimitBackoff(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	ref := fixtures.PR(repo, 1)

	t.Run("retries and honors retry-after", func(t *testing.T) {
		orch, mock, _, recorder := newFixture(t, testPolicy(), ref)
		mock.MergeErrorQueues[ref.String()] = []error{
			&provider.RateLimitError{RetryAfter: 5 * time.Second},
			nil,
		}

		result, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: []model.PRRef{ref},
			Strategy:     model.StrategyMerge,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Success)
		assert.Equal(t, 2, mock.GetCallCount("MergePullRequest"))
		// Retry-After exceeds the base backoff and wins.
		assert.Contains(t, recorder.recorded(), 5*time.Second)
	})

	t.Run("backoff doubles when retry-after is absent", func(t *testing.T) {
		orch, mock, _, recorder := newFixture(t, testPolicy(), ref)
		mock.MergeErrorQueues[ref.String()] = []error{
			&provider.RateLimitError{},
			&provider.RateLimitError{},
			nil,
		}

		result, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: []model.PRRef{ref},
			Strategy:     model.StrategyMerge,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Success)
		assert.Equal(t, 3, mock.GetCallCount("MergePullRequest"))
		sleeps := recorder.recorded()
		assert.Contains(t, sleeps, time.Second)
		assert.Contains(t, sleeps, 2*time.Second)
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		orch, mock, _, _ := newFixture(t, testPolicy(), ref)
		mock.MergeErrors[ref.String()] = &provider.RateLimitError{}

		result, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: []model.PRRef{ref},
			Strategy:     model.StrategyMerge,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, provider.CodeRateLimited, result.Results[0].ErrorCode)
		assert.Equal(t, 3, mock.GetCallCount("MergePullRequest"))
	})
}

func TestExecute_UnmergedOutcomeIsConflict(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	ref := fixtures.PR(repo, 1)
	orch, mock, _, _ := newFixture(t, testPolicy(), ref)
	mock.MergeOutcomes[ref.String()] = &model.MergeOutcome{
		Merged:  false,
		Message: "Pull Request is not mergeable",
	}

	result, err := orch.Execute(context.Background(), orchestrator.Request{
		PullRequests: []model.PRRef{ref},
		Strategy:     model.StrategyMerge,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, provider.CodeConflict, result.Results[0].ErrorCode)
	assert.Contains(t, result.Results[0].Error, "not mergeable")
}

func TestExecute_AuthPoisonsAccount(t *testing.T) {
	// After one credential failure the remaining items of that account fail
	// fast without further provider calls.
	repo := fixtures.WidgetsRepo()
	refs := []model.PRRef{
		fixtures.PR(repo, 1), fixtures.PR(repo, 2), fixtures.PR(repo, 3),
	}
	orch, mock, _, _ := newFixture(t, testPolicy(), refs...)
	mock.MergeErrors[refs[0].String()] = provider.ErrAuth

	result, err := orch.Execute(context.Background(), orchestrator.Request{
		PullRequests: refs,
		Strategy:     model.StrategyMerge,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Failed)
	for _, item := range result.Results {
		assert.Equal(t, provider.CodeAuth, item.ErrorCode)
	}
	assert.Contains(t, result.Results[1].Error, "skipped")
	assert.Equal(t, 1, mock.GetCallCount("MergePullRequest"))
	// Poisoned items are not even revalidated.
	assert.Equal(t, 1, mock.GetCallCount("GetPullRequest"))
}

func TestExecute_Pacing(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	refs := []model.PRRef{
		fixtures.PR(repo, 1), fixtures.PR(repo, 2), fixtures.PR(repo, 3),
	}
	orch, _, _, recorder := newFixture(t, testPolicy(), refs...)

	_, err := orch.Execute(context.Background(), orchestrator.Request{
		PullRequests: refs,
		Strategy:     model.StrategyMerge,
	})
	require.NoError(t, err)

	// Two pacing sleeps for three items: between 1 and 2 and between 2 and 3,
	// never before the first.
	sleeps := recorder.recorded()
	require.Len(t, sleeps, 2)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps)
}

func TestExecute_ConcurrentRepositoriesStaySequentialWithin(t *testing.T) {
	policy := testPolicy()
	policy.ConcurrentRepositories = true

	widgets := fixtures.WidgetsRepo()
	gadgets := fixtures.GadgetsRepo()
	refs := []model.PRRef{
		fixtures.PR(widgets, 1), fixtures.PR(widgets, 2),
		fixtures.PR(gadgets, 1), fixtures.PR(gadgets, 2),
	}
	orch, mock, _, _ := newFixture(t, policy, refs...)

	result, err := orch.Execute(context.Background(), orchestrator.Request{
		PullRequests: refs,
		Strategy:     model.StrategyMerge,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Success)

	// Within each repository the merge order must match submission order.
	var widgetsOrder, gadgetsOrder []int
	for _, call := range mock.GetCallsFor("MergePullRequest") {
		repoArg, ok := call.Args["repo"].(model.RepoRef)
		require.True(t, ok)
		number, ok := call.Args["number"].(int)
		require.True(t, ok)
		switch repoArg {
		case widgets:
			widgetsOrder = append(widgetsOrder, number)
		case gadgets:
			gadgetsOrder = append(gadgetsOrder, number)
		}
	}
	assert.Equal(t, []int{1, 2}, widgetsOrder)
	assert.Equal(t, []int{1, 2}, gadgetsOrder)
}

func TestRetryFailed(t *testing.T) {
	widgets := fixtures.WidgetsRepo()
	refs := []model.PRRef{fixtures.PR(widgets, 1), fixtures.PR(widgets, 2)}

	t.Run("retries only the failed items", func(t *testing.T) {
		orch, mock, _, _ := newFixture(t, testPolicy(), refs...)
		mock.MergeErrors[refs[1].String()] = provider.ErrConflict

		result, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: refs,
			Strategy:     model.StrategyMerge,
		})
		require.NoError(t, err)
		require.Equal(t, 1, result.Failed)

		// The conflict is resolved out of band; retry must now succeed.
		delete(mock.MergeErrors, refs[1].String())

		retried, err := orch.RetryFailed(context.Background(), result.OperationID)
		require.NoError(t, err)
		assert.Equal(t, 2, retried.Success)
		assert.Zero(t, retried.Failed)

		// The already-merged item was not merged a second time.
		merges := mock.GetCallsFor("MergePullRequest")
		var firstItemMerges int
		for _, call := range merges {
			if call.Args["number"] == 1 {
				firstItemMerges++
			}
		}
		assert.Equal(t, 1, firstItemMerges)
	})

	t.Run("no failed items is a no-op", func(t *testing.T) {
		orch, mock, _, _ := newFixture(t, testPolicy(), refs...)

		result, err := orch.Execute(context.Background(), orchestrator.Request{
			PullRequests: refs,
			Strategy:     model.StrategyMerge,
		})
		require.NoError(t, err)
		require.Zero(t, result.Failed)
		before := mock.GetCallCount("MergePullRequest")

		retried, err := orch.RetryFailed(context.Background(), result.OperationID)
		require.NoError(t, err)
		assert.Equal(t, result.Success, retried.Success)
		assert.Equal(t, before, mock.GetCallCount("MergePullRequest"))
	})

	t.Run("unknown operation", func(t *testing.T) {
		orch, _, _, _ := newFixture(t, testPolicy())
		_, err := orch.RetryFailed(context.Background(), "no-such-operation")
		assert.ErrorIs(t, err, orchestrator.ErrOperationNotFound)
	})
}
