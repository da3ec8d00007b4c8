package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/pkg/status"
	"github.com/prampel/prampel/testing/fixtures"
)

func TestClassify_Green(t *testing.T) {
	pr := fixtures.GreenPullRequest(fixtures.PR(fixtures.WidgetsRepo(), 1))

	result := status.Classify(*pr, status.Options{})
	assert.Equal(t, status.Green, result)
	assert.Empty(t, status.Blockers(*pr, status.Options{}))
}

func TestClassify_Red(t *testing.T) {
	ref := fixtures.PR(fixtures.WidgetsRepo(), 1)

	t.Run("merge conflicts", func(t *testing.T) {
		pr := fixtures.ConflictingPullRequest(ref)
		assert.Equal(t, status.Red, status.Classify(*pr, status.Options{}))

		blockers := status.Blockers(*pr, status.Options{})
		require.NotEmpty(t, blockers)
		assert.Equal(t, status.BlockerConflicts, blockers[0].Code)
	})

	t.Run("failed ci check", func(t *testing.T) {
		pr := fixtures.FailingCiPullRequest(ref)
		assert.Equal(t, status.Red, status.Classify(*pr, status.Options{}))
	})

	t.Run("timed out ci check", func(t *testing.T) {
		pr := fixtures.GreenPullRequest(ref)
		pr.CiChecks = []model.CiCheck{
			{Name: "test", Status: model.CheckCompleted, Conclusion: model.CheckConclusionTimedOut},
		}
		assert.Equal(t, status.Red, status.Classify(*pr, status.Options{}))
	})

	t.Run("changes requested", func(t *testing.T) {
		pr := fixtures.ChangesRequestedPullRequest(ref)
		assert.Equal(t, status.Red, status.Classify(*pr, status.Options{}))
	})

	t.Run("changes requested even when same author approved later", func(t *testing.T) {
		pr := fixtures.GreenPullRequest(ref)
		pr.Reviews = []model.Review{
			{Author: "reviewer", State: model.ReviewChangesRequested},
			{Author: "reviewer", State: model.ReviewApproved},
		}
		assert.Equal(t, status.Red, status.Classify(*pr, status.Options{}))
	})

	t.Run("conflict dominates warnings", func(t *testing.T) {
		pr := fixtures.ConflictingPullRequest(ref)
		pr.IsDraft = true
		pr.CiChecks = []model.CiCheck{
			{Name: "test", Status: model.CheckInProgress},
		}
		assert.Equal(t, status.Red, status.Classify(*pr, status.Options{}))
	})
}

func TestClassify_Yellow(t *testing.T) {
	ref := fixtures.PR(fixtures.WidgetsRepo(), 1)

	t.Run("draft", func(t *testing.T) {
		pr := fixtures.DraftPullRequest(ref)
		assert.Equal(t, status.Yellow, status.Classify(*pr, status.Options{}))
	})

	t.Run("ci running", func(t *testing.T) {
		pr := fixtures.GreenPullRequest(ref)
		pr.CiChecks = []model.CiCheck{
			{Name: "build", Status: model.CheckCompleted, Conclusion: model.CheckConclusionSuccess},
			{Name: "test", Status: model.CheckInProgress},
		}
		assert.Equal(t, status.Yellow, status.Classify(*pr, status.Options{}))
	})

	t.Run("ci queued", func(t *testing.T) {
		pr := fixtures.GreenPullRequest(ref)
		pr.CiChecks = []model.CiCheck{
			{Name: "test", Status: model.CheckQueued},
		}
		assert.Equal(t, status.Yellow, status.Classify(*pr, status.Options{}))
	})

	t.Run("no reviews", func(t *testing.T) {
		pr := fixtures.UnreviewedPullRequest(ref)
		assert.Equal(t, status.Yellow, status.Classify(*pr, status.Options{}))

		blockers := status.Blockers(*pr, status.Options{})
		require.Len(t, blockers, 1)
		assert.Equal(t, status.BlockerAwaitingReview, blockers[0].Code)
		assert.Equal(t, "no reviews yet", blockers[0].Message)
	})

	t.Run("only commented reviews", func(t *testing.T) {
		pr := fixtures.GreenPullRequest(ref)
		pr.Reviews = []model.Review{
			{Author: "reviewer", State: model.ReviewCommented},
		}
		assert.Equal(t, status.Yellow, status.Classify(*pr, status.Options{}))

		blockers := status.Blockers(*pr, status.Options{})
		require.Len(t, blockers, 1)
		assert.Equal(t, "no approvals yet", blockers[0].Message)
	})
}

func TestClassify_SkipReviewRequirement(t *testing.T) {
	ref := fixtures.PR(fixtures.WidgetsRepo(), 1)

	t.Run("unreviewed becomes green", func(t *testing.T) {
		pr := fixtures.UnreviewedPullRequest(ref)
		opts := status.Options{SkipReviewRequirement: true}
		assert.Equal(t, status.Green, status.Classify(*pr, opts))
	})

	t.Run("changes requested still blocks", func(t *testing.T) {
		pr := fixtures.ChangesRequestedPullRequest(ref)
		opts := status.Options{SkipReviewRequirement: true}
		assert.Equal(t, status.Red, status.Classify(*pr, opts))
	})
}

func TestClassify_Totality(t *testing.T) {
	// Classification must never produce anything outside {green, yellow, red},
	// whatever the input combination.
	drafts := []bool{false, true}
	conflicts := []bool{false, true}
	checks := [][]model.CiCheck{
		nil,
		{{Name: "t", Status: model.CheckQueued}},
		{{Name: "t", Status: model.CheckInProgress}},
		{{Name: "t", Status: model.CheckCompleted, Conclusion: model.CheckConclusionSuccess}},
		{{Name: "t", Status: model.CheckCompleted, Conclusion: model.CheckConclusionFailure}},
		{{Name: "t", Status: model.CheckCompleted, Conclusion: model.CheckConclusionTimedOut}},
	}
	reviews := [][]model.Review{
		nil,
		{{Author: "r", State: model.ReviewApproved}},
		{{Author: "r", State: model.ReviewChangesRequested}},
		{{Author: "r", State: model.ReviewCommented}},
	}

	for _, draft := range drafts {
		for _, conflict := range conflicts {
			for _, cs := range checks {
				for _, rs := range reviews {
					pr := model.PullRequest{
						IsDraft:      draft,
						HasConflicts: conflict,
						CiChecks:     cs,
						Reviews:      rs,
					}
					result := status.Classify(pr, status.Options{})
					assert.Contains(t,
						[]status.Ampel{status.Green, status.Yellow, status.Red}, result)
				}
			}
		}
	}
}
