package orchestrator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/pkg/orchestrator"
	"github.com/prampel/prampel/testing/fixtures"
)

func newOperation(refs ...model.PRRef) *model.MergeOperation {
	op := &model.MergeOperation{
		ID:        "op-1",
		CreatedAt: time.Now(),
		Strategy:  model.StrategyMerge,
	}
	for _, ref := range refs {
		op.Items = append(op.Items, &model.MergeOperationItem{
			PullRequest:  ref,
			RepositoryID: ref.Repo.ID(),
			Status:       model.ItemPending,
		})
	}
	return op
}

func TestStore_GetUnknown(t *testing.T) {
	store := orchestrator.NewStore()
	_, err := store.Get("missing")
	assert.ErrorIs(t, err, orchestrator.ErrOperationNotFound)
}

func TestStore_ItemTransitions(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	op := newOperation(fixtures.PR(repo, 1))
	store := orchestrator.NewStore()
	store.Put(op)
	item := op.Items[0]

	store.Start(item)
	assert.Equal(t, model.ItemInProgress, item.Status)

	store.IncAttempt(item)
	store.IncAttempt(item)
	assert.Equal(t, 2, item.Attempts)

	store.Fail(item, "conflict", "cannot merge")
	assert.Equal(t, model.ItemFailed, item.Status)
	assert.Equal(t, "conflict", item.ErrorCode)

	store.Succeed(item)
	assert.Equal(t, model.ItemSucceeded, item.Status)
	assert.Empty(t, item.ErrorCode)
	assert.Empty(t, item.ErrorMessage)
}

func TestStore_ResetFailed(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	op := newOperation(fixtures.PR(repo, 1), fixtures.PR(repo, 2), fixtures.PR(repo, 3))
	store := orchestrator.NewStore()
	store.Put(op)

	store.Succeed(op.Items[0])
	store.Fail(op.Items[1], "conflict", "cannot merge")
	store.Fail(op.Items[2], "network", "timeout")

	reset, err := store.ResetFailed(op.ID)
	require.NoError(t, err)
	require.Len(t, reset, 2)
	assert.Equal(t, 2, reset[0].PullRequest.Number)
	assert.Equal(t, 3, reset[1].PullRequest.Number)
	for _, item := range reset {
		assert.Equal(t, model.ItemPending, item.Status)
		assert.Empty(t, item.ErrorCode)
	}
	// The succeeded item is untouched.
	assert.Equal(t, model.ItemSucceeded, op.Items[0].Status)
}

func TestStore_Result(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	op := newOperation(fixtures.PR(repo, 1), fixtures.PR(repo, 2))
	store := orchestrator.NewStore()
	store.Put(op)

	store.Succeed(op.Items[0])
	store.Fail(op.Items[1], "auth", "credentials rejected")

	result, err := store.Result(op.ID)
	require.NoError(t, err)
	assert.Equal(t, op.ID, result.OperationID)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[0].Success)
	assert.Equal(t, "github:octo/widgets#1", result.Results[0].PullRequestID)
	assert.False(t, result.Results[1].Success)
	assert.Equal(t, "auth", result.Results[1].ErrorCode)
}
