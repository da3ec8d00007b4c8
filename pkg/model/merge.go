package model

import "time"

// MergeStrategy selects how a pull request is merged.
type MergeStrategy string

// MergeStrategy values.
const (
	StrategyMerge  MergeStrategy = "merge"
	StrategySquash MergeStrategy = "squash"
	StrategyRebase MergeStrategy = "rebase"
)

// Valid reports whether the strategy is one of the supported strategies.
func (s MergeStrategy) Valid() bool {
	switch s {
	case StrategyMerge, StrategySquash, StrategyRebase:
		return true
	}
	return false
}

// ItemStatus is the lifecycle state of a single merge operation item.
type ItemStatus string

// ItemStatus values. Failed items may re-enter Pending through an explicit
// retry; Succeeded is final.
const (
	ItemPending    ItemStatus = "pending"
	ItemInProgress ItemStatus = "in_progress"
	ItemSucceeded  ItemStatus = "succeeded"
	ItemFailed     ItemStatus = "failed"
)

// MergeOperationItem is one pull request inside a bulk merge operation.
// Items are exclusively owned by their parent operation.
type MergeOperationItem struct {
	PullRequest  PRRef
	RepositoryID string
	Attempts     int
	Status       ItemStatus
	ErrorCode    string
	ErrorMessage string
}

// MergeOperation is an accepted bulk merge request. Its item list is
// immutable after creation; retries re-execute existing items, they never
// add new ones.
type MergeOperation struct {
	ID           string
	CreatedAt    time.Time
	Strategy     MergeStrategy
	DeleteBranch bool
	Items        []*MergeOperationItem
}

// Terminal reports whether every item has reached succeeded or failed.
func (op *MergeOperation) Terminal() bool {
	for _, item := range op.Items {
		if item.Status != ItemSucceeded && item.Status != ItemFailed {
			return false
		}
	}
	return true
}

// ItemResult is the per-item outcome reported to callers.
type ItemResult struct {
	PullRequestID string
	Success       bool
	ErrorCode     string
	Error         string
}

// BulkMergeResult summarizes a bulk merge execution.
type BulkMergeResult struct {
	OperationID string
	Success     int
	Failed      int
	Results     []ItemResult
}
