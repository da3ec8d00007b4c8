package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prampel/prampel/pkg/model"
)

// ErrOperationNotFound is returned for an unknown merge operation id.
var ErrOperationNotFound = errors.New("merge operation not found")

// Store keeps merge operations in memory. Persistence is owned by the
// surrounding application; the core only needs the operations of the current
// process for status inspection and retries.
//
// All item mutations go through the store so concurrent repository
// partitions and result readers never race.
type Store struct {
	mu  sync.RWMutex
	ops map[string]*model.MergeOperation
}

// NewStore creates an empty operation store.
func NewStore() *Store {
	return &Store{ops: make(map[string]*model.MergeOperation)}
}

// Put registers a new operation.
func (s *Store) Put(op *model.MergeOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op.ID] = op
}

// Get returns an operation by id.
func (s *Store) Get(id string) (*model.MergeOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return op, nil
}

// Start transitions an item to in_progress.
func (s *Store) Start(item *model.MergeOperationItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Status = model.ItemInProgress
}

// IncAttempt counts one merge attempt on an item.
func (s *Store) IncAttempt(item *model.MergeOperationItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Attempts++
}

// Succeed transitions an item to succeeded and clears any previous error.
func (s *Store) Succeed(item *model.MergeOperationItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Status = model.ItemSucceeded
	item.ErrorCode = ""
	item.ErrorMessage = ""
}

// Fail transitions an item to failed with a taxonomy code and a user-safe
// message.
func (s *Store) Fail(item *model.MergeOperationItem, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Status = model.ItemFailed
	item.ErrorCode = code
	item.ErrorMessage = message
}

// ResetFailed re-enters all failed items of an operation into pending and
// returns them in item order. Succeeded items are never touched.
func (s *Store) ResetFailed(id string) ([]*model.MergeOperationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}

	var reset []*model.MergeOperationItem
	for _, item := range op.Items {
		if item.Status == model.ItemFailed {
			item.Status = model.ItemPending
			item.ErrorCode = ""
			item.ErrorMessage = ""
			reset = append(reset, item)
		}
	}
	return reset, nil
}

// Result builds the caller-facing summary of an operation in item order.
func (s *Store) Result(id string) (*model.BulkMergeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}

	result := &model.BulkMergeResult{
		OperationID: op.ID,
		Results:     make([]model.ItemResult, len(op.Items)),
	}
	for i, item := range op.Items {
		succeeded := item.Status == model.ItemSucceeded
		if succeeded {
			result.Success++
		} else {
			result.Failed++
		}
		result.Results[i] = model.ItemResult{
			PullRequestID: item.PullRequest.String(),
			Success:       succeeded,
			ErrorCode:     item.ErrorCode,
			Error:         item.ErrorMessage,
		}
	}
	return result, nil
}
