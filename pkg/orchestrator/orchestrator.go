// Package orchestrator executes bulk merge operations.
//
// Items are partitioned by repository: merges against the same repository
// run strictly sequentially, in submission order, with a configurable pacing
// delay between provider merge calls. Partitions of different repositories
// run concurrently (one goroutine per repository), reporting item outcomes
// over a channel; this trades the strict cross-repository ordering of a
// single loop for wall-clock time, which is safe because a repository is the
// only shared mutable resource.
//
// Provider failures never escape an item: every item ends succeeded or
// failed, and a result always satisfies success+failed == len(items).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sgaunet/bullets"

	"github.com/prampel/prampel/internal/security"
	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/pkg/provider"
	"github.com/prampel/prampel/pkg/status"
)

// Validation errors for bulk merge requests.
var (
	ErrEmptyBatch      = errors.New("bulk merge requires at least one pull request")
	ErrBatchTooLarge   = errors.New("bulk merge batch exceeds the maximum size")
	ErrInvalidStrategy = errors.New("invalid merge strategy")
)

// Policy tunes pacing and retry behavior. It comes from configuration, never
// from constants inside the orchestrator.
type Policy struct {
	// MergeDelay is inserted between two merge calls of the same
	// repository partition, not before the first.
	MergeDelay time.Duration
	// MaxBatchSize caps the item count of one operation.
	MaxBatchSize int
	// MaxAttempts bounds merge attempts per item when rate limited.
	MaxAttempts int
	// BackoffBase is the first rate-limit backoff delay; it doubles per
	// attempt and is raised to the provider's Retry-After when larger.
	BackoffBase time.Duration
	// ConcurrentRepositories runs repository partitions in parallel.
	ConcurrentRepositories bool
}

// Request is an accepted bulk merge submission.
type Request struct {
	PullRequests []model.PRRef
	Strategy     model.MergeStrategy
	DeleteBranch bool
}

// Orchestrator drives bulk merge operations against the providers.
type Orchestrator struct {
	source provider.Source
	store  *Store
	policy Policy
	log    *bullets.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator with its own in-memory operation store.
func New(source provider.Source, policy Policy, log *bullets.Logger) *Orchestrator {
	return &Orchestrator{
		source: source,
		store:  NewStore(),
		policy: policy,
		log:    log,
		sleep:  sleepContext,
	}
}

// Store exposes the operation store for status inspection.
func (o *Orchestrator) Store() *Store {
	return o.store
}

// Execute validates and runs a bulk merge operation to completion, returning
// the per-item results. Validation failures are the only errors; provider
// failures are captured per item.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*model.BulkMergeResult, error) {
	if len(req.PullRequests) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(req.PullRequests) > o.policy.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d items, maximum is %d",
			ErrBatchTooLarge, len(req.PullRequests), o.policy.MaxBatchSize)
	}
	if !req.Strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, req.Strategy)
	}

	op := &model.MergeOperation{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		Strategy:     req.Strategy,
		DeleteBranch: req.DeleteBranch,
		Items:        make([]*model.MergeOperationItem, len(req.PullRequests)),
	}
	for i, ref := range req.PullRequests {
		op.Items[i] = &model.MergeOperationItem{
			PullRequest:  ref,
			RepositoryID: ref.Repo.ID(),
			Status:       model.ItemPending,
		}
	}
	o.store.Put(op)

	o.log.Infof("executing merge operation %s with %d items", op.ID, len(op.Items))
	o.run(ctx, op, op.Items)

	return o.store.Result(op.ID)
}

// RetryFailed re-executes only the failed items of an operation, following
// the same per-repository sequencing. With no failed items it is a no-op and
// returns the unchanged result.
func (o *Orchestrator) RetryFailed(ctx context.Context, operationID string) (*model.BulkMergeResult, error) {
	if _, err := o.store.Get(operationID); err != nil {
		return nil, err
	}

	items, err := o.store.ResetFailed(operationID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return o.store.Result(operationID)
	}

	op, err := o.store.Get(operationID)
	if err != nil {
		return nil, err
	}

	o.log.Infof("retrying %d failed items of operation %s", len(items), operationID)
	o.run(ctx, op, items)

	return o.store.Result(operationID)
}

type itemOutcome struct {
	item *model.MergeOperationItem
}

// run executes the given items of an operation. Partitions process their
// items sequentially; outcomes flow back over a channel until all items are
// accounted for.
func (o *Orchestrator) run(ctx context.Context, op *model.MergeOperation, items []*model.MergeOperationItem) {
	partitions := partitionByRepository(items)
	health := newAccountHealth()
	outcomes := make(chan itemOutcome)

	if o.policy.ConcurrentRepositories {
		var wg sync.WaitGroup
		for _, partition := range partitions {
			wg.Add(1)
			go func(items []*model.MergeOperationItem) {
				defer wg.Done()
				o.processPartition(ctx, op, items, health, outcomes)
			}(partition)
		}
		go func() {
			wg.Wait()
			close(outcomes)
		}()
	} else {
		go func() {
			for _, partition := range partitions {
				o.processPartition(ctx, op, partition, health, outcomes)
			}
			close(outcomes)
		}()
	}

	for outcome := range outcomes {
		o.log.Debugf("item %s finished: %s", outcome.item.PullRequest, outcome.item.Status)
	}
}

// processPartition runs one repository's items in order, pacing merge calls
// with the configured delay. An item's failure never stops its siblings.
func (o *Orchestrator) processPartition(ctx context.Context, op *model.MergeOperation, items []*model.MergeOperationItem, health *accountHealth, outcomes chan<- itemOutcome) {
	for i, item := range items {
		if i > 0 && o.policy.MergeDelay > 0 {
			if err := o.sleep(ctx, o.policy.MergeDelay); err != nil {
				o.store.Fail(item, provider.CodeNetwork, "merge operation interrupted")
				outcomes <- itemOutcome{item: item}
				continue
			}
		}
		o.processItem(ctx, op, item, health)
		outcomes <- itemOutcome{item: item}
	}
}

// processItem drives one item through pending → in_progress → terminal.
func (o *Orchestrator) processItem(ctx context.Context, op *model.MergeOperation, item *model.MergeOperationItem, health *accountHealth) {
	o.store.Start(item)

	ref := item.PullRequest
	prov, accountID, err := o.source.Provider(ctx, ref.Repo)
	if err != nil {
		o.store.Fail(item, provider.Code(err), security.UserMessage(err))
		return
	}

	if health.poisoned(accountID) {
		o.store.Fail(item, provider.CodeAuth,
			"skipped: credentials for this account already failed in this batch")
		return
	}

	// Conflicts, reviews, and CI can all change between selection and
	// execution; re-validate before spending a merge call.
	pr, err := prov.GetPullRequest(ctx, ref.Repo, ref.Number)
	if err != nil {
		o.failItem(item, accountID, err, health)
		return
	}
	if reason, blocked := mergeBlocked(pr); blocked {
		o.store.Fail(item, provider.CodePrecondition, reason+", refresh and try again")
		return
	}

	for attempt := 1; ; attempt++ {
		o.store.IncAttempt(item)

		outcome, err := prov.MergePullRequest(ctx, ref.Repo, ref.Number, op.Strategy, op.DeleteBranch)
		if err == nil {
			if !outcome.Merged {
				o.store.Fail(item, provider.CodeConflict, security.SanitizeString(outcome.Message))
				return
			}
			o.store.Succeed(item)
			o.log.Infof("merged %s", ref)
			return
		}

		if provider.Retryable(err) && attempt < o.policy.MaxAttempts {
			delay := o.policy.BackoffBase << (attempt - 1)
			if retryAfter := provider.RetryAfter(err); retryAfter > delay {
				delay = retryAfter
			}
			o.log.Warnf("rate limited merging %s, backing off %s (attempt %d/%d)",
				ref, delay, attempt, o.policy.MaxAttempts)
			if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
				o.store.Fail(item, provider.CodeNetwork, "merge operation interrupted")
				return
			}
			continue
		}

		o.failItem(item, accountID, err, health)
		return
	}
}

// failItem records a provider failure on the item and poisons the account on
// credential errors so remaining items of that account fail fast.
func (o *Orchestrator) failItem(item *model.MergeOperationItem, accountID string, err error, health *accountHealth) {
	if errors.Is(err, provider.ErrAuth) {
		health.poison(accountID)
	}
	o.store.Fail(item, provider.Code(err), security.UserMessage(err))
}

// mergeBlocked reports whether the freshly fetched pull request may no
// longer be merged, with a user-facing reason.
func mergeBlocked(pr *model.PullRequest) (string, bool) {
	if pr.IsDraft {
		return "pull request is a draft", true
	}
	if pr.Mergeable == model.TristateNo {
		return "provider reports the pull request as not mergeable", true
	}
	// Red classification covers conflicts, failed CI, and requested
	// changes. Missing approvals only warn and do not block execution.
	for _, blocker := range status.Blockers(*pr, status.Options{SkipReviewRequirement: true}) {
		if blocker.Severity == status.SeverityError {
			return blocker.Message, true
		}
	}
	return "", false
}

// partitionByRepository groups items by repository, preserving submission
// order within each partition and first-seen order across partitions.
func partitionByRepository(items []*model.MergeOperationItem) [][]*model.MergeOperationItem {
	index := make(map[string]int)
	var partitions [][]*model.MergeOperationItem

	for _, item := range items {
		i, ok := index[item.RepositoryID]
		if !ok {
			i = len(partitions)
			index[item.RepositoryID] = i
			partitions = append(partitions, nil)
		}
		partitions[i] = append(partitions[i], item)
	}
	return partitions
}

// accountHealth tracks accounts whose credentials failed during this
// execution.
type accountHealth struct {
	mu  sync.Mutex
	bad map[string]bool
}

func newAccountHealth() *accountHealth {
	return &accountHealth{bad: make(map[string]bool)}
}

func (h *accountHealth) poison(accountID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bad[accountID] = true
}

func (h *accountHealth) poisoned(accountID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bad[accountID]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
