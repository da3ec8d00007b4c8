// Package mocks provides call-tracking mock implementations for testing.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/pkg/provider"
)

// MethodCall represents a tracked method call with its parameters.
type MethodCall struct {
	Method string
	Args   map[string]any
	At     time.Time
}

// ProviderClient is a mock implementation of provider.Provider with call
// tracking. Responses to GetPullRequest and MergePullRequest are keyed by the
// pull request reference string so one mock can serve a whole batch.
type ProviderClient struct {
	mu    sync.Mutex
	calls []MethodCall

	// Configurable responses
	NameValue                   string
	ValidateCredentialsResponse *model.TokenValidation
	ValidateCredentialsError    error
	ListRepositoriesResponse    []model.DiscoveredRepository
	ListRepositoriesError       error
	GetPullRequestResponses     map[string]*model.PullRequest
	GetPullRequestErrors        map[string]error
	GetPullRequestDiffResponses map[string][]model.DiffFile
	GetPullRequestDiffErrors    map[string]error
	MergeOutcomes               map[string]*model.MergeOutcome
	MergeErrors                 map[string]error

	// MergeErrorQueues holds per-reference error sequences consumed one per
	// MergePullRequest call, ahead of MergeErrors. A nil entry in a queue
	// means that call succeeds.
	MergeErrorQueues map[string][]error
}

// NewProviderClient creates a new mock provider.
func NewProviderClient(name string) *ProviderClient {
	return &ProviderClient{
		NameValue:                   name,
		calls:                       make([]MethodCall, 0),
		GetPullRequestResponses:     make(map[string]*model.PullRequest),
		GetPullRequestErrors:        make(map[string]error),
		GetPullRequestDiffResponses: make(map[string][]model.DiffFile),
		GetPullRequestDiffErrors:    make(map[string]error),
		MergeOutcomes:               make(map[string]*model.MergeOutcome),
		MergeErrors:                 make(map[string]error),
		MergeErrorQueues:            make(map[string][]error),
	}
}

// ValidateCredentials implements provider.Provider.
func (m *ProviderClient) ValidateCredentials(_ context.Context) (*model.TokenValidation, error) {
	m.trackCall("ValidateCredentials", map[string]any{})
	return m.ValidateCredentialsResponse, m.ValidateCredentialsError
}

// ListRepositories implements provider.Provider.
func (m *ProviderClient) ListRepositories(_ context.Context) ([]model.DiscoveredRepository, error) {
	m.trackCall("ListRepositories", map[string]any{})
	return m.ListRepositoriesResponse, m.ListRepositoriesError
}

// GetPullRequest implements provider.Provider.
func (m *ProviderClient) GetPullRequest(_ context.Context, repo model.RepoRef, number int) (*model.PullRequest, error) {
	key := refKey(repo, number)
	m.trackCall("GetPullRequest", map[string]any{
		"repo":   repo,
		"number": number,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.GetPullRequestErrors[key]; err != nil {
		return nil, err
	}
	return m.GetPullRequestResponses[key], nil
}

// GetPullRequestDiff implements provider.Provider.
func (m *ProviderClient) GetPullRequestDiff(_ context.Context, repo model.RepoRef, number int) ([]model.DiffFile, error) {
	key := refKey(repo, number)
	m.trackCall("GetPullRequestDiff", map[string]any{
		"repo":   repo,
		"number": number,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.GetPullRequestDiffErrors[key]; err != nil {
		return nil, err
	}
	return m.GetPullRequestDiffResponses[key], nil
}

// MergePullRequest implements provider.Provider.
func (m *ProviderClient) MergePullRequest(_ context.Context, repo model.RepoRef, number int, strategy model.MergeStrategy, deleteBranch bool) (*model.MergeOutcome, error) {
	key := refKey(repo, number)
	m.trackCall("MergePullRequest", map[string]any{
		"repo":         repo,
		"number":       number,
		"strategy":     strategy,
		"deleteBranch": deleteBranch,
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if queue := m.MergeErrorQueues[key]; len(queue) > 0 {
		err := queue[0]
		m.MergeErrorQueues[key] = queue[1:]
		if err != nil {
			return nil, err
		}
		return m.mergeOutcome(key), nil
	}

	if err := m.MergeErrors[key]; err != nil {
		return nil, err
	}
	return m.mergeOutcome(key), nil
}

// mergeOutcome returns the configured outcome or a plain merged outcome.
// Callers must hold m.mu.
func (m *ProviderClient) mergeOutcome(key string) *model.MergeOutcome {
	if outcome, ok := m.MergeOutcomes[key]; ok {
		return outcome
	}
	return &model.MergeOutcome{Merged: true, SHA: "deadbeef"}
}

// Name implements provider.Provider.
func (m *ProviderClient) Name() string {
	return m.NameValue
}

func (m *ProviderClient) trackCall(method string, args map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MethodCall{
		Method: method,
		Args:   args,
		At:     time.Now(),
	})
}

// GetCalls returns a copy of all tracked calls in order.
func (m *ProviderClient) GetCalls() []MethodCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MethodCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// GetCallsFor returns all tracked calls of one method in order.
func (m *ProviderClient) GetCallsFor(method string) []MethodCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var calls []MethodCall
	for _, call := range m.calls {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// GetCallCount returns the number of times a method was called.
func (m *ProviderClient) GetCallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.calls {
		if call.Method == method {
			count++
		}
	}
	return count
}

// GetLastCall returns the last tracked call, if any.
func (m *ProviderClient) GetLastCall() (MethodCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MethodCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears the tracked calls.
func (m *ProviderClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = m.calls[:0]
}

func refKey(repo model.RepoRef, number int) string {
	return model.PRRef{Repo: repo, Number: number}.String()
}

// ProviderSource is a mock implementation of provider.Source routing by
// provider kind, with a configurable account per kind.
type ProviderSource struct {
	mu    sync.Mutex
	calls []MethodCall

	Providers map[model.ProviderKind]provider.Provider
	Accounts  map[model.ProviderKind]string
	Error     error
}

// NewProviderSource creates a mock source serving the given providers. The
// account identifier defaults to the provider kind.
func NewProviderSource(providers map[model.ProviderKind]provider.Provider) *ProviderSource {
	return &ProviderSource{
		calls:     make([]MethodCall, 0),
		Providers: providers,
		Accounts:  make(map[model.ProviderKind]string),
	}
}

// Provider implements provider.Source.
//
//nolint:ireturn // Mirrors the Source interface signature.
func (m *ProviderSource) Provider(_ context.Context, repo model.RepoRef) (provider.Provider, string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MethodCall{
		Method: "Provider",
		Args:   map[string]any{"repo": repo},
		At:     time.Now(),
	})
	m.mu.Unlock()

	if m.Error != nil {
		return nil, "", m.Error
	}

	prov, ok := m.Providers[repo.Provider]
	if !ok {
		return nil, "", provider.ErrAuth
	}

	account := m.Accounts[repo.Provider]
	if account == "" {
		account = string(repo.Provider)
	}
	return prov, account, nil
}

// GetCallCount returns the number of Provider calls.
func (m *ProviderSource) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Compile-time interface checks.
var (
	_ provider.Provider = (*ProviderClient)(nil)
	_ provider.Source   = (*ProviderSource)(nil)
)
