// Package model defines the canonical, provider-agnostic representation of
// pull requests, CI checks, reviews, and diffs.
//
// The types here carry no behavior beyond identity helpers. Provider adapters
// translate their native API payloads into these types; the status classifier
// and diff service consume them.
package model

// ProviderKind identifies one of the supported source-control providers.
type ProviderKind string

// Supported providers.
const (
	ProviderGitHub    ProviderKind = "github"
	ProviderGitLab    ProviderKind = "gitlab"
	ProviderBitbucket ProviderKind = "bitbucket"
)

// Valid reports whether the provider kind is one of the supported providers.
func (p ProviderKind) Valid() bool {
	switch p {
	case ProviderGitHub, ProviderGitLab, ProviderBitbucket:
		return true
	}
	return false
}

// CheckStatus is the canonical lifecycle state of a CI check.
type CheckStatus string

// CheckStatus values.
const (
	CheckQueued     CheckStatus = "queued"
	CheckInProgress CheckStatus = "in_progress"
	CheckCompleted  CheckStatus = "completed"
)

// CheckConclusion is the canonical outcome of a completed CI check.
// It is only meaningful when the check status is CheckCompleted.
type CheckConclusion string

// CheckConclusion values. CheckConclusionNone stands in for a missing
// conclusion (check not completed, or provider reported none).
const (
	CheckConclusionNone     CheckConclusion = ""
	CheckConclusionSuccess  CheckConclusion = "success"
	CheckConclusionFailure  CheckConclusion = "failure"
	CheckConclusionTimedOut CheckConclusion = "timed_out"
)

// CiCheck is a single CI check or pipeline attached to a pull request.
type CiCheck struct {
	Name       string
	Status     CheckStatus
	Conclusion CheckConclusion
}

// ReviewState is the canonical state of a single review.
type ReviewState string

// ReviewState values.
const (
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes_requested"
	ReviewCommented        ReviewState = "commented"
)

// Review is a single review left on a pull request. A reviewer may appear
// multiple times; the list preserves provider order.
type Review struct {
	Author string
	State  ReviewState
}

// Tristate represents a provider-reported boolean that may also be unknown.
type Tristate int

// Tristate values. The zero value is unknown on purpose: a provider that
// never reports mergeability yields TristateUnknown without extra work.
const (
	TristateUnknown Tristate = iota
	TristateNo
	TristateYes
)

// String returns "unknown", "no", or "yes".
func (t Tristate) String() string {
	switch t {
	case TristateYes:
		return "yes"
	case TristateNo:
		return "no"
	default:
		return "unknown"
	}
}

// PullRequest is the canonical representation of a pull/merge request.
//
// Readiness status is never stored on this struct; it is always derived from
// the fields below by the status package.
type PullRequest struct {
	ID           string
	Provider     ProviderKind
	RepositoryID string
	Number       int
	Title        string
	Author       string
	SourceBranch string
	TargetBranch string

	IsDraft      bool
	HasConflicts bool
	Mergeable    Tristate

	CiChecks []CiCheck
	Reviews  []Review

	Additions     int
	Deletions     int
	CommentsCount int
}

// FileStatus is the canonical change type of a file in a diff.
type FileStatus string

// FileStatus values.
const (
	FileAdded     FileStatus = "added"
	FileModified  FileStatus = "modified"
	FileDeleted   FileStatus = "deleted"
	FileRenamed   FileStatus = "renamed"
	FileCopied    FileStatus = "copied"
	FileUnchanged FileStatus = "unchanged"
)

// DiffFile is one file of a normalized pull request diff.
//
// Changes is always recomputed as Additions+Deletions; provider-reported
// totals are not trusted. IsBinary implies Patch is empty.
type DiffFile struct {
	FilePath         string
	Status           FileStatus
	Additions        int
	Deletions        int
	Changes          int
	Patch            string
	PreviousFilename string
	Language         string
	IsBinary         bool
}

// TokenValidation is the result of validating a provider credential.
type TokenValidation struct {
	Username string
}

// DiscoveredRepository is a repository visible to the validated credential.
type DiscoveredRepository struct {
	Provider      ProviderKind
	Owner         string
	Name          string
	FullName      string
	Private       bool
	DefaultBranch string
}

// MergeOutcome is the provider's answer to a merge call.
type MergeOutcome struct {
	Merged  bool
	SHA     string
	Message string
}
