// Package status classifies a canonical pull request into a traffic-light
// readiness signal.
//
// Classification is a pure, total function: blockers of different severities
// are collected independently and reduced by maximum severity. It never
// inspects anything outside the PullRequest and the caller's Options.
package status

import "github.com/prampel/prampel/pkg/model"

// Ampel is the green/yellow/red readiness classification of a pull request.
type Ampel string

// Ampel values.
const (
	Green  Ampel = "green"
	Yellow Ampel = "yellow"
	Red    Ampel = "red"
)

// Severity ranks a blocker. Error-severity blockers force red; warnings
// force yellow when no error is present.
type Severity int

// Severity values.
const (
	SeverityWarning Severity = iota + 1
	SeverityError
)

// Blocker codes.
const (
	BlockerConflicts        = "merge_conflicts"
	BlockerCiFailed         = "ci_failed"
	BlockerCiRunning        = "ci_running"
	BlockerChangesRequested = "changes_requested"
	BlockerAwaitingReview   = "awaiting_review"
	BlockerDraft            = "draft"
)

// Blocker is one condition preventing green status. All blockers are
// collected so callers can display them; only the maximum severity decides
// the final status.
type Blocker struct {
	Code     string
	Severity Severity
	Message  string
}

// Options adjust classification per caller.
type Options struct {
	// SkipReviewRequirement suppresses the missing-approval warning for
	// organizations that do not require review.
	SkipReviewRequirement bool
}

// Classify reduces the pull request to a single Ampel status.
func Classify(pr model.PullRequest, opts Options) Ampel {
	return reduce(Blockers(pr, opts))
}

// Blockers collects every blocker on the pull request in evaluation order.
// A pull request with no blockers is green.
func Blockers(pr model.PullRequest, opts Options) []Blocker {
	var blockers []Blocker

	if pr.HasConflicts {
		blockers = append(blockers, Blocker{
			Code:     BlockerConflicts,
			Severity: SeverityError,
			Message:  "merge conflicts with the target branch",
		})
	}

	blockers = append(blockers, ciBlockers(pr.CiChecks)...)
	blockers = append(blockers, reviewBlockers(pr.Reviews, opts)...)

	if pr.IsDraft {
		blockers = append(blockers, Blocker{
			Code:     BlockerDraft,
			Severity: SeverityWarning,
			Message:  "pull request is a draft",
		})
	}

	return blockers
}

func ciBlockers(checks []model.CiCheck) []Blocker {
	var failed, running bool
	for _, check := range checks {
		switch check.Status {
		case model.CheckCompleted:
			if check.Conclusion == model.CheckConclusionFailure ||
				check.Conclusion == model.CheckConclusionTimedOut {
				failed = true
			}
		case model.CheckQueued, model.CheckInProgress:
			running = true
		}
	}

	var blockers []Blocker
	if failed {
		blockers = append(blockers, Blocker{
			Code:     BlockerCiFailed,
			Severity: SeverityError,
			Message:  "one or more CI checks failed",
		})
	}
	// Running checks only warn when nothing has failed yet; a failure
	// already dominates and the extra warning is noise.
	if running && !failed {
		blockers = append(blockers, Blocker{
			Code:     BlockerCiRunning,
			Severity: SeverityWarning,
			Message:  "CI checks are still running",
		})
	}
	return blockers
}

func reviewBlockers(reviews []model.Review, opts Options) []Blocker {
	var changesRequested, approved bool
	// Every review counts: any changes_requested anywhere blocks, even if
	// the same author later approved.
	for _, review := range reviews {
		switch review.State {
		case model.ReviewChangesRequested:
			changesRequested = true
		case model.ReviewApproved:
			approved = true
		}
	}

	if changesRequested {
		return []Blocker{{
			Code:     BlockerChangesRequested,
			Severity: SeverityError,
			Message:  "a reviewer requested changes",
		}}
	}

	if !approved && !opts.SkipReviewRequirement {
		msg := "no approvals yet"
		if len(reviews) == 0 {
			msg = "no reviews yet"
		}
		return []Blocker{{
			Code:     BlockerAwaitingReview,
			Severity: SeverityWarning,
			Message:  msg,
		}}
	}

	return nil
}

func reduce(blockers []Blocker) Ampel {
	result := Green
	for _, b := range blockers {
		if b.Severity == SeverityError {
			return Red
		}
		result = Yellow
	}
	return result
}
