// Package ui holds the interactive prompts of the prampel CLI.
package ui

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/prampel/prampel/pkg/model"
)

// MergePrompter asks the user to confirm destructive merge actions.
type MergePrompter struct{}

// NewMergePrompter creates a merge prompter.
func NewMergePrompter() *MergePrompter {
	return &MergePrompter{}
}

// ConfirmBulkMerge asks for confirmation before executing a bulk merge.
// Merging is irreversible, so the default answer is no.
func (p *MergePrompter) ConfirmBulkMerge(refs []model.PRRef, strategy model.MergeStrategy) (bool, error) {
	confirmed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Merge %d pull request(s) with strategy %q?", len(refs), strategy),
		Default: false,
	}

	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, fmt.Errorf("failed to get merge confirmation: %w", err)
	}
	return confirmed, nil
}

// ConfirmRetry asks whether the failed items of an operation should be
// retried.
func (p *MergePrompter) ConfirmRetry(failed int) (bool, error) {
	confirmed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("%d item(s) failed. Retry the failed items?", failed),
		Default: false,
	}

	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, fmt.Errorf("failed to get retry confirmation: %w", err)
	}
	return confirmed, nil
}

// SelectPullRequests lets the user narrow a candidate list down to the pull
// requests to merge. An empty candidate list yields an empty selection.
func (p *MergePrompter) SelectPullRequests(candidates []model.PRRef) ([]model.PRRef, error) {
	if len(candidates) == 0 {
		return []model.PRRef{}, nil
	}

	options := make([]string, len(candidates))
	byOption := make(map[string]model.PRRef, len(candidates))
	for i, ref := range candidates {
		options[i] = ref.String()
		byOption[options[i]] = ref
	}

	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Choose pull requests to merge:",
		Options: options,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return nil, fmt.Errorf("failed to get pull request selection: %w", err)
	}

	refs := make([]model.PRRef, len(selected))
	for i, option := range selected {
		refs[i] = byOption[option]
	}
	return refs, nil
}
