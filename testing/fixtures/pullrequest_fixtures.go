// Package fixtures provides common test data structures for testing.
package fixtures

import "github.com/prampel/prampel/pkg/model"

// WidgetsRepo returns a GitHub repository reference for testing.
func WidgetsRepo() model.RepoRef {
	return model.RepoRef{Provider: model.ProviderGitHub, Owner: "octo", Name: "widgets"}
}

// GadgetsRepo returns a second repository reference for multi-repo tests.
func GadgetsRepo() model.RepoRef {
	return model.RepoRef{Provider: model.ProviderGitHub, Owner: "octo", Name: "gadgets"}
}

// PR returns a pull request reference into the given repository.
func PR(repo model.RepoRef, number int) model.PRRef {
	return model.PRRef{Repo: repo, Number: number}
}

// GreenPullRequest returns a pull request with passing CI, an approval, and
// no conflicts.
func GreenPullRequest(ref model.PRRef) *model.PullRequest {
	return &model.PullRequest{
		ID:           ref.String(),
		Provider:     ref.Repo.Provider,
		RepositoryID: ref.Repo.ID(),
		Number:       ref.Number,
		Title:        "Add pagination to the widget list",
		Author:       "octocat",
		SourceBranch: "feature/pagination",
		TargetBranch: "main",
		Mergeable:    model.TristateYes,
		CiChecks: []model.CiCheck{
			{Name: "build", Status: model.CheckCompleted, Conclusion: model.CheckConclusionSuccess},
			{Name: "test", Status: model.CheckCompleted, Conclusion: model.CheckConclusionSuccess},
		},
		Reviews: []model.Review{
			{Author: "reviewer", State: model.ReviewApproved},
		},
		Additions: 120,
		Deletions: 14,
	}
}

// DraftPullRequest returns an otherwise green pull request marked as draft.
func DraftPullRequest(ref model.PRRef) *model.PullRequest {
	pr := GreenPullRequest(ref)
	pr.IsDraft = true
	return pr
}

// ConflictingPullRequest returns a pull request with merge conflicts.
func ConflictingPullRequest(ref model.PRRef) *model.PullRequest {
	pr := GreenPullRequest(ref)
	pr.HasConflicts = true
	pr.Mergeable = model.TristateNo
	return pr
}

// FailingCiPullRequest returns a pull request with one failed CI check.
func FailingCiPullRequest(ref model.PRRef) *model.PullRequest {
	pr := GreenPullRequest(ref)
	pr.CiChecks = []model.CiCheck{
		{Name: "build", Status: model.CheckCompleted, Conclusion: model.CheckConclusionSuccess},
		{Name: "test", Status: model.CheckCompleted, Conclusion: model.CheckConclusionFailure},
	}
	return pr
}

// ChangesRequestedPullRequest returns a pull request where one reviewer
// requested changes and another approved.
func ChangesRequestedPullRequest(ref model.PRRef) *model.PullRequest {
	pr := GreenPullRequest(ref)
	pr.Reviews = []model.Review{
		{Author: "reviewer", State: model.ReviewChangesRequested},
		{Author: "other", State: model.ReviewApproved},
	}
	return pr
}

// UnreviewedPullRequest returns an otherwise green pull request without any
// reviews.
func UnreviewedPullRequest(ref model.PRRef) *model.PullRequest {
	pr := GreenPullRequest(ref)
	pr.Reviews = nil
	return pr
}

// TextDiffFile returns a modified source file with a small patch.
func TextDiffFile() model.DiffFile {
	return model.DiffFile{
		FilePath:  "pkg/widgets/list.go",
		Status:    model.FileModified,
		Additions: 7,
		Deletions: 2,
		Patch: `@@ -10,4 +10,9 @@ func List() {
-	old := 1
-	_ = old
+	page := 1
+	size := 20
+	_ = page
+	_ = size
+	render()
+	flush()
+	done()
`,
	}
}

// RenamedDiffFile returns a renamed file carrying its previous path.
func RenamedDiffFile() model.DiffFile {
	return model.DiffFile{
		FilePath:         "pkg/widgets/render.rs",
		Status:           model.FileRenamed,
		PreviousFilename: "pkg/widgets/draw.rs",
		Additions:        1,
		Deletions:        1,
	}
}

// BinaryDiffFile returns a binary asset change.
func BinaryDiffFile() model.DiffFile {
	return model.DiffFile{
		FilePath:  "assets/logo.png",
		Status:    model.FileAdded,
		Additions: 0,
		Deletions: 0,
	}
}
