package diff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prampel/prampel/pkg/diff"
	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/testing/fixtures"
)

func TestLanguage(t *testing.T) {
	assert.Equal(t, "Go", diff.Language("pkg/widgets/list.go"))
	assert.Equal(t, "Rust", diff.Language("src/render.rs"))
	assert.Equal(t, "TypeScript", diff.Language("web/App.TSX"))
	assert.Equal(t, "", diff.Language("Makefile"))
	assert.Equal(t, "", diff.Language("data.unknownext"))
	assert.Equal(t, "", diff.Language(""))
}

func TestIsBinary(t *testing.T) {
	assert.True(t, diff.IsBinary("assets/logo.png"))
	assert.True(t, diff.IsBinary("assets/LOGO.PNG"))
	assert.True(t, diff.IsBinary("dist/app.wasm"))
	assert.False(t, diff.IsBinary("pkg/widgets/list.go"))
	assert.False(t, diff.IsBinary("README.md"))
}

func TestFinalize(t *testing.T) {
	t.Run("text file", func(t *testing.T) {
		f := fixtures.TextDiffFile()
		diff.Finalize(&f)

		assert.Equal(t, "Go", f.Language)
		assert.False(t, f.IsBinary)
		assert.NotEmpty(t, f.Patch)
		assert.Equal(t, 9, f.Changes)
	})

	t.Run("binary file drops patch", func(t *testing.T) {
		f := fixtures.BinaryDiffFile()
		f.Patch = "Binary files differ"
		diff.Finalize(&f)

		assert.True(t, f.IsBinary)
		assert.Empty(t, f.Patch)
		assert.Equal(t, "", f.Language)
	})

	t.Run("changes recomputed", func(t *testing.T) {
		f := model.DiffFile{FilePath: "a.go", Additions: 3, Deletions: 5, Changes: 99}
		diff.Finalize(&f)
		assert.Equal(t, 8, f.Changes)
	})
}

func TestCountPatchLines(t *testing.T) {
	t.Run("counts additions and deletions", func(t *testing.T) {
		patch := "@@ -1,3 +1,4 @@\n context\n-removed\n+added one\n+added two\n context"
		add, del := diff.CountPatchLines(patch)
		assert.Equal(t, 2, add)
		assert.Equal(t, 1, del)
	})

	t.Run("skips file headers", func(t *testing.T) {
		patch := "--- a/file.go\n+++ b/file.go\n@@ -1 +1 @@\n-x\n+y"
		add, del := diff.CountPatchLines(patch)
		assert.Equal(t, 1, add)
		assert.Equal(t, 1, del)
	})

	t.Run("empty patch", func(t *testing.T) {
		add, del := diff.CountPatchLines("")
		assert.Zero(t, add)
		assert.Zero(t, del)
	})
}

func TestSplitUnifiedDiff(t *testing.T) {
	t.Run("splits per file", func(t *testing.T) {
		raw := "diff --git a/one.go b/one.go\n" +
			"--- a/one.go\n+++ b/one.go\n@@ -1 +1 @@\n-a\n+b\n" +
			"diff --git a/two.go b/two.go\n" +
			"--- a/two.go\n+++ b/two.go\n@@ -1 +1 @@\n-c\n+d\n"

		patches := diff.SplitUnifiedDiff(raw)
		require.Len(t, patches, 2)
		assert.Equal(t, "one.go", patches[0].OldPath)
		assert.Equal(t, "one.go", patches[0].NewPath)
		assert.Contains(t, patches[0].Body, "+b")
		assert.NotContains(t, patches[0].Body, "+d")
		assert.Equal(t, "two.go", patches[1].NewPath)
	})

	t.Run("rename keeps both paths", func(t *testing.T) {
		raw := "diff --git a/old/name.rs b/new/name.rs\n" +
			"similarity index 98%\nrename from old/name.rs\nrename to new/name.rs\n"

		patches := diff.SplitUnifiedDiff(raw)
		require.Len(t, patches, 1)
		assert.Equal(t, "old/name.rs", patches[0].OldPath)
		assert.Equal(t, "new/name.rs", patches[0].NewPath)
	})

	t.Run("no headers yields nothing", func(t *testing.T) {
		assert.Empty(t, diff.SplitUnifiedDiff("just some text\nwithout headers"))
		assert.Empty(t, diff.SplitUnifiedDiff(""))
	})
}
