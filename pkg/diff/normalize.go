package diff

import (
	"strings"

	"github.com/prampel/prampel/pkg/model"
)

const diffHeaderPrefix = "diff --git "

// Finalize enforces the canonical DiffFile invariants in place: language and
// binary detection from the file path, Changes recomputed from
// Additions+Deletions, and no patch text on binary files.
func Finalize(f *model.DiffFile) {
	f.Language = Language(f.FilePath)
	f.IsBinary = IsBinary(f.FilePath)
	if f.IsBinary {
		f.Patch = ""
	}
	f.Changes = f.Additions + f.Deletions
}

// CountPatchLines counts added and deleted lines in a unified diff fragment.
// File header lines (+++, ---) are not counted.
func CountPatchLines(patch string) (additions, deletions int) {
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

// FilePatch is one file's fragment of a raw unified diff.
type FilePatch struct {
	OldPath string
	NewPath string
	Body    string
}

// SplitUnifiedDiff splits a raw multi-file unified diff (as returned by the
// Bitbucket diff endpoint) into per-file fragments. Paths are taken from the
// "diff --git a/... b/..." header with the a/ and b/ prefixes stripped.
// Input that contains no diff headers yields no fragments.
func SplitUnifiedDiff(raw string) []FilePatch {
	var patches []FilePatch
	var current *FilePatch
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.Body = strings.TrimRight(body.String(), "\n")
			patches = append(patches, *current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, diffHeaderPrefix) {
			flush()
			oldPath, newPath := parseDiffHeader(line)
			current = &FilePatch{OldPath: oldPath, NewPath: newPath}
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	return patches
}

// parseDiffHeader extracts old and new paths from a "diff --git a/x b/y"
// line. Paths with spaces are handled by splitting on " b/", which is
// unambiguous for the providers' generated diffs.
func parseDiffHeader(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, diffHeaderPrefix)

	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		oldPath = strings.TrimPrefix(rest[:idx], "a/")
		newPath = rest[idx+len(" b/"):]
		return oldPath, newPath
	}

	// Header without a/ b/ prefixes; best effort on whitespace.
	parts := strings.Fields(rest)
	if len(parts) >= 2 {
		return parts[0], parts[1]
	}
	return "", ""
}
