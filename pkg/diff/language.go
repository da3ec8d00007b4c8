// Package diff normalizes provider diff payloads into the canonical model.
//
// Provider adapters own the mapping of their native file-status vocabularies;
// this package owns everything vocabulary-independent: language and binary
// detection, patch line counting, splitting raw unified diffs, and the
// TTL-cached diff read service.
package diff

import (
	"path/filepath"
	"strings"
)

// languageByExtension maps lowercase file extensions to a display language.
// Unknown extensions yield no language, never an error.
var languageByExtension = map[string]string{
	".go":    "Go",
	".rs":    "Rust",
	".py":    "Python",
	".rb":    "Ruby",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".kt":    "Kotlin",
	".swift": "Swift",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".php":   "PHP",
	".scala": "Scala",
	".sh":    "Shell",
	".bash":  "Shell",
	".zsh":   "Shell",
	".sql":   "SQL",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".less":  "Less",
	".json":  "JSON",
	".yaml":  "YAML",
	".yml":   "YAML",
	".toml":  "TOML",
	".xml":   "XML",
	".md":    "Markdown",
	".proto": "Protocol Buffers",
	".tf":    "Terraform",
	".lua":   "Lua",
	".ex":    "Elixir",
	".exs":   "Elixir",
	".erl":   "Erlang",
	".hs":    "Haskell",
	".clj":   "Clojure",
	".dart":  "Dart",
	".r":     "R",
	".pl":    "Perl",
	".vim":   "Vim Script",
}

// binaryExtensions lists file extensions treated as binary: images, archives,
// executables, fonts, and common media. Matching is case-insensitive.
var binaryExtensions = map[string]struct{}{
	// images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".webp": {}, ".tiff": {}, ".psd": {},
	// archives
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {}, ".7z": {},
	".rar": {}, ".jar": {}, ".war": {},
	// executables and objects
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".o": {},
	".a": {}, ".class": {}, ".wasm": {},
	// fonts
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
	// media
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wav": {}, ".flac": {},
	".ogg": {}, ".webm": {},
	// documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {},
}

// Language returns the display language for a file path, or "" when the
// extension is not recognized.
func Language(path string) string {
	return languageByExtension[strings.ToLower(filepath.Ext(path))]
}

// IsBinary reports whether a file path matches the binary extension
// allowlist.
func IsBinary(path string) bool {
	_, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
