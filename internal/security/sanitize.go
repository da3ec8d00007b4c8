package security

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

var (
	gitlabTokenRegex    *regexp.Regexp
	githubTokenRegex    *regexp.Regexp
	bitbucketTokenRegex *regexp.Regexp
	authHeaderRegex     *regexp.Regexp
	bearerTokenRegex    *regexp.Regexp
	regexOnce           sync.Once

	errSanitized = errors.New("sanitized error")
)

func compilePatterns() {
	regexOnce.Do(func() {
		// GitLab personal access tokens: glpat-...
		gitlabTokenRegex = regexp.MustCompile(`glpat-[a-zA-Z0-9_-]{6,}`)

		// GitHub personal access tokens: ghp_/gho_/ghs_ prefixes
		githubTokenRegex = regexp.MustCompile(`gh[ops]_[a-zA-Z0-9]{20,}`)

		// Bitbucket app passwords: ATBB prefix
		bitbucketTokenRegex = regexp.MustCompile(`ATBB[a-zA-Z0-9]{16,}`)

		// Authorization headers, Basic or Bearer
		authHeaderRegex = regexp.MustCompile(`(?i)authorization:\s*(?:bearer|basic)\s+[a-zA-Z0-9+/=_-]{10,}`)

		// Long base64-like strings that are likely tokens
		bearerTokenRegex = regexp.MustCompile(`\b[A-Za-z0-9+/=]{40,200}\b`)
	})
}

// SanitizeString redacts anything that looks like a provider credential:
// GitLab/GitHub/Bitbucket token formats, authorization headers, and long
// base64-like strings.
//
// Safe for concurrent use; patterns are compiled once.
func SanitizeString(s string) string {
	compilePatterns()

	s = gitlabTokenRegex.ReplaceAllString(s, "[gitlab-token-redacted]")
	s = githubTokenRegex.ReplaceAllString(s, "[github-token-redacted]")
	s = bitbucketTokenRegex.ReplaceAllString(s, "[bitbucket-token-redacted]")
	s = authHeaderRegex.ReplaceAllString(s, "Authorization: [redacted]")
	s = bearerTokenRegex.ReplaceAllString(s, "[token-redacted]")

	return s
}

// SanitizeError returns an error whose message has SanitizeString applied.
// The original error chain is not preserved; the result wraps an internal
// sentinel only. Returns nil for nil input.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", errSanitized, SanitizeString(err.Error()))
}

// UserMessage renders an error as a short message safe to show to end users:
// credentials are redacted. Returns "" for nil.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}
