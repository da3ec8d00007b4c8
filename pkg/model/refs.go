package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errInvalidRepoRef = errors.New("invalid repository reference, want provider:owner/name")
	errInvalidPRRef   = errors.New("invalid pull request reference, want provider:owner/name#number")
)

const repoPathParts = 2

// RepoRef identifies a repository on a specific provider.
type RepoRef struct {
	Provider ProviderKind
	Owner    string
	Name     string
}

// ID returns the canonical repository identifier, e.g. "github:octo/widgets".
func (r RepoRef) ID() string {
	return fmt.Sprintf("%s:%s/%s", r.Provider, r.Owner, r.Name)
}

// Path returns the provider-side project path, e.g. "octo/widgets".
func (r RepoRef) Path() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoRef parses "provider:owner/name" into a RepoRef.
func ParseRepoRef(s string) (RepoRef, error) {
	prov, path, ok := strings.Cut(s, ":")
	if !ok {
		return RepoRef{}, fmt.Errorf("%w: %q", errInvalidRepoRef, s)
	}

	kind := ProviderKind(strings.ToLower(prov))
	if !kind.Valid() {
		return RepoRef{}, fmt.Errorf("%w: unknown provider %q", errInvalidRepoRef, prov)
	}

	parts := strings.Split(path, "/")
	if len(parts) != repoPathParts || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("%w: %q", errInvalidRepoRef, s)
	}

	return RepoRef{Provider: kind, Owner: parts[0], Name: parts[1]}, nil
}

// PRRef identifies a single pull request.
type PRRef struct {
	Repo   RepoRef
	Number int
}

// String returns the canonical pull request identifier,
// e.g. "github:octo/widgets#42".
func (r PRRef) String() string {
	return fmt.Sprintf("%s#%d", r.Repo.ID(), r.Number)
}

// ParsePRRef parses "provider:owner/name#number" into a PRRef.
func ParsePRRef(s string) (PRRef, error) {
	repoPart, numPart, ok := strings.Cut(s, "#")
	if !ok {
		return PRRef{}, fmt.Errorf("%w: %q", errInvalidPRRef, s)
	}

	repo, err := ParseRepoRef(repoPart)
	if err != nil {
		return PRRef{}, fmt.Errorf("%w: %q", errInvalidPRRef, s)
	}

	number, err := strconv.Atoi(numPart)
	if err != nil || number <= 0 {
		return PRRef{}, fmt.Errorf("%w: bad number %q", errInvalidPRRef, numPart)
	}

	return PRRef{Repo: repo, Number: number}, nil
}
