package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/sgaunet/bullets"

	"github.com/prampel/prampel/internal/security"
	"github.com/prampel/prampel/pkg/bitbucket"
	ghclient "github.com/prampel/prampel/pkg/github"
	glclient "github.com/prampel/prampel/pkg/gitlab"
	"github.com/prampel/prampel/pkg/model"
)

// errUnsupportedProvider is returned for a provider kind outside the closed
// set {github, gitlab, bitbucket}.
var errUnsupportedProvider = errors.New("unsupported provider")

// Credentials hold what an adapter needs to authenticate. Username is only
// used by Bitbucket (app passwords are always paired with a username).
type Credentials struct {
	Token    security.SecureToken
	Username string
}

// New creates the adapter for the given provider kind. timeout bounds each
// individual provider call.
//
//nolint:ireturn // Factory function must return interface to enable provider abstraction.
func New(kind model.ProviderKind, creds Credentials, timeout time.Duration, logger *bullets.Logger) (Provider, error) {
	switch kind {
	case model.ProviderGitHub:
		client, err := ghclient.NewClient(creds.Token.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return NewGitHubAdapter(client, timeout, logger), nil

	case model.ProviderGitLab:
		client, err := glclient.NewClient(creds.Token.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to create GitLab client: %w", err)
		}
		return NewGitLabAdapter(client, timeout, logger), nil

	case model.ProviderBitbucket:
		client, err := bitbucket.NewClient(creds.Username, creds.Token.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to create Bitbucket client: %w", err)
		}
		return NewBitbucketAdapter(client, timeout, logger), nil

	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedProvider, kind)
	}
}
