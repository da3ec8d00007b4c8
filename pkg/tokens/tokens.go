// Package tokens resolves provider access tokens per account.
//
// The core never persists credentials; it reads them through a [Source] so
// the surrounding application can plug in its credential store. The
// refreshing source serializes refresh per account, so two concurrent
// readers never trigger duplicate refresh calls and always observe either
// the pre- or post-refresh token, never a torn value.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prampel/prampel/internal/security"
)

// ErrUnknownAccount is returned when no credential exists for an account.
var ErrUnknownAccount = errors.New("no credential configured for account")

// Source yields the current access token of an account.
type Source interface {
	Token(ctx context.Context, accountID string) (security.SecureToken, error)
}

// StaticSource serves fixed tokens from memory. Suits the CLI, where tokens
// come from the environment and never expire mid-run.
type StaticSource map[string]security.SecureToken

// Token implements Source.
func (s StaticSource) Token(_ context.Context, accountID string) (security.SecureToken, error) {
	token, ok := s[accountID]
	if !ok || token.IsEmpty() {
		return security.SecureToken{}, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return token, nil
}

// RefreshFunc obtains a fresh token for an account together with its expiry.
type RefreshFunc func(ctx context.Context, accountID string) (security.SecureToken, time.Time, error)

// RefreshingSource caches tokens per account and refreshes them through a
// RefreshFunc when expired. Refresh is serialized with a per-account mutex;
// accounts never block each other.
type RefreshingSource struct {
	mu       sync.Mutex
	accounts map[string]*accountToken
	refresh  RefreshFunc
}

type accountToken struct {
	mu        sync.Mutex
	token     security.SecureToken
	expiresAt time.Time
}

// NewRefreshingSource creates a refreshing source backed by refresh.
func NewRefreshingSource(refresh RefreshFunc) *RefreshingSource {
	return &RefreshingSource{
		accounts: make(map[string]*accountToken),
		refresh:  refresh,
	}
}

// Token implements Source. The first caller of an expired account performs
// the refresh; concurrent callers wait on the account mutex and read the
// refreshed value.
func (s *RefreshingSource) Token(ctx context.Context, accountID string) (security.SecureToken, error) {
	acct := s.account(accountID)

	acct.mu.Lock()
	defer acct.mu.Unlock()

	if !acct.token.IsEmpty() && time.Now().Before(acct.expiresAt) {
		return acct.token, nil
	}

	token, expiresAt, err := s.refresh(ctx, accountID)
	if err != nil {
		return security.SecureToken{}, fmt.Errorf("failed to refresh token for account %s: %w", accountID, err)
	}

	acct.token = token
	acct.expiresAt = expiresAt
	return token, nil
}

func (s *RefreshingSource) account(accountID string) *accountToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		acct = &accountToken{}
		s.accounts[accountID] = acct
	}
	return acct
}
