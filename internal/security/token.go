// Package security provides credential masking and user-safe error messages.
//
// Every provider call carries a personal access token; nothing that can end
// up in a log line or a merge item error message may contain one.
package security

import "fmt"

const (
	// Tokens shorter than this are fully redacted instead of partially masked.
	minTokenLengthForPartialMask = 8
	// Number of trailing characters kept visible when masking.
	maskShowChars = 4

	maskEmpty    = "[empty]"
	maskRedacted = "[redacted]"
)

// SecureToken wraps a provider access token so it cannot leak through
// formatting. String and GoString return a masked value; only Value exposes
// the real token.
type SecureToken struct {
	value string
}

// NewSecureToken wraps a raw token value.
func NewSecureToken(token string) SecureToken {
	return SecureToken{value: token}
}

// String implements fmt.Stringer with a masked representation.
func (t SecureToken) String() string {
	if t.value == "" {
		return maskEmpty
	}
	if len(t.value) < minTokenLengthForPartialMask {
		return maskRedacted
	}
	return fmt.Sprintf("[token:****%s]", t.value[len(t.value)-maskShowChars:])
}

// GoString implements fmt.GoStringer so %#v cannot leak the token either.
func (t SecureToken) GoString() string {
	return t.String()
}

// Value returns the raw token. Only call this to authenticate a provider
// client; never log or print the result.
func (t SecureToken) Value() string {
	return t.value
}

// IsEmpty reports whether the token is unset.
func (t SecureToken) IsEmpty() bool {
	return t.value == ""
}
