// Package cache backs the short lived auth state: email verification codes,
// 2FA challenge codes and the token denylist used by logout. Everything here
// expires on its own; nothing in this package is a source of truth.
package cache

import (
	"context"
	"time"
)

// CodeCache stores one-time codes and revocation markers with a TTL.
// The redis implementation is used in production, the memory one in tests.
type CodeCache interface {
	// SetCode stores the code under the key, replacing any previous one.
	SetCode(ctx context.Context, key, code string, ttl time.Duration) error
	// GetCode returns the stored code, or "" when absent or expired.
	GetCode(ctx context.Context, key string) (string, error)
	// DeleteCode removes the code so it can never be replayed.
	DeleteCode(ctx context.Context, key string) error
	// Denylist marks a token id revoked for the remaining token lifetime.
	Denylist(ctx context.Context, tokenId string, ttl time.Duration) error
	// IsDenylisted reports whether the token id has been revoked.
	IsDenylisted(ctx context.Context, tokenId string) (bool, error)
}

// Key builders. Keeping them in one place avoids drift between the handlers
// that set codes and the ones that verify them.

func RegistrationCodeKey(email string) string { return "register:code:" + email }
func TwoFactorCodeKey(userId string) string   { return "twofactor:code:" + userId }
func denylistKey(tokenId string) string       { return "token:denylist:" + tokenId }
