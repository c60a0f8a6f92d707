package core

import (
	"context"
	"time"
)

// AuthorizationStore persists authorization-code grants.
// Implementations: in-memory store, Postgres store, Redis store.
type AuthorizationStore interface {
	// FindByCode returns the record for a code, or ErrGrantNotFound if no
	// record of the given kind exists. Expired entries count as absent.
	FindByCode(ctx context.Context, code string, kind TokenKind) (*AuthorizationRecord, error)

	// Save persists a record. An unconsumed record is inserted
	// (ErrCodeExists on collision). A consumed record replaces the stored
	// one only if the stored one is still unconsumed; a caller losing that
	// race gets ErrCodeConsumed. This is the single-writer-wins guarantee
	// the exchange pipeline relies on.
	Save(ctx context.Context, record *AuthorizationRecord) error

	// Delete removes a record regardless of state. ErrGrantNotFound if absent.
	Delete(ctx context.Context, code string) error

	// ListActive returns unexpired records.
	ListActive(ctx context.Context) ([]*AuthorizationRecord, error)

	// DeleteExpired purges expired entries and returns how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}

// TokenSigner turns a claim set into a signed token artifact.
// May fail (key unavailable, claim set invalid); a failure must leave no trace.
type TokenSigner interface {
	// Sign serializes and signs the claim set.
	Sign(ctx context.Context, claims ClaimSet) (*SignedToken, error)

	// Algorithm returns the signature algorithm this signer uses.
	Algorithm() string
}

// Clock supplies the current time. Injected so token timestamps are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}
