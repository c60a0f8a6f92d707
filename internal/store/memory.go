package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grantd/grantd/internal/core"
)

// DefaultCodeTTL is how long an issued code stays redeemable.
const DefaultCodeTTL = 5 * time.Minute

var _ core.AuthorizationStore = (*InMemoryStore)(nil)

// entry pairs a stored record with its code deadline.
type entry struct {
	record    *core.AuthorizationRecord
	expiresAt time.Time
}

// InMemoryStore keeps authorization grants in a mutex-guarded map. The
// consume-if-unconsumed check runs under the store lock, which is what makes
// concurrent exchanges of one code single-winner.
type InMemoryStore struct {
	mu      sync.RWMutex
	grants  map[string]entry
	codeTTL time.Duration
	clock   core.Clock
}

func NewInMemoryStore(codeTTL time.Duration) *InMemoryStore {
	return NewInMemoryStoreWithClock(codeTTL, core.SystemClock())
}

// NewInMemoryStoreWithClock injects the time source, for deterministic
// expiry in tests.
func NewInMemoryStoreWithClock(codeTTL time.Duration, clock core.Clock) *InMemoryStore {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &InMemoryStore{
		grants:  make(map[string]entry),
		codeTTL: codeTTL,
		clock:   clock,
	}
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string, kind core.TokenKind) (*core.AuthorizationRecord, error) {
	if kind != core.TokenKindAuthorizationCode {
		return nil, core.ErrGrantNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.grants[code]
	if !ok || !e.expiresAt.After(s.clock.Now()) {
		return nil, core.ErrGrantNotFound
	}
	return e.record.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, record *core.AuthorizationRecord) error {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.grants[record.Code]
	if ok && !existing.expiresAt.After(now) {
		// expired entries count as absent
		delete(s.grants, record.Code)
		ok = false
	}

	if !record.Consumed() {
		if ok {
			return core.ErrCodeExists
		}
		s.grants[record.Code] = entry{
			record:    record.Clone(),
			expiresAt: now.Add(s.codeTTL),
		}
		return nil
	}

	// consume-if-unconsumed
	if !ok {
		return core.ErrGrantNotFound
	}
	if existing.record.Consumed() {
		return core.ErrCodeConsumed
	}
	s.grants[record.Code] = entry{
		record:    record.Clone(),
		expiresAt: existing.expiresAt,
	}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[code]; !ok {
		return core.ErrGrantNotFound
	}
	delete(s.grants, code)
	return nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*core.AuthorizationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	records := make([]*core.AuthorizationRecord, 0)
	for _, e := range s.grants {
		if e.expiresAt.After(now) {
			records = append(records, e.record.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Code < records[j].Code
	})
	return records, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	deleted := 0
	for code, e := range s.grants {
		if !e.expiresAt.After(now) {
			delete(s.grants, code)
			deleted++
		}
	}
	return deleted, nil
}
