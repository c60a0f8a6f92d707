package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/grantd/grantd/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newRecord(code string) *core.AuthorizationRecord {
	return &core.AuthorizationRecord{
		ClientID:      "C1",
		PrincipalName: "alice",
		Code:          code,
		RedirectURI:   "https://app/cb",
		Scopes:        []string{"read"},
	}
}

func consumed(record *core.AuthorizationRecord) *core.AuthorizationRecord {
	return record.WithAccessToken(&core.AccessToken{
		Value:     "signed." + record.Code,
		TokenType: core.TokenTypeBearer,
	}, nil)
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(5 * time.Minute)

	record := newRecord("abc")
	if err := st.Save(ctx, record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := st.FindByCode(ctx, "abc", core.TokenKindAuthorizationCode)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if diff := cmp.Diff(record, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	// stored snapshot is isolated from later mutation of the argument
	record.PrincipalName = "mallory"
	got, err = st.FindByCode(ctx, "abc", core.TokenKindAuthorizationCode)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.PrincipalName != "alice" {
		t.Errorf("stored record aliased caller memory: principal = %q", got.PrincipalName)
	}

	if _, err := st.FindByCode(ctx, "missing", core.TokenKindAuthorizationCode); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("find of unknown code = %v, want ErrGrantNotFound", err)
	}
	if _, err := st.FindByCode(ctx, "abc", core.TokenKind("refresh_token")); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("find with foreign kind = %v, want ErrGrantNotFound", err)
	}
}

func TestInMemoryStoreInsertCollision(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(5 * time.Minute)

	if err := st.Save(ctx, newRecord("abc")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := st.Save(ctx, newRecord("abc")); !errors.Is(err, core.ErrCodeExists) {
		t.Errorf("duplicate insert = %v, want ErrCodeExists", err)
	}
}

func TestInMemoryStoreConsumeIfUnconsumed(t *testing.T) {
	ctx := context.Background()

	t.Run("first consume wins, second loses", func(t *testing.T) {
		st := NewInMemoryStore(5 * time.Minute)
		record := newRecord("abc")
		if err := st.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		if err := st.Save(ctx, consumed(record)); err != nil {
			t.Fatalf("first consume failed: %v", err)
		}
		if err := st.Save(ctx, consumed(record)); !errors.Is(err, core.ErrCodeConsumed) {
			t.Errorf("second consume = %v, want ErrCodeConsumed", err)
		}
	})

	t.Run("consuming an absent code fails", func(t *testing.T) {
		st := NewInMemoryStore(5 * time.Minute)
		if err := st.Save(ctx, consumed(newRecord("ghost"))); !errors.Is(err, core.ErrGrantNotFound) {
			t.Errorf("consume of absent code = %v, want ErrGrantNotFound", err)
		}
	})

	t.Run("concurrent consumers see one winner", func(t *testing.T) {
		st := NewInMemoryStore(5 * time.Minute)
		record := newRecord("abc")
		if err := st.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		const attempts = 16
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = st.Save(ctx, consumed(record))
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else if !errors.Is(err, core.ErrCodeConsumed) {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("%d consumers won, want exactly 1", wins)
		}
	})
}

func TestInMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	st := NewInMemoryStoreWithClock(5*time.Minute, clock)

	if err := st.Save(ctx, newRecord("abc")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	clock.Advance(4 * time.Minute)
	if _, err := st.FindByCode(ctx, "abc", core.TokenKindAuthorizationCode); err != nil {
		t.Fatalf("find before expiry failed: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := st.FindByCode(ctx, "abc", core.TokenKindAuthorizationCode); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("find after expiry = %v, want ErrGrantNotFound", err)
	}

	// consuming an expired code fails like an absent one
	if err := st.Save(ctx, consumed(newRecord("abc"))); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("consume after expiry = %v, want ErrGrantNotFound", err)
	}

	// the slot is free for a fresh grant again
	if err := st.Save(ctx, newRecord("abc")); err != nil {
		t.Errorf("re-insert after expiry failed: %v", err)
	}
}

func TestInMemoryStoreListActive(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	st := NewInMemoryStoreWithClock(5*time.Minute, clock)

	if err := st.Save(ctx, newRecord("bravo")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	clock.Advance(3 * time.Minute)
	if err := st.Save(ctx, newRecord("alpha")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	active, err := st.ListActive(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	codes := make([]string, len(active))
	for i, r := range active {
		codes[i] = r.Code
	}
	if diff := cmp.Diff([]string{"alpha", "bravo"}, codes); diff != "" {
		t.Errorf("active codes mismatch (-want +got):\n%s", diff)
	}

	// bravo expires, alpha survives
	clock.Advance(3 * time.Minute)
	active, err = st.ListActive(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 1 || active[0].Code != "alpha" {
		t.Errorf("active after expiry = %v, want only alpha", active)
	}
}

func TestInMemoryStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	st := NewInMemoryStoreWithClock(5*time.Minute, clock)

	for _, code := range []string{"one", "two"} {
		if err := st.Save(ctx, newRecord(code)); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	clock.Advance(3 * time.Minute)
	if err := st.Save(ctx, newRecord("three")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	clock.Advance(3 * time.Minute)
	deleted, err := st.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d entries, want 2", deleted)
	}

	if _, err := st.FindByCode(ctx, "three", core.TokenKindAuthorizationCode); err != nil {
		t.Errorf("unexpired entry was purged: %v", err)
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore(5 * time.Minute)

	if err := st.Save(ctx, newRecord("abc")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := st.Delete(ctx, "abc"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := st.Delete(ctx, "abc"); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("second delete = %v, want ErrGrantNotFound", err)
	}
}
