package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/grantd/grantd/internal/core"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStoreWithClient(client, "grantd-test", 5*time.Minute)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)

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

	if _, err := st.FindByCode(ctx, "missing", core.TokenKindAuthorizationCode); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("find of unknown code = %v, want ErrGrantNotFound", err)
	}
	if err := st.Save(ctx, newRecord("abc")); !errors.Is(err, core.ErrCodeExists) {
		t.Errorf("duplicate insert = %v, want ErrCodeExists", err)
	}
}

func TestRedisStoreConsumeIfUnconsumed(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)

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

	got, err := st.FindByCode(ctx, "abc", core.TokenKindAuthorizationCode)
	if err != nil {
		t.Fatalf("find after consume failed: %v", err)
	}
	if !got.Consumed() {
		t.Error("stored record not marked consumed")
	}

	if err := st.Save(ctx, consumed(newRecord("ghost"))); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("consume of absent code = %v, want ErrGrantNotFound", err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	st, mr := newRedisTestStore(t)

	if err := st.Save(ctx, newRecord("abc")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	if _, err := st.FindByCode(ctx, "abc", core.TokenKindAuthorizationCode); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("find after expiry = %v, want ErrGrantNotFound", err)
	}
	if err := st.Save(ctx, consumed(newRecord("abc"))); !errors.Is(err, core.ErrGrantNotFound) {
		t.Errorf("consume after expiry = %v, want ErrGrantNotFound", err)
	}

	// the code is insertable again once the key is gone
	if err := st.Save(ctx, newRecord("abc")); err != nil {
		t.Errorf("re-insert after expiry failed: %v", err)
	}
}

func TestRedisStoreListActive(t *testing.T) {
	ctx := context.Background()
	st, mr := newRedisTestStore(t)

	if err := st.Save(ctx, newRecord("one")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := st.Save(ctx, newRecord("two")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	active, err := st.ListActive(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("listed %d records, want 2", len(active))
	}

	// after TTL eviction the stale index entries are skipped and trimmed
	mr.FastForward(6 * time.Minute)
	active, err = st.ListActive(ctx)
	if err != nil {
		t.Fatalf("list after expiry failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("listed %d records after expiry, want 0", len(active))
	}
}

func TestRedisStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	st, mr := newRedisTestStore(t)

	if err := st.Save(ctx, newRecord("one")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := st.Save(ctx, newRecord("two")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	deleted, err := st.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("reaped %d index entries, want 2", deleted)
	}
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)

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
