package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/storage"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestStayLocksSerialisesSameStay(t *testing.T) {
	srv, client := newTestClient(t)
	locks := NewStayLocks(client, "test:", time.Second, 50*time.Millisecond)
	locks.Retry = 5 * time.Millisecond

	release, err := locks.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if !srv.Exists("test:stays:lock:s1") {
		t.Fatalf("lock key not written")
	}
	if _, err := locks.Lock(context.Background(), "s1"); !errors.Is(err, policies.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held, got %v", err)
	}
	if _, err := locks.Lock(context.Background(), "s2"); err != nil {
		t.Fatalf("other stay should not block: %v", err)
	}

	release()
	release()
	if srv.Exists("test:stays:lock:s1") {
		t.Fatalf("lock key should be released")
	}
	again, err := locks.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	again()
}

func TestStayLocksReleaseKeepsForeignToken(t *testing.T) {
	srv, client := newTestClient(t)
	locks := NewStayLocks(client, "", time.Second, 0)

	release, err := locks.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	// Simulate expiry followed by another holder.
	if err := srv.Set("stays:lock:s1", "someone-else"); err != nil {
		t.Fatalf("set: %v", err)
	}
	release()
	got, err := srv.Get("stays:lock:s1")
	if err != nil || got != "someone-else" {
		t.Fatalf("foreign lock must survive release, got %q err=%v", got, err)
	}
}

func TestStayLocksHonoursContext(t *testing.T) {
	_, client := newTestClient(t)
	locks := NewStayLocks(client, "", time.Second, 0)
	locks.Retry = 5 * time.Millisecond

	release, err := locks.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(ctx, "s1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStayLocksReportsUnavailableStore(t *testing.T) {
	srv, client := newTestClient(t)
	locks := NewStayLocks(client, "", time.Second, 0)
	srv.Close()

	if _, err := locks.Lock(context.Background(), "s1"); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
