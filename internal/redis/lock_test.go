package redisclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T, ttl, wait time.Duration) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDayLocker(client, ttl, wait), mr
}

func TestWithDentistDayRunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second, time.Second)
	dentist := uuid.New()

	ran := false
	err := locker.WithDentistDay(context.Background(), dentist, "2026-02-05", func(ctx context.Context) error {
		ran = true
		if !mr.Exists("lock:dentist:" + dentist.String() + ":2026-02-05") {
			t.Error("lock key missing inside the critical section")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithDentistDay: %v", err)
	}
	if !ran {
		t.Fatal("critical section did not run")
	}
	if mr.Exists("lock:dentist:" + dentist.String() + ":2026-02-05") {
		t.Error("lock key not released")
	}
}

func TestWithDentistDayPropagatesError(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second, time.Second)
	dentist := uuid.New()
	sentinel := errors.New("boom")

	err := locker.WithDentistDay(context.Background(), dentist, "2026-02-05", func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want the inner error", err)
	}
	// The lock is released even when the section fails.
	if mr.Exists("lock:dentist:" + dentist.String() + ":2026-02-05") {
		t.Error("lock key not released after error")
	}
}

func TestWithDentistDayContention(t *testing.T) {
	locker, _ := newTestLocker(t, time.Second, 50*time.Millisecond)
	dentist := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = locker.WithDentistDay(context.Background(), dentist, "2026-02-05", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	err := locker.WithDentistDay(context.Background(), dentist, "2026-02-05", func(ctx context.Context) error {
		t.Error("second holder entered a held critical section")
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Errorf("got %v, want ErrLockNotAcquired", err)
	}
	close(release)
	wg.Wait()

	// A different dentist's day is independent.
	other := uuid.New()
	if err := locker.WithDentistDay(context.Background(), other, "2026-02-05", func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("unrelated lock blocked: %v", err)
	}
}

func TestWithDentistDayReacquireAfterRelease(t *testing.T) {
	locker, _ := newTestLocker(t, time.Second, 100*time.Millisecond)
	dentist := uuid.New()

	for i := 0; i < 3; i++ {
		if err := locker.WithDentistDay(context.Background(), dentist, "2026-02-05", func(ctx context.Context) error {
			return nil
		}); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
	}
}
