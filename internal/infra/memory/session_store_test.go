package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

func TestSessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	store := NewSessionStoreWithClock(func() time.Time { return now })

	if err := store.Set(ctx, "temp-quiz-1.2.3.4", []string{"s1", "s2"}, 1800*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(1799 * time.Second)
	steps, err := store.Get(ctx, "temp-quiz-1.2.3.4")
	if err != nil {
		t.Fatalf("get before expiry: %v", err)
	}
	if !reflect.DeepEqual(steps, []string{"s1", "s2"}) {
		t.Fatalf("unexpected steps %v", steps)
	}
	ttl, err := store.TTL(ctx, "temp-quiz-1.2.3.4")
	if err != nil || ttl != time.Second {
		t.Fatalf("expected 1s remaining, got %v (%v)", ttl, err)
	}

	now = now.Add(time.Second)
	if _, err := store.Get(ctx, "temp-quiz-1.2.3.4"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after expiry, got %v", err)
	}
	if _, err := store.TTL(ctx, "temp-quiz-1.2.3.4"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ttl not found after expiry, got %v", err)
	}
}

func TestSessionStoreSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	store := NewSessionStoreWithClock(func() time.Time { return now })

	ok, err := store.SetIfAbsent(ctx, "k", []string{"a"}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first set should win: ok=%v err=%v", ok, err)
	}
	ok, err = store.SetIfAbsent(ctx, "k", []string{"b"}, time.Minute)
	if err != nil || ok {
		t.Fatalf("second set should lose: ok=%v err=%v", ok, err)
	}
	steps, _ := store.Get(ctx, "k")
	if steps[0] != "a" {
		t.Fatalf("value overwritten: %v", steps)
	}

	now = now.Add(time.Minute)
	ok, err = store.SetIfAbsent(ctx, "k", []string{"c"}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("set after expiry should win: ok=%v err=%v", ok, err)
	}
}
