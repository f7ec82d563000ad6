package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/cache"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore()

	if err := s.Set(ctx, "short", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Error("expired key still present")
	}
	if v, ok, _ := s.Get(ctx, "forever"); !ok || string(v) != "v" {
		t.Errorf("forever = %q, %v", v, ok)
	}
	if err := s.Delete(ctx, "forever"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "forever"); ok {
		t.Error("deleted key still present")
	}
}

func TestRoundPointer(t *testing.T) {
	ctx := context.Background()
	p := cache.NewRoundPointer(cache.NewMemoryStore(), "racing10:current_round")

	got, err := p.Current(ctx)
	if err != nil || got != 0 {
		t.Fatalf("unset pointer = %v, %v", got, err)
	}

	want := domain.NewPeriod(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), 42)
	if err := p.SetCurrent(ctx, want); err != nil {
		t.Fatal(err)
	}
	if got, err := p.Current(ctx); err != nil || got != want {
		t.Errorf("Current = %v, %v; want %v", got, err, want)
	}
}

func TestRoundPointer_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	_ = store.Set(ctx, "k", []byte("not-a-period"), 0)
	if _, err := cache.NewRoundPointer(store, "k").Current(ctx); err == nil {
		t.Error("expected error for corrupt pointer")
	}
}

// TestRedisStore runs against a live server when REDIS_TEST_URL is set.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()
	s, err := cache.NewRedisStore(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	key := "racing10:test:" + t.Name()
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	p := cache.NewRoundPointer(s, key)
	want := domain.NewPeriod(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), 7)
	if err := p.SetCurrent(ctx, want); err != nil {
		t.Fatal(err)
	}
	if got, err := p.Current(ctx); err != nil || got != want {
		t.Errorf("Current = %v, %v; want %v", got, err, want)
	}
}

func TestNewRedisStore_BadURL(t *testing.T) {
	if _, err := cache.NewRedisStore(context.Background(), "not a url"); err == nil {
		t.Error("expected parse error")
	}
}
