package cache

import (
	"errors"
	"testing"
	"time"
)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](5 * time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", 42)

	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("got (%d,%v), want (42,true)", v, ok)
	}

	now = now.Add(5 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to be expired at ttl boundary")
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string](time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "v", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != "v" {
			t.Fatalf("got (%q,%v), want (v,nil)", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}

	_, err := c.GetOrLoad("bad", func() (string, error) { return "", errors.New("boom") })
	if err == nil {
		t.Fatalf("expected loader error")
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatalf("failed loads must not be cached")
	}
}
