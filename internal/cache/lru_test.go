package cache

import (
	"testing"
	"time"
)

func TestLRUSetGet(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	// "b" is now least recently used; adding "c" evicts it.
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a should survive eviction, got %d, %v", v, ok)
	}
}

func TestLRUTTL(t *testing.T) {
	c := NewLRU[string](10, 10*time.Millisecond)
	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if n := c.CleanExpired(); n != 0 {
		// Get already removed it.
		t.Fatalf("CleanExpired = %d, want 0", n)
	}
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Set("u1:6", 1)
	c.Set("u1:7", 2)
	c.Set("u2:6", 3)

	if n := c.DeletePrefix("u1:"); n != 2 {
		t.Fatalf("DeletePrefix = %d, want 2", n)
	}
	if _, ok := c.Get("u1:6"); ok {
		t.Fatal("u1:6 should be gone")
	}
	if v, ok := c.Get("u2:6"); !ok || v != 3 {
		t.Fatalf("u2:6 should survive, got %d, %v", v, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}
