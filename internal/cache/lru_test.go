package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	if !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}

	c.Set("a", "updated")
	if v, _ := c.Get("a"); v != "updated" {
		t.Errorf("overwrite should win, got %q", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now more recent than b
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should miss")
	}

	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size after cleanup = %d, want 0", c.Size())
	}
}

func TestLRUCache_GetOrCompute(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	calls := 0
	compute := func() int {
		calls++
		return 42
	}

	if v := c.GetOrCompute("k", compute); v != 42 {
		t.Errorf("GetOrCompute = %d, want 42", v)
	}
	if v := c.GetOrCompute("k", compute); v != 42 {
		t.Errorf("GetOrCompute hit = %d, want 42", v)
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}
}

func TestLRUCache_Delete(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should miss")
	}
	c.Delete("a") // deleting a missing key is a no-op
}

func TestKey(t *testing.T) {
	got := Key("monthly-sales", 7, "all")
	want := "monthly-sales|7|all"
	if got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}

	// Different versions never collide.
	if Key("dues", 1) == Key("dues", 2) {
		t.Error("keys must embed the version")
	}
}

func TestManager_CleanupLoop(t *testing.T) {
	c := NewLRUCache[int](10, 5*time.Millisecond)
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	m.Stop()

	if c.Size() != 0 {
		t.Errorf("manager should have swept expired entries, size = %d", c.Size())
	}
}
