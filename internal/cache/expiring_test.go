package cache

import (
	"sync"
	"testing"
	"time"
)

func TestExpiring_SetGet(t *testing.T) {
	c := NewExpiring[string, int](time.Minute)
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit with value 1, got ok=%v v=%v", ok, v)
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", c.Len())
	}
}

func TestExpiring_TTL(t *testing.T) {
	c := NewExpiring[string, string](time.Second)

	// Freeze time via now indirection
	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit before expiry")
	}

	base = base.Add(2 * time.Second)
	if c.Len() != 0 {
		t.Fatalf("expected Len=0 after expiry, got %d", c.Len())
	}
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if len(c.items) != 0 {
		t.Fatalf("expected expired entry to be dropped on Get")
	}
}

func TestExpiring_Disabled(t *testing.T) {
	c := NewExpiring[string, int](0)
	c.Set("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a disabled cache to always miss")
	}
}

func TestExpiring_Delete(t *testing.T) {
	c := NewExpiring[int, int](time.Minute)
	c.Set(1, 10)
	c.Set(2, 20)
	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected key 1 to be deleted")
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", c.Len())
	}
}

func TestExpiring_Concurrent(t *testing.T) {
	c := NewExpiring[int, int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(n*1000+j, j)
				c.Get(n*1000 + j)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 800 {
		t.Fatalf("expected 800 entries, got %d", c.Len())
	}
}

func TestExpiring_PurgeExpired(t *testing.T) {
	c := NewExpiring[string, int](time.Second)

	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })

	c.Set("a", 1)
	c.Set("b", 2)
	base = base.Add(2 * time.Second)
	c.items["fresh"] = entry[int]{value: 3, expiresAt: base.Add(time.Second)}

	if n := c.PurgeExpired(); n != 2 {
		t.Fatalf("expected 2 purged entries, got %d", n)
	}
	if len(c.items) != 1 {
		t.Fatalf("expected only the fresh entry to remain, got %d", len(c.items))
	}
}

func TestExpiring_SetSweepsUnreadEntries(t *testing.T) {
	c := NewExpiring[string, int](time.Second)

	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })

	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, 1)
	}
	base = base.Add(2 * time.Second)
	c.Set("d", 4)

	if len(c.items) != 1 {
		t.Fatalf("expected expired keys to be swept on Set, got %d entries", len(c.items))
	}
	if _, ok := c.items["d"]; !ok {
		t.Fatalf("expected the new key to be stored")
	}
}
