package anonymizer

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// newTestS3FIFO pairs the eviction layer with an in-memory backing so
// most tests never touch bbolt.
func newTestS3FIFO(capacity int) *s3fifoCache {
	return NewS3FIFOCache(NewMemoryCache(), capacity, zap.NewNop()).(*s3fifoCache)
}

func TestS3FIFOGetSetDelete(t *testing.T) {
	t.Parallel()
	c := newTestS3FIFO(10)
	defer c.Close() //nolint:errcheck

	if _, ok := c.Get("x"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("hash-1", `[{"text":"John Smith","type":"NAME"}]`)
	v, ok := c.Get("hash-1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v != `[{"text":"John Smith","type":"NAME"}]` {
		t.Errorf("unexpected value: %q", v)
	}

	c.Set("hash-1", `[]`)
	v, ok = c.Get("hash-1")
	if !ok || v != `[]` {
		t.Errorf("expected overwritten value, got %q ok=%v", v, ok)
	}

	c.Delete("hash-1")
	if _, ok := c.Get("hash-1"); ok {
		t.Error("expected miss after Delete")
	}
}

func TestS3FIFOCapacityEnforced(t *testing.T) {
	t.Parallel()
	capacity := 10
	c := newTestS3FIFO(capacity)
	defer c.Close() //nolint:errcheck

	for i := 0; i < capacity+5; i++ {
		c.Set(fmt.Sprintf("key-%d", i), fmt.Sprintf("tok-%d", i))
	}

	c.mu.Lock()
	total := c.sQueue.Len() + c.mQueue.Len()
	c.mu.Unlock()

	if total > capacity {
		t.Errorf("in-memory entries %d exceeds capacity %d", total, capacity)
	}
}

func TestS3FIFOPromotionToM(t *testing.T) {
	t.Parallel()
	// At capacity 2 the S target is 1 and eviction fires once a third
	// key arrives.
	c := newTestS3FIFO(2)
	defer c.Close() //nolint:errcheck

	c.Set("hot", "tok-hot")
	c.Get("hot") // nonzero counter earns promotion
	c.Set("cold", "tok-cold")

	// The third key evicts the head of S, which is "hot". Its counter
	// is nonzero, so it moves to M instead of leaving memory.
	c.Set("extra", "tok-extra")

	c.mu.Lock()
	e, ok := c.entries["hot"]
	c.mu.Unlock()

	if !ok {
		t.Fatal("expected 'hot' to still be resident after S eviction")
	}
	if !e.inM {
		t.Error("expected 'hot' to be promoted to M queue (freq > 0 at eviction time)")
	}
}

func TestS3FIFOGhostBypassesS(t *testing.T) {
	t.Parallel()
	c := newTestS3FIFO(2)
	defer c.Close() //nolint:errcheck

	c.Set("victim", "tok-victim")
	c.Set("displacer", "tok-displacer")

	// The third key evicts "victim" cold, which lands it in the ghost
	// ring.
	c.Set("trigger", "tok-trigger")

	c.mu.Lock()
	_, victimResident := c.entries["victim"]
	inGhost := c.ghostContains("victim")
	c.mu.Unlock()

	if victimResident {
		t.Error("expected 'victim' to be evicted from memory")
	}
	if !inGhost {
		t.Error("expected 'victim' to be in ghost after S eviction")
	}

	// A ghost hit on re-insert skips probation.
	c.Set("victim", "tok-victim-new")

	c.mu.Lock()
	e, ok := c.entries["victim"]
	c.mu.Unlock()

	if !ok {
		t.Fatal("expected 'victim' to be resident after re-insert")
	}
	if !e.inM {
		t.Error("expected 'victim' to bypass S and go to M on ghost-hit re-insert")
	}
}

func TestS3FIFOGhostBounded(t *testing.T) {
	t.Parallel()
	// Capacity 20 gives an S target of 2 and a ghost ring of 4.
	c := newTestS3FIFO(20)
	defer c.Close() //nolint:errcheck

	ghostCap := c.ghostCap

	// Push more cold evictions through S than the ring can hold.
	for i := 0; i < ghostCap+2; i++ {
		key := fmt.Sprintf("evict-%d", i)
		c.Set(key, "tok")
		c.Set(fmt.Sprintf("filler-%d", i), "tok-f")
	}

	c.mu.Lock()
	ghostCount := c.ghostCount
	c.mu.Unlock()

	if ghostCount > ghostCap {
		t.Errorf("ghost count %d exceeds ghostCap %d", ghostCount, ghostCap)
	}
}

func TestS3FIFOColdReadRewarmsMemory(t *testing.T) {
	t.Parallel()
	// Detections written by an earlier process survive only in the
	// backing store.
	backing := NewMemoryCache()
	backing.Set("cold-key", "tok-cold")

	c := NewS3FIFOCache(backing, 10, zap.NewNop()).(*s3fifoCache)
	defer c.Close() //nolint:errcheck

	c.mu.Lock()
	_, inMem := c.entries["cold-key"]
	c.mu.Unlock()
	if inMem {
		t.Fatal("expected cold-key absent from memory before Get")
	}

	tok, ok := c.Get("cold-key")
	if !ok || tok != "tok-cold" {
		t.Fatalf("expected cold-key hit from backing, got ok=%v tok=%q", ok, tok)
	}

	// The lookup pulls the value back into the resident set.
	c.mu.Lock()
	_, inMem = c.entries["cold-key"]
	c.mu.Unlock()
	if !inMem {
		t.Error("expected cold-key to be re-warmed into memory after Get")
	}
}

func TestS3FIFOConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := newTestS3FIFO(100)
	defer c.Close() //nolint:errcheck

	const goroutines = 20
	const ops = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				key := fmt.Sprintf("key-%d-%d", g, i%50)
				tok := fmt.Sprintf("tok-%d-%d", g, i)
				c.Set(key, tok)
				c.Get(key)
				if i%10 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.sQueue.Len() + c.mQueue.Len()
	if total > c.capacity {
		t.Errorf("post-concurrency: %d entries exceed capacity %d", total, c.capacity)
	}
	if len(c.entries) != total {
		t.Errorf("entries map (%d) out of sync with queue lengths (%d)", len(c.entries), total)
	}
	if c.ghostCount > c.ghostCap {
		t.Errorf("ghostCount %d exceeds ghostCap %d", c.ghostCount, c.ghostCap)
	}
}

func TestS3FIFOFrequencySaturation(t *testing.T) {
	t.Parallel()
	c := newTestS3FIFO(10)
	defer c.Close() //nolint:errcheck

	c.Set("k", "v")
	for i := 0; i < 100; i++ {
		c.Get("k")
	}

	c.mu.Lock()
	e := c.entries["k"]
	c.mu.Unlock()

	if e.freq != 3 {
		t.Errorf("expected saturated counter, got %d", e.freq)
	}
}

func TestS3FIFOWithBboltBacking(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	backing, err := NewBboltCache(dir+"/test.db", zap.NewNop())
	if err != nil {
		t.Fatalf("NewBboltCache: %v", err)
	}

	c := NewS3FIFOCache(backing, 100, zap.NewNop())
	defer c.Close() //nolint:errcheck

	c.Set("hash-persist", `[{"text":"Berlin","type":"LOCATION"}]`)

	v, ok := c.Get("hash-persist")
	if !ok || v != `[{"text":"Berlin","type":"LOCATION"}]` {
		t.Fatalf("expected hit, got ok=%v value=%q", ok, v)
	}

	c.Delete("hash-persist")
	if _, ok := c.Get("hash-persist"); ok {
		t.Error("expected miss after Delete")
	}
}
