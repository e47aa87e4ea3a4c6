// Classifier detections are expensive to recompute, so the LLM
// classifier caches them content-hash keyed. This file bounds that
// cache with S3-FIFO eviction (Yang et al., 2023) layered over the
// bbolt store: a small probationary FIFO S (capacity/10, min 1) takes
// every new key, the main FIFO M holds the rest, and a ring of keys
// recently evicted from S (the ghost set, 2x the S target, min 4) lets
// a re-inserted key skip probation. Each resident key carries a
// frequency counter saturating at 3; a key leaving S with a nonzero
// counter is promoted to the tail of M with the counter reset, a key
// leaving S cold goes to the ghost ring, and keys leaving M are simply
// dropped. Every eviction also deletes the key from bbolt, so the disk
// file tracks the same bound. After a restart the memory side starts
// empty and refills from bbolt as detections are looked up.
//
// One mutex guards the in-memory structures. bbolt calls are made
// outside the lock: deletions on goroutines, lookups and writes inline.
package anonymizer

import (
	"container/list"
	"sync"

	"go.uber.org/zap"
)

type s3fifoEntry struct {
	value string
	freq  uint8         // saturates at 3
	elem  *list.Element // position in sQueue or mQueue
	inM   bool
}

type s3fifoCache struct {
	mu sync.Mutex

	capacity int // resident keys across both queues
	sTarget  int
	ghostCap int

	entries map[string]*s3fifoEntry

	// Element values are string keys.
	sQueue *list.List
	mQueue *list.List

	// Ghost ring of keys recently evicted cold from S.
	ghostBuf   []string
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int

	backing DetectionCache
}

// NewS3FIFOCache bounds backing to capacity entries using S3-FIFO
// eviction. Capacities below 2 are raised to 2.
func NewS3FIFOCache(backing DetectionCache, capacity int, logger *zap.Logger) DetectionCache {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := capacity / 10
	if sTarget < 1 {
		sTarget = 1
	}
	ghostCap := 2 * sTarget
	if ghostCap < 4 {
		ghostCap = 4
	}
	logger.Info("detection cache eviction layer ready",
		zap.Int("capacity", capacity),
		zap.Int("s_target", sTarget),
		zap.Int("ghost_cap", ghostCap))
	return &s3fifoCache{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[string]*s3fifoEntry, capacity),
		sQueue:   list.New(),
		mQueue:   list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
		backing:  backing,
	}
}

// Get returns the serialized detections for key. A memory hit bumps
// the frequency counter; a memory miss that the backing store can
// serve pulls the value back into the resident set.
func (c *s3fifoCache) Get(key string) (string, bool) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.freq < 3 {
			e.freq++
		}
		v := e.value
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	detections, ok := c.backing.Get(key)
	if !ok {
		return "", false
	}
	c.insertLocked(key, detections)
	return detections, true
}

// Set stores the detections in memory and in the backing store. A key
// already resident keeps its queue position.
func (c *s3fifoCache) Set(key, detections string) {
	c.insertLocked(key, detections)
	c.backing.Set(key, detections)
}

func (c *s3fifoCache) Delete(key string) {
	c.mu.Lock()
	c.removeFromMemory(key)
	c.mu.Unlock()
	c.backing.Delete(key)
}

func (c *s3fifoCache) Close() error {
	return c.backing.Close()
}

func (c *s3fifoCache) insertLocked(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		return
	}

	// A ghost hit skips probation.
	inM := c.ghostContains(key)
	var elem *list.Element
	if inM {
		elem = c.mQueue.PushBack(key)
	} else {
		elem = c.sQueue.PushBack(key)
	}
	c.entries[key] = &s3fifoEntry{value: value, freq: 0, elem: elem, inM: inM}

	for c.sQueue.Len()+c.mQueue.Len() > c.capacity {
		c.evictOne()
	}
}

// evictOne and the helpers below run with c.mu held.
func (c *s3fifoCache) evictOne() {
	if c.sQueue.Len() > 0 {
		c.evictFromS()
		return
	}
	c.evictFromM()
}

// evictFromS pops the head of S, promoting it to M when its counter is
// nonzero and dropping it to the ghost ring otherwise.
func (c *s3fifoCache) evictFromS() {
	front := c.sQueue.Front()
	if front == nil {
		return
	}
	key, ok := front.Value.(string)
	if !ok {
		c.sQueue.Remove(front)
		return
	}
	c.sQueue.Remove(front)

	e, ok := c.entries[key]
	if !ok {
		return
	}

	if e.freq > 0 {
		e.freq = 0
		e.inM = true
		e.elem = c.mQueue.PushBack(key)
		if c.mQueue.Len() > c.capacity-c.sTarget {
			c.evictFromM()
		}
	} else {
		delete(c.entries, key)
		c.ghostAdd(key)
		// Disk deletion happens off the caller's lock hold.
		go c.backing.Delete(key)
	}
}

// evictFromM pops the head of M. M evictions never enter the ghost ring.
func (c *s3fifoCache) evictFromM() {
	front := c.mQueue.Front()
	if front == nil {
		return
	}
	key, ok := front.Value.(string)
	if !ok {
		c.mQueue.Remove(front)
		return
	}
	c.mQueue.Remove(front)
	delete(c.entries, key)
	go c.backing.Delete(key)
}

func (c *s3fifoCache) removeFromMemory(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.inM {
		c.mQueue.Remove(e.elem)
	} else {
		c.sQueue.Remove(e.elem)
	}
	delete(c.entries, key)
}

func (c *s3fifoCache) ghostContains(key string) bool {
	_, ok := c.ghostSet[key]
	return ok
}

// ghostAdd records key in the ring, displacing the oldest ghost when
// the ring is full.
func (c *s3fifoCache) ghostAdd(key string) {
	if _, exists := c.ghostSet[key]; exists {
		return
	}

	if c.ghostCount == c.ghostCap {
		oldest := c.ghostBuf[c.ghostHead]
		delete(c.ghostSet, oldest)
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}

	writeIdx := (c.ghostHead + c.ghostCount) % c.ghostCap
	c.ghostBuf[writeIdx] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}
