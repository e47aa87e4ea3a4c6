// Package metrics provides lightweight, lock-minimal runtime counters
// for the document QA service.
//
// Counters use sync/atomic so hot paths (ingestion, anonymization,
// retrieval) incur no mutex contention. Latency statistics use a single
// mutex per dimension; they are updated at most once per external call.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"unboxed/internal/entity"
)

// Metrics holds all runtime counters for a running service instance.
// The zero value is NOT valid for the per-type entity counters — use New().
type Metrics struct {
	// Ingestion counters
	IngestsTotal      atomic.Int64
	IngestsAnonymized atomic.Int64
	IngestErrors      atomic.Int64
	ChunksEmbedded    atomic.Int64
	ChunksDropped     atomic.Int64 // empty after trimming, or embedding failed

	// Question counters
	AsksTotal        atomic.Int64
	AsksNoContext    atomic.Int64 // retrieval returned zero chunks
	GenerationErrors atomic.Int64 // completion calls resolved to the apology answer

	// Anonymization volume
	TokensDeanonymized atomic.Int64

	// Per-type anonymized entity counts.
	// The map is written only in New(); concurrent reads are safe without a lock.
	entitiesAnonymized map[entity.Type]*atomic.Int64

	// Latency statistics (mutex-guarded because they accumulate floats)
	embedMu   sync.Mutex
	embedStat latencyStats

	generateMu   sync.Mutex
	generateStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded and per-type
// entity counters pre-populated for every supported entity type.
func New() *Metrics {
	m := &Metrics{
		startTime:          time.Now(),
		entitiesAnonymized: make(map[entity.Type]*atomic.Int64, len(entity.AllTypes)),
	}
	for _, t := range entity.AllTypes {
		m.entitiesAnonymized[t] = new(atomic.Int64)
	}
	return m
}

// RecordEntities adds a document's anonymization summary to the
// per-type counters. Unknown types are silently ignored.
func (m *Metrics) RecordEntities(summary map[entity.Type]int) {
	for t, n := range summary {
		if c, ok := m.entitiesAnonymized[t]; ok {
			c.Add(int64(n))
		}
	}
}

// RecordEmbedLatency records the duration of one embedding call.
func (m *Metrics) RecordEmbedLatency(d time.Duration) {
	m.embedMu.Lock()
	m.embedStat.record(float64(d.Microseconds()) / 1000.0)
	m.embedMu.Unlock()
}

// RecordGenerateLatency records the duration of one completion call.
func (m *Metrics) RecordGenerateLatency(d time.Duration) {
	m.generateMu.Lock()
	m.generateStat.record(float64(d.Microseconds()) / 1000.0)
	m.generateMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON
// encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.embedMu.Lock()
	embed := m.embedStat.snapshot()
	m.embedMu.Unlock()

	m.generateMu.Lock()
	generate := m.generateStat.snapshot()
	m.generateMu.Unlock()

	entities := make(map[string]int64, len(m.entitiesAnonymized))
	for t, c := range m.entitiesAnonymized {
		if n := c.Load(); n > 0 {
			entities[string(t)] = n
		}
	}

	return Snapshot{
		Ingestion: IngestionSnapshot{
			Total:          m.IngestsTotal.Load(),
			Anonymized:     m.IngestsAnonymized.Load(),
			Errors:         m.IngestErrors.Load(),
			ChunksEmbedded: m.ChunksEmbedded.Load(),
			ChunksDropped:  m.ChunksDropped.Load(),
		},
		Questions: QuestionSnapshot{
			Total:            m.AsksTotal.Load(),
			NoContext:        m.AsksNoContext.Load(),
			GenerationErrors: m.GenerationErrors.Load(),
		},
		Anonymization: AnonymizationSnapshot{
			EntitiesByType:     entities,
			TokensDeanonymized: m.TokensDeanonymized.Load(),
		},
		Latency: LatencyGroup{
			EmbeddingMs:  embed,
			GenerationMs: generate,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Ingestion     IngestionSnapshot     `json:"ingestion"`
	Questions     QuestionSnapshot      `json:"questions"`
	Anonymization AnonymizationSnapshot `json:"anonymization"`
	Latency       LatencyGroup          `json:"latency"`
	UptimeSecs    float64               `json:"uptimeSecs"`
}

// IngestionSnapshot holds document-ingestion counters.
type IngestionSnapshot struct {
	Total          int64 `json:"total"`
	Anonymized     int64 `json:"anonymized"`
	Errors         int64 `json:"errors"`
	ChunksEmbedded int64 `json:"chunksEmbedded"`
	ChunksDropped  int64 `json:"chunksDropped"`
}

// QuestionSnapshot holds ask-flow counters.
type QuestionSnapshot struct {
	Total            int64 `json:"total"`
	NoContext        int64 `json:"noContext"`
	GenerationErrors int64 `json:"generationErrors"`
}

// AnonymizationSnapshot holds anonymization volume counters.
type AnonymizationSnapshot struct {
	// Per-type anonymized entity counts (only non-zero types appear).
	EntitiesByType     map[string]int64 `json:"entitiesByType,omitempty"`
	TokensDeanonymized int64            `json:"tokensDeanonymized"`
}

// LatencyGroup groups the two external-call latency dimensions.
type LatencyGroup struct {
	EmbeddingMs  LatencySnapshot `json:"embeddingMs"`
	GenerationMs LatencySnapshot `json:"generationMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
