package metrics

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"unboxed/internal/entity"
)

func TestNewStartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestIngestionCounters(t *testing.T) {
	m := New()
	m.IngestsTotal.Add(10)
	m.IngestsAnonymized.Add(7)
	m.IngestErrors.Add(1)
	m.ChunksEmbedded.Add(42)
	m.ChunksDropped.Add(3)

	s := m.Snapshot()
	if s.Ingestion.Total != 10 {
		t.Errorf("Total = %d, want 10", s.Ingestion.Total)
	}
	if s.Ingestion.Anonymized != 7 {
		t.Errorf("Anonymized = %d, want 7", s.Ingestion.Anonymized)
	}
	if s.Ingestion.Errors != 1 {
		t.Errorf("Errors = %d, want 1", s.Ingestion.Errors)
	}
	if s.Ingestion.ChunksEmbedded != 42 {
		t.Errorf("ChunksEmbedded = %d, want 42", s.Ingestion.ChunksEmbedded)
	}
	if s.Ingestion.ChunksDropped != 3 {
		t.Errorf("ChunksDropped = %d, want 3", s.Ingestion.ChunksDropped)
	}
}

func TestQuestionCounters(t *testing.T) {
	m := New()
	m.AsksTotal.Add(5)
	m.AsksNoContext.Add(2)
	m.GenerationErrors.Add(1)

	s := m.Snapshot()
	if s.Questions.Total != 5 || s.Questions.NoContext != 2 || s.Questions.GenerationErrors != 1 {
		t.Errorf("unexpected question snapshot: %+v", s.Questions)
	}
}

func TestRecordEntities(t *testing.T) {
	m := New()
	m.RecordEntities(map[entity.Type]int{
		entity.TypeEmail: 3,
		entity.TypeName:  2,
	})
	m.RecordEntities(map[entity.Type]int{
		entity.TypeEmail:     1,
		entity.Type("BOGUS"): 9, // unknown types are ignored
	})

	s := m.Snapshot()
	if s.Anonymization.EntitiesByType["EMAIL"] != 4 {
		t.Errorf("EMAIL = %d, want 4", s.Anonymization.EntitiesByType["EMAIL"])
	}
	if s.Anonymization.EntitiesByType["NAME"] != 2 {
		t.Errorf("NAME = %d, want 2", s.Anonymization.EntitiesByType["NAME"])
	}
	if _, ok := s.Anonymization.EntitiesByType["BOGUS"]; ok {
		t.Error("unknown type must not appear in snapshot")
	}
	// Zero-count types stay out of the snapshot.
	if _, ok := s.Anonymization.EntitiesByType["SSN"]; ok {
		t.Error("zero-count type must not appear in snapshot")
	}
}

func TestLatencyStats(t *testing.T) {
	m := New()
	m.RecordEmbedLatency(10 * time.Millisecond)
	m.RecordEmbedLatency(30 * time.Millisecond)
	m.RecordEmbedLatency(20 * time.Millisecond)

	s := m.Snapshot()
	lat := s.Latency.EmbeddingMs
	if lat.Count != 3 {
		t.Errorf("Count = %d, want 3", lat.Count)
	}
	if lat.MinMs != 10 {
		t.Errorf("MinMs = %v, want 10", lat.MinMs)
	}
	if lat.MaxMs != 30 {
		t.Errorf("MaxMs = %v, want 30", lat.MaxMs)
	}
	if lat.MeanMs != 20 {
		t.Errorf("MeanMs = %v, want 20", lat.MeanMs)
	}
	if s.Latency.GenerationMs.Count != 0 {
		t.Errorf("generation latency should be untouched: %+v", s.Latency.GenerationMs)
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	m := New()
	m.IngestsTotal.Add(1)
	m.RecordGenerateLatency(5 * time.Millisecond)

	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	for _, key := range []string{`"ingestion"`, `"questions"`, `"anonymization"`, `"latency"`, `"uptimeSecs"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("snapshot JSON missing %s: %s", key, data)
		}
	}
}

func TestConcurrentUpdates(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.IngestsTotal.Add(1)
				m.RecordEntities(map[entity.Type]int{entity.TypeName: 1})
				m.RecordEmbedLatency(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.Ingestion.Total != 1000 {
		t.Errorf("Total = %d, want 1000", s.Ingestion.Total)
	}
	if s.Anonymization.EntitiesByType["NAME"] != 1000 {
		t.Errorf("NAME = %d, want 1000", s.Anonymization.EntitiesByType["NAME"])
	}
	if s.Latency.EmbeddingMs.Count != 1000 {
		t.Errorf("latency count = %d, want 1000", s.Latency.EmbeddingMs.Count)
	}
}
