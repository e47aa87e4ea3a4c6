// Package rag wires extraction, anonymization, chunking, embedding and
// retrieval into the two top-level flows: document ingestion and
// question answering.
package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"unboxed/internal/anonymizer"
	"unboxed/internal/chunker"
	"unboxed/internal/entity"
	"unboxed/internal/extract"
	"unboxed/internal/llm"
	"unboxed/internal/metrics"
	"unboxed/internal/storage"
)

// IngestRequest carries one uploaded document through the pipeline.
type IngestRequest struct {
	Data        []byte
	ContentType string
	Filename    string
	Metadata    string
	Anonymize   bool
}

// IngestResult reports what happened to an ingested document.
type IngestResult struct {
	Message         string              `json:"message"`
	Filename        string              `json:"filename"`
	FileSize        int                 `json:"file_size"`
	FileType        string              `json:"file_type"`
	Status          string              `json:"status"`
	ChunksProcessed int                 `json:"chunks_processed"`
	WordCount       int                 `json:"word_count"`
	Anonymized      bool                `json:"anonymized"`
	Summary         map[entity.Type]int `json:"anonymization_summary,omitempty"`
}

// Answer is the response to a question, with retrieval provenance.
// AnonymizedAnswer is the model's answer before alias restoration, set
// only when an alias mapping was in play.
type Answer struct {
	Text             string   `json:"answer"`
	Sources          []string `json:"sources"`
	Confidence       float64  `json:"confidence"`
	AnonymizedAnswer string   `json:"anonymized_answer,omitempty"`
}

// Service implements the ingestion and question answering flows on top
// of the store, the model client and the anonymizer.
type Service struct {
	store      storage.Store
	llm        llm.LLMClient
	anonymizer *anonymizer.Anonymizer
	extractor  *extract.Extractor
	metrics    *metrics.Metrics
	logger     *zap.Logger

	chunkSize    int
	contextLimit int
}

// New builds a Service. chunkSize and contextLimit fall back to
// sensible defaults when non-positive.
func New(store storage.Store, client llm.LLMClient, anon *anonymizer.Anonymizer, extractor *extract.Extractor, m *metrics.Metrics, logger *zap.Logger, chunkSize, contextLimit int) *Service {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultMaxSize
	}
	if contextLimit <= 0 {
		contextLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		llm:          client,
		anonymizer:   anon,
		extractor:    extractor,
		metrics:      m,
		logger:       logger,
		chunkSize:    chunkSize,
		contextLimit: contextLimit,
	}
}

// Ingest extracts text from the uploaded document, optionally
// anonymizes it, splits it into chunks, embeds each chunk and persists
// everything. Extraction failure aborts the whole ingest; a chunk whose
// embedding fails is dropped and the rest proceed.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	s.metrics.IngestsTotal.Add(1)

	extracted, err := s.extractor.Extract(req.Data, req.ContentType, req.Filename)
	if err != nil {
		s.metrics.IngestErrors.Add(1)
		return nil, fmt.Errorf("extract %q: %w", req.Filename, err)
	}

	text := extracted.Text
	var mapping entity.Mapping
	var summary map[entity.Type]int
	if req.Anonymize {
		anonText, m, err := s.anonymizer.Anonymize(ctx, text)
		if err != nil {
			s.metrics.IngestErrors.Add(1)
			return nil, fmt.Errorf("anonymize %q: %w", req.Filename, err)
		}
		text = anonText
		mapping = m
		summary = m.Summary()
		s.metrics.IngestsAnonymized.Add(1)
		s.metrics.RecordEntities(summary)
		s.logger.Info("document anonymized",
			zap.String("filename", req.Filename),
			zap.Int("entities", len(m)))
	}

	fileID, err := s.store.SaveFile(ctx, &storage.FileMeta{
		Filename:     req.Filename,
		ContentType:  extracted.ContentType,
		FileSize:     extracted.FileSize,
		WordCount:    extracted.WordCount,
		OriginalFile: req.Data,
		Anonymized:   req.Anonymize,
		Mapping:      mapping,
		Metadata:     req.Metadata,
	})
	if err != nil {
		s.metrics.IngestErrors.Add(1)
		return nil, fmt.Errorf("save file %q: %w", req.Filename, err)
	}

	pieces := chunker.Split(text, s.chunkSize)
	chunks := make([]storage.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		if piece == "" {
			s.metrics.ChunksDropped.Add(1)
			continue
		}
		start := time.Now()
		embedding, err := s.llm.CreateEmbedding(ctx, piece)
		if err != nil {
			s.metrics.ChunksDropped.Add(1)
			s.logger.Warn("chunk embedding failed, dropping chunk",
				zap.String("filename", req.Filename),
				zap.Int("chunk_index", i),
				zap.Error(err))
			continue
		}
		s.metrics.RecordEmbedLatency(time.Since(start))
		chunks = append(chunks, storage.Chunk{
			Content:   piece,
			Embedding: embedding,
			Index:     i,
		})
	}

	saved, err := s.store.SaveChunks(ctx, fileID, chunks)
	if err != nil {
		s.metrics.IngestErrors.Add(1)
		return nil, fmt.Errorf("save chunks %q: %w", req.Filename, err)
	}
	s.metrics.ChunksEmbedded.Add(int64(saved))

	s.logger.Info("document ingested",
		zap.String("filename", req.Filename),
		zap.Int64("file_id", fileID),
		zap.Int("chunks", len(chunks)),
		zap.Bool("anonymized", req.Anonymize))

	return &IngestResult{
		Message:         MsgUploadSuccess,
		Filename:        req.Filename,
		FileSize:        extracted.FileSize,
		FileType:        extracted.ContentType,
		Status:          "processed",
		ChunksProcessed: saved,
		WordCount:       extracted.WordCount,
		Anonymized:      req.Anonymize,
		Summary:         summary,
	}, nil
}

// Ask answers a question against the stored corpus. The question is
// rewritten against the global alias mapping before embedding so it can
// match anonymized chunks; the generated answer is rewritten back
// before being returned. contextLimit caps how many chunks retrieval
// feeds the prompt; non-positive means the configured default.
func (s *Service) Ask(ctx context.Context, question string, contextLimit int) (*Answer, error) {
	s.metrics.AsksTotal.Add(1)

	if contextLimit <= 0 {
		contextLimit = s.contextLimit
	}

	global, err := s.store.GlobalMapping(ctx)
	if err != nil {
		s.logger.Warn("global mapping unavailable, querying verbatim", zap.Error(err))
		global = nil
	}

	searchQuestion := question
	if len(global) > 0 {
		searchQuestion = anonymizer.AnonymizeQuery(question, global)
	}

	start := time.Now()
	embedding, err := s.llm.CreateEmbedding(ctx, searchQuestion)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	s.metrics.RecordEmbedLatency(time.Since(start))

	hits, err := s.store.SearchSimilar(ctx, embedding, contextLimit)
	if err != nil {
		s.logger.Warn("similarity search failed", zap.Error(err))
		hits = nil
	}

	if len(hits) == 0 {
		s.metrics.AsksNoContext.Add(1)
		return &Answer{
			Text:       MsgNoDocuments,
			Sources:    []string{},
			Confidence: 0.0,
		}, nil
	}

	prompt := BuildPrompt(searchQuestion, hits)

	start = time.Now()
	raw, err := s.llm.GenerateAnswer(ctx, prompt)
	if err != nil {
		s.metrics.GenerationErrors.Add(1)
		s.logger.Error("answer generation failed", zap.Error(err))
		raw = MsgGenerationFailed
	} else {
		s.metrics.RecordGenerateLatency(time.Since(start))
	}

	answer := raw
	if len(global) > 0 {
		before := answer
		answer = anonymizer.Deanonymize(answer, global)
		if answer != before {
			s.metrics.TokensDeanonymized.Add(1)
		}
	}

	sources := make([]string, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, fmt.Sprintf("%s (similarity: %.2f)", h.Filename, h.Similarity))
	}

	out := &Answer{
		Text:       answer,
		Sources:    sources,
		Confidence: hits[0].Similarity,
	}
	if len(global) > 0 {
		out.AnonymizedAnswer = raw
	}
	return out, nil
}
