package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unboxed/internal/apperrors"
	"unboxed/internal/entity"
)

// FileMeta is everything persisted about an ingested file besides its
// chunks.
type FileMeta struct {
	Filename     string
	ContentType  string
	FileSize     int
	WordCount    int
	OriginalFile []byte
	Anonymized   bool
	Mapping      entity.Mapping // nil when anonymization was not requested
	Metadata     string
}

// FileRecord is a stored file's metadata row.
type FileRecord struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	WordCount   int       `json:"word_count"`
	Anonymized  bool      `json:"anonymized"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is one embedded slice of a document, ordered by Index.
type Chunk struct {
	Content   string
	Embedding []float32
	Index     int
}

// SearchResult is one similarity-search hit.
type SearchResult struct {
	Content    string
	Filename   string
	ChunkIndex int
	Anonymized bool
	Similarity float64 // 1 − cosine distance, clamped to [0,1]
}

// Stats summarizes corpus size.
type Stats struct {
	FileCount  int64 `json:"file_count"`
	ChunkCount int64 `json:"chunk_count"`
	TotalWords int64 `json:"total_words"`
}

// Store is the persistence interface the orchestrator depends on.
// The pgvector-backed implementation is Postgres; tests use fakes.
type Store interface {
	SaveFile(ctx context.Context, meta *FileMeta) (int64, error)
	SaveChunks(ctx context.Context, fileID int64, chunks []Chunk) (int, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error)
	GlobalMapping(ctx context.Context) (entity.Mapping, error)
	Stats(ctx context.Context) (*Stats, error)
	ListFiles(ctx context.Context) ([]FileRecord, error)
	FileInfo(ctx context.Context, fileID int64) (*FileRecord, error)
	FileContent(ctx context.Context, fileID int64) (string, error)
	OriginalFile(ctx context.Context, fileID int64) ([]byte, *FileRecord, error)
	DeleteFile(ctx context.Context, fileID int64) error
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an established pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// SaveFile inserts the file row, including the serialized anonymization
// mapping when present, and returns the new file ID.
func (s *PostgresStore) SaveFile(ctx context.Context, meta *FileMeta) (int64, error) {
	var mappingJSON []byte
	if len(meta.Mapping) > 0 {
		var err error
		mappingJSON, err = json.Marshal(meta.Mapping)
		if err != nil {
			return 0, fmt.Errorf("marshal anonymization mapping: %w", err)
		}
	}

	var metadata *string
	if meta.Metadata != "" {
		metadata = &meta.Metadata
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO files (filename, content_type, file_size, word_count,
		                   original_file, anonymized, anonymization_mapping, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		meta.Filename, meta.ContentType, meta.FileSize, meta.WordCount,
		meta.OriginalFile, meta.Anonymized, mappingJSON, metadata).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert file metadata: %w", err)
	}
	return id, nil
}

// SaveChunks inserts chunks for a file and returns how many were stored.
func (s *PostgresStore) SaveChunks(ctx context.Context, fileID int64, chunks []Chunk) (int, error) {
	inserted := 0
	for _, chunk := range chunks {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO document_chunks (file_id, content, embedding, chunk_index)
			VALUES ($1, $2, $3::vector, $4)`,
			fileID, chunk.Content, vectorLiteral(chunk.Embedding), chunk.Index)
		if err != nil {
			return inserted, fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
		inserted++
	}
	return inserted, nil
}

// SearchSimilar returns up to limit chunks ordered by ascending cosine
// distance to the query embedding. Similarity is reported as 1 − distance,
// clamped to [0,1].
func (s *PostgresStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dc.content, dc.chunk_index, f.filename, f.anonymized,
		       (dc.embedding <=> $1::vector) AS distance
		FROM document_chunks dc
		JOIN files f ON dc.file_id = f.id
		WHERE dc.embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $2`,
		vectorLiteral(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var distance float64
		if err := rows.Scan(&r.Content, &r.ChunkIndex, &r.Filename, &r.Anonymized, &distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Similarity = clamp01(1 - distance)
		results = append(results, r)
	}
	return results, rows.Err()
}

// GlobalMapping unions the stored mappings of every anonymized file,
// last write wins. It is recomputed on demand, never stored.
func (s *PostgresStore) GlobalMapping(ctx context.Context) (entity.Mapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT anonymization_mapping
		FROM files
		WHERE anonymized = TRUE AND anonymization_mapping IS NOT NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("load anonymization mappings: %w", err)
	}
	defer rows.Close()

	global := entity.Mapping{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan anonymization mapping: %w", err)
		}
		var m entity.Mapping
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode anonymization mapping: %w", err)
		}
		global.Merge(m)
	}
	return global, rows.Err()
}

// Stats reports corpus counts.
func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM files),
		       (SELECT COUNT(*) FROM document_chunks),
		       (SELECT COALESCE(SUM(word_count), 0) FROM files)`).
		Scan(&stats.FileCount, &stats.ChunkCount, &stats.TotalWords)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return stats, nil
}

// ListFiles returns all files, newest first.
func (s *PostgresStore) ListFiles(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, content_type, file_size, word_count, anonymized, created_at
		FROM files
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.ID, &f.Filename, &f.ContentType, &f.FileSize,
			&f.WordCount, &f.Anonymized, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileInfo returns one file's metadata, or apperrors.ErrNotFound.
func (s *PostgresStore) FileInfo(ctx context.Context, fileID int64) (*FileRecord, error) {
	var f FileRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, filename, content_type, file_size, word_count, anonymized, created_at
		FROM files
		WHERE id = $1`, fileID).
		Scan(&f.ID, &f.Filename, &f.ContentType, &f.FileSize,
			&f.WordCount, &f.Anonymized, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load file info: %w", err)
	}
	return &f, nil
}

// FileContent reconstructs a document's post-chunking text by joining
// its chunks in ascending index order.
func (s *PostgresStore) FileContent(ctx context.Context, fileID int64) (string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content
		FROM document_chunks
		WHERE file_id = $1
		ORDER BY chunk_index ASC`, fileID)
	if err != nil {
		return "", fmt.Errorf("load file content: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("scan chunk content: %w", err)
		}
		parts = append(parts, content)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", apperrors.ErrNotFound
	}
	return strings.Join(parts, "\n"), nil
}

// OriginalFile returns the stored upload bytes plus the file's metadata.
func (s *PostgresStore) OriginalFile(ctx context.Context, fileID int64) ([]byte, *FileRecord, error) {
	info, err := s.FileInfo(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	var data []byte
	err = s.pool.QueryRow(ctx, `SELECT original_file FROM files WHERE id = $1`, fileID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load original file: %w", err)
	}
	return data, info, nil
}

// DeleteFile removes a file and, via ON DELETE CASCADE, all its chunks.
func (s *PostgresStore) DeleteFile(ctx context.Context, fileID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// vectorLiteral renders an embedding as pgvector's text input format.
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
