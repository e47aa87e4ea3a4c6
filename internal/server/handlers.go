package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"unboxed/internal/apperrors"
	"unboxed/internal/rag"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	anonymize := false
	if v := r.FormValue("anonymize"); v != "" {
		anonymize, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "anonymize must be a boolean")
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	result, err := s.svc.Ingest(r.Context(), rag.IngestRequest{
		Data:        data,
		ContentType: contentType,
		Filename:    header.Filename,
		Metadata:    r.FormValue("metadata"),
		Anonymize:   anonymize,
	})
	if err != nil {
		s.logger.Error("ingest failed", zap.String("filename", header.Filename), zap.Error(err))
		switch {
		case errors.Is(err, apperrors.ErrUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, apperrors.ErrEmptyDocument):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to process document")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type askRequest struct {
	Question     string `json:"question"`
	ContextLimit int    `json:"context_limit"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if req.ContextLimit < 0 {
		writeError(w, http.StatusBadRequest, "context_limit must be positive")
		return
	}

	answer, err := s.svc.Ask(r.Context(), req.Question, req.ContextLimit)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context())
	if err != nil {
		s.logger.Error("file listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) fileID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.fileID(w, r)
	if !ok {
		return
	}
	info, err := s.store.FileInfo(r.Context(), id)
	if err != nil {
		s.fileError(w, id, err)
		return
	}
	content, err := s.store.FileContent(r.Context(), id)
	if err != nil {
		s.fileError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":    id,
		"filename":   info.Filename,
		"content":    content,
		"anonymized": info.Anonymized,
	})
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.fileID(w, r)
	if !ok {
		return
	}
	data, info, err := s.store.OriginalFile(r.Context(), id)
	if err != nil {
		s.fileError(w, id, err)
		return
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.fileID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteFile(r.Context(), id); err != nil {
		s.fileError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) fileError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	s.logger.Error("file operation failed", zap.Int64("file_id", id), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
