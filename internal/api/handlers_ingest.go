package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pmdaparse/internal/extract"
	"github.com/dgallion1/pmdaparse/internal/pipeline"
)

var supportedExt = map[string]bool{".xml": true, ".sgml": true}

// handleExtract runs one document synchronously and returns its medicines.
// The body is either a multipart form with a "file" part or the raw XML,
// named by the filename query parameter.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	filename, data, status, err := s.readUpload(r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	hash := pipeline.ContentHashHex(data)
	if cached, ok := s.cache.Get(hash); ok {
		meds := make([]extract.Medicine, len(cached))
		for i, m := range cached {
			m.SourceFilename = filename
			meds[i] = m
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"filename":     filename,
			"content_hash": hash,
			"cached":       true,
			"medicines":    meds,
		})
		return
	}

	res := s.extractor.Process(r.Context(), pipeline.Input{Name: filename, Data: data, ContentHash: hash})
	if res.Failed() {
		jsonError(w, "no records extracted: "+res.Err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.cache.Set(hash, res.Medicines)

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":     filename,
		"content_hash": hash,
		"cached":       false,
		"duration_ms":  res.Duration.Milliseconds(),
		"medicines":    res.Medicines,
	})
}

func (s *Server) readUpload(r *http.Request) (string, []byte, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		filename := sanitizeFilename(r.URL.Query().Get("filename"))
		if filename == "unnamed" {
			filename = "upload.xml"
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
		if err != nil {
			return "", nil, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err)
		}
		return s.checkUpload(filename, data)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", nil, http.StatusInternalServerError, errors.New("failed to read file")
	}
	return s.checkUpload(sanitizeFilename(header.Filename), data)
}

func (s *Server) checkUpload(filename string, data []byte) (string, []byte, int, error) {
	if !supportedExt[strings.ToLower(filepath.Ext(filename))] {
		return "", nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	if len(data) == 0 {
		return "", nil, http.StatusBadRequest, errors.New("file is empty")
	}
	return filename, data, http.StatusOK, nil
}

// handleBatchIngest queues every uploaded file as one background job.
// Results are persisted to the record store.
func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var (
		inputs     []pipeline.Input
		rejected   []map[string]string
		duplicates int
	)
	seen := make(map[string]bool)
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		reject := func(msg string) {
			rejected = append(rejected, map[string]string{"filename": filename, "error": msg})
		}
		if !supportedExt[strings.ToLower(filepath.Ext(filename))] {
			reject(fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)))
			continue
		}

		f, err := fh.Open()
		if err != nil {
			reject("failed to open file")
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			reject("file too large or read error")
			continue
		}

		hash := pipeline.ContentHashHex(data)
		if seen[hash] {
			duplicates++
			continue
		}
		seen[hash] = true
		inputs = append(inputs, pipeline.Input{Name: filename, Data: data, ContentHash: hash})
	}

	if len(inputs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "no acceptable files",
			"rejected": rejected,
		})
		return
	}

	job := pipeline.NewJob(inputs)
	if err := s.orchestrator.Submit(job); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrStopped) {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status":     pipeline.StatusQueued,
		"files":      len(inputs),
		"duplicates": duplicates,
		"rejected":   rejected,
		"poll_url":   fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleIngestSummary renders a finished job's summary. format selects
// html (default), markdown or json.
func (s *Server) handleIngestSummary(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	summary, ok := job.Summary()
	if !ok {
		jsonError(w, "job not finished", http.StatusConflict)
		return
	}

	switch r.URL.Query().Get("format") {
	case "json":
		writeJSON(w, http.StatusOK, summary)
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, summary.Markdown())
	case "", "html":
		page, err := summary.HTML()
		if err != nil {
			s.log.Error("render summary", "job_id", jobID, "error", err)
			jsonError(w, "failed to render summary", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, page)
	default:
		jsonError(w, "format must be html, markdown or json", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "_" {
		name = "unnamed"
	}
	return name
}
