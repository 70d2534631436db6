// Package http exposes the knowledge base and contract analysis over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
	"github.com/0xcro3dile/contractrag/internal/domain/usecases"
)

// maxUploadBytes bounds a single multipart request.
const maxUploadBytes = 64 << 20

// Server is the HTTP server for the analysis and knowledge base API.
type Server struct {
	ingest    *usecases.IngestUseCase
	retrieve  *usecases.RetrieveUseCase
	analyze   *usecases.AnalyzeUseCase
	corpus    *usecases.CorpusUseCase
	extractor ports.TextExtractor
	addr      string
	logger    *slog.Logger
}

// NewServer creates a new HTTP server. A nil logger uses slog.Default.
func NewServer(
	ingest *usecases.IngestUseCase,
	retrieve *usecases.RetrieveUseCase,
	analyze *usecases.AnalyzeUseCase,
	corpus *usecases.CorpusUseCase,
	extractor ports.TextExtractor,
	addr string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ingest:    ingest,
		retrieve:  retrieve,
		analyze:   analyze,
		corpus:    corpus,
		extractor: extractor,
		addr:      addr,
		logger:    logger.With("component", "http"),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/knowledge/documents", s.handleAddDocuments).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/knowledge/search", s.handleSearch).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/knowledge/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/knowledge", s.handleClear).Methods(http.MethodDelete, http.MethodOptions)

	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 330 * time.Second, // analysis waits on the model
	}

	s.logger.Info("server starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error string                 `json:"error"`
	State entities.AnalysisState `json:"state,omitempty"`
	Raw   string                 `json:"raw,omitempty"`
}

type sourceHit struct {
	DocumentID   string  `json:"documentId"`
	Filename     string  `json:"filename"`
	DocumentType string  `json:"documentType,omitempty"`
	ChunkIndex   int     `json:"chunkIndex"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

type analyzeResponse struct {
	*entities.AnalysisResult
	Sources []sourceHit              `json:"sources"`
	Trace   []entities.AnalysisState `json:"trace"`
}

type ingestedFile struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

type failedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type addDocumentsResponse struct {
	Success     []ingestedFile `json:"success"`
	Errors      []failedFile   `json:"errors"`
	TotalChunks int            `json:"total_chunks"`
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Results []sourceHit `json:"results"`
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze compares an uploaded RFQ against uploaded SOW/MSA files.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.sendError(w, fmt.Errorf("%w: expected multipart form: %v", entities.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	rfqFiles := r.MultipartForm.File["rfq"]
	if len(rfqFiles) == 0 {
		s.sendError(w, fmt.Errorf("%w: rfq file is required", entities.ErrInvalidInput))
		return
	}

	rfqText, err := s.extractUpload(r.Context(), rfqFiles[0])
	if err != nil {
		s.sendError(w, err)
		return
	}

	req := entities.AnalysisRequest{RFQText: rfqText}
	for _, fh := range r.MultipartForm.File["sows"] {
		text, err := s.extractUpload(r.Context(), fh)
		if err != nil {
			s.sendError(w, err)
			return
		}
		req.AuxiliaryTexts = append(req.AuxiliaryTexts, text)
	}

	result, err := s.analyze.Analyze(r.Context(), req)
	if err != nil {
		s.sendError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, analyzeResponse{
		AnalysisResult: result,
		Sources:        toHits(result.Context),
		Trace:          result.Trace,
	})
}

// handleAddDocuments ingests uploaded standards. One bad file does not
// fail the others.
func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.sendError(w, fmt.Errorf("%w: expected multipart form: %v", entities.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.sendError(w, fmt.Errorf("%w: no files uploaded", entities.ErrInvalidInput))
		return
	}

	var docType entities.DocumentType
	if tag := r.FormValue("document_type"); strings.TrimSpace(tag) != "" {
		docType = entities.ParseDocumentType(tag)
	}

	resp := addDocumentsResponse{Success: []ingestedFile{}, Errors: []failedFile{}}
	for _, fh := range files {
		text, err := s.extractUpload(r.Context(), fh)
		if err != nil {
			resp.Errors = append(resp.Errors, failedFile{Filename: fh.Filename, Error: err.Error()})
			continue
		}

		n, err := s.ingest.Ingest(r.Context(), &entities.Document{
			Name:    fh.Filename,
			Type:    docType,
			Content: text,
		})
		if err != nil {
			resp.Errors = append(resp.Errors, failedFile{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		resp.Success = append(resp.Success, ingestedFile{Filename: fh.Filename, Chunks: n})
		resp.TotalChunks += n
	}

	s.logger.Info("documents uploaded",
		"ingested", len(resp.Success),
		"failed", len(resp.Errors),
		"chunks", resp.TotalChunks,
	)
	sendJSON(w, http.StatusOK, resp)
}

// handleSearch returns the stored chunks closest to a query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, fmt.Errorf("%w: invalid JSON: %v", entities.ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.sendError(w, fmt.Errorf("%w: query is required", entities.ErrInvalidInput))
		return
	}
	if req.K <= 0 {
		req.K = usecases.DefaultTopK
	}

	results := s.retrieve.Retrieve(r.Context(), req.Query, req.K)
	sendJSON(w, http.StatusOK, searchResponse{Results: toHits(results)})
}

// handleStats reports corpus size.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.corpus.Stats(r.Context())
	if err != nil {
		s.sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

// handleClear empties the knowledge base.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.corpus.Clear(r.Context()); err != nil {
		s.sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) extractUpload(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %v", entities.ErrExtraction, fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", entities.ErrExtraction, fh.Filename, err)
	}
	return s.extractor.Extract(ctx, data, fh.Filename)
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var analysisErr *entities.AnalysisError
	if errors.As(err, &analysisErr) {
		resp.State = analysisErr.State
	}
	var malformed *entities.MalformedOutputError
	if errors.As(err, &malformed) {
		resp.Raw = malformed.Raw
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	sendJSON(w, status, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrInvalidInput),
		errors.Is(err, entities.ErrExtraction),
		errors.Is(err, entities.ErrEmptyDocument):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, entities.ErrModelUnavailable),
		errors.Is(err, entities.ErrMalformedModelOutput):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toHits(results []entities.QueryResult) []sourceHit {
	hits := make([]sourceHit, len(results))
	for i, r := range results {
		hits[i] = sourceHit{
			DocumentID:   r.Chunk.DocumentID,
			Filename:     r.Chunk.Filename(),
			DocumentType: r.Chunk.Metadata[entities.MetaDocumentType],
			ChunkIndex:   r.Chunk.Index,
			Content:      r.Chunk.Content,
			Score:        r.Score,
		}
	}
	return hits
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
