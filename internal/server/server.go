package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
	"github.com/ronaldod-hc/legendas-app/internal/video"
)

// probes an uploaded file; media.Load outside of tests
type MediaLoader func(ctx context.Context, path, mimeType string) (media.Context, error)

type Config struct {
	AllowedOrigins []string
	MaxSessions    int
	UploadDir      string
	MaxUploadBytes int64
	FontsDir       string
	MaxChars       int
	Style          subtitle.Style
}

// Server exposes transcription and the session editor over HTTP.
type Server struct {
	cfg         Config
	sessions    *sessionStore
	transcriber transcribe.Transcriber
	processor   video.Processor
	loadMedia   MediaLoader
	logger      *logging.Logger
	mux         *http.ServeMux
}

type Option func(*Server)

func WithMediaLoader(l MediaLoader) Option {
	return func(s *Server) { s.loadMedia = l }
}

// New builds a server. transcriber may be nil, in which case transcription
// requests fail with 503.
func New(
	cfg Config,
	transcriber transcribe.Transcriber,
	processor video.Processor,
	logger *logging.Logger,
	opts ...Option,
) (*Server, error) {
	logger = logging.OrNop(logger)

	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 32
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 500 << 20
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	sessions, err := newSessionStore(cfg.MaxSessions, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		sessions:    sessions,
		transcriber: transcriber,
		processor:   processor,
		loadMedia:   media.Load,
		logger:      logger,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("POST /transcribe", s.handleTranscribe)

	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/{id}", s.withSession(s.handleGetSession))
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /sessions/{id}/transcribe", s.withSession(s.handleSessionTranscribe))
	s.mux.HandleFunc("POST /sessions/{id}/import", s.withSession(s.handleImport))
	s.mux.HandleFunc("POST /sessions/{id}/segments", s.withSession(s.handleAddSegment))
	s.mux.HandleFunc("PATCH /sessions/{id}/segments/{segID}", s.withSession(s.handleUpdateText))
	s.mux.HandleFunc("DELETE /sessions/{id}/segments/{segID}", s.withSession(s.handleDeleteSegment))
	s.mux.HandleFunc("POST /sessions/{id}/select", s.withSession(s.handleSelect))
	s.mux.HandleFunc("POST /sessions/{id}/reorder", s.withSession(s.handleReorder))
	s.mux.HandleFunc("POST /sessions/{id}/pointer", s.withSession(s.handlePointer))
	s.mux.HandleFunc("POST /sessions/{id}/seek", s.withSession(s.handleSeek))
	s.mux.HandleFunc("POST /sessions/{id}/zoom", s.withSession(s.handleZoom))
	s.mux.HandleFunc("PUT /sessions/{id}/viewport", s.withSession(s.handleViewport))
	s.mux.HandleFunc("PUT /sessions/{id}/style", s.withSession(s.handleStyle))
	s.mux.HandleFunc("GET /sessions/{id}/export.srt", s.withSession(s.handleExportSRT))
	s.mux.HandleFunc("GET /sessions/{id}/export.vtt", s.withSession(s.handleExportVTT))
	s.mux.HandleFunc("POST /sessions/{id}/burn", s.withSession(s.handleBurn))
	s.mux.HandleFunc("POST /sessions/{id}/audio", s.withSession(s.handleExtractAudio))
}

// Handler returns the routes wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.cors(s.mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down and drops
// every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Infow("shutting down")
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close drops all sessions and their uploads.
func (s *Server) Close() {
	s.sessions.purge()
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Expose-Headers", "Content-Disposition")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if origin == "" || !s.originAllowed(origin) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

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

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNoMedia),
		errors.Is(err, media.ErrUnsupportedMedia),
		errors.Is(err, subtitle.ErrInvalidStyle),
		errors.Is(err, segment.ErrOverlap),
		errors.Is(err, segment.ErrOutOfBounds),
		errors.Is(err, segment.ErrTooShort):
		return http.StatusBadRequest
	case errors.Is(err, transcribe.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, video.ErrProcessing),
		errors.Is(err, transcribe.ErrUpstreamFailed),
		errors.Is(err, transcribe.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("legendas transcription backend is running\n"))
}

// handleTranscribe accepts a multipart "video" field and answers with the
// segment array as a JSON string in "raw".
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "server has no transcription API key configured")
		return
	}

	up, err := s.receiveUpload(w, r, "video")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer func() { _ = os.Remove(up.path) }()

	s.logger.Infow("transcription requested", "file", up.name, "bytes", up.size)

	result, err := s.transcriber.Transcribe(r.Context(), up.path)
	if err != nil {
		s.logger.Errorw("transcription failed", "file", up.name, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	raw, err := transcribe.EncodeSegments(result.Segments)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, transcribe.TranscribeResponse{Raw: raw})
}

type upload struct {
	path     string
	name     string
	mimeType string
	size     int64
}

// receiveUpload stores the multipart file in field under the upload
// directory.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request, field string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("no file sent in field %q", field)
	}
	defer file.Close()

	name := header.Filename
	ext := strings.ToLower(filepath.Ext(name))
	dst, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	size, err := dst.ReadFrom(file)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	return &upload{
		path:     dst.Name(),
		name:     name,
		mimeType: header.Header.Get("Content-Type"),
		size:     size,
	}, nil
}
