package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
)

type sessionResponse struct {
	ID string `json:"id"`
	editor.Snapshot
	Committed *bool  `json:"committed,omitempty"`
	Error     string `json:"error,omitempty"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, id string, e *entry)

// withSession resolves the {id} path value or answers 404.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		e, ok := s.sessions.get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h(w, r, id, e)
	}
}

func writeSession(w http.ResponseWriter, id string, e *entry) {
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Snapshot: e.session.Snapshot()})
}

func writeCommitted(w http.ResponseWriter, id string, e *entry, committed bool) {
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Snapshot: e.session.Snapshot(), Committed: &committed})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// display name from the upload instead of the stored file name
func withDisplayName(m media.Context, name string) media.Context {
	switch v := m.(type) {
	case media.Video:
		v.Name = name
		return v
	case media.Audio:
		v.Name = name
		return v
	}
	return m
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	up, err := s.receiveUpload(w, r, "media")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.loadMedia(r.Context(), up.path, up.mimeType)
	if err != nil {
		_ = os.Remove(up.path)
		s.logger.Warnw("rejected upload", "file", up.name, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	session := editor.NewSession(editor.Options{
		Style:    s.cfg.Style,
		MaxChars: s.cfg.MaxChars,
		FontsDir: s.cfg.FontsDir,
		Logger:   s.logger,
	})
	if err := session.LoadMedia(withDisplayName(m, up.name)); err != nil {
		_ = os.Remove(up.path)
		writeError(w, statusFor(err), err.Error())
		return
	}

	e := &entry{session: session, uploadPath: up.path}
	id := s.sessions.add(e)
	s.logger.Infow("session created", "session", id, "file", up.name, "kind", m.Kind(), "duration", m.MediaDuration())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, Snapshot: session.Snapshot()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	writeSession(w, id, e)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionTranscribe answers 200 even when the transcription failed;
// the failure is then visible as the sentinel segment and in "error".
func (s *Server) handleSessionTranscribe(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	if s.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "server has no transcription API key configured")
		return
	}

	err := e.session.Transcribe(r.Context(), s.transcriber)
	if errors.Is(err, editor.ErrBusy) || errors.Is(err, editor.ErrNoMedia) {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := sessionResponse{ID: id, Snapshot: e.session.Snapshot()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleImport replaces the segments with an uploaded SRT or WebVTT file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	file, _, err := r.FormFile("subtitles")
	if err != nil {
		writeError(w, http.StatusBadRequest, `no file sent in field "subtitles"`)
		return
	}
	defer file.Close()

	segs, err := subtitle.Parse(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := e.session.ImportSegments(segs); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSession(w, id, e)
}

func (s *Server) handleAddSegment(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	_, ok := e.session.AddSegment()
	writeCommitted(w, id, e, ok)
}

func segmentID(r *http.Request) (int, error) {
	segID, err := strconv.Atoi(r.PathValue("segID"))
	if err != nil || segID <= 0 {
		return 0, fmt.Errorf("invalid segment id %q", r.PathValue("segID"))
	}
	return segID, nil
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleUpdateText(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	segID, err := segmentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !e.session.UpdateText(segID, req.Text) {
		writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	writeSession(w, id, e)
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	segID, err := segmentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !e.session.DeleteSegment(segID) {
		writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	writeSession(w, id, e)
}

type selectRequest struct {
	SegmentID int `json:"segmentId"`
}

// a zero id clears the selection
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SegmentID == 0 {
		e.session.ClearSelection()
		writeSession(w, id, e)
		return
	}
	if !e.session.Select(req.SegmentID) {
		writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	writeSession(w, id, e)
}

type reorderRequest struct {
	DraggedID int `json:"draggedId"`
	DropOnID  int `json:"dropOnId"`
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req reorderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeCommitted(w, id, e, e.session.ReorderByDrag(req.DraggedID, req.DropOnID))
}

type pointerRequest struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req pointerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var committed bool
	switch strings.ToLower(req.Type) {
	case "down":
		_, committed = e.session.PointerDown(req.X)
	case "move":
		committed = e.session.PointerMove(req.X)
	case "up":
		committed = e.session.PointerUp()
	case "click":
		_, committed = e.session.Click(req.X)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown pointer event %q", req.Type))
		return
	}
	writeCommitted(w, id, e, committed)
}

type seekRequest struct {
	Time float64 `json:"time"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req seekRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e.session.Seek(req.Time)
	writeSession(w, id, e)
}

type zoomRequest struct {
	Level int `json:"level"`
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req zoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e.session.SetZoom(req.Level)
	writeSession(w, id, e)
}

type viewportRequest struct {
	Width float64 `json:"width"`
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var req viewportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Width <= 0 {
		writeError(w, http.StatusBadRequest, "width must be positive")
		return
	}
	e.session.SetViewportWidth(req.Width)
	writeSession(w, id, e)
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	var style subtitle.Style
	if err := decodeBody(r, &style); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := e.session.SetStyle(style); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeSession(w, id, e)
}

func baseName(e *entry) string {
	m, ok := e.session.Media()
	if !ok {
		return "subtitles"
	}
	name := m.DisplayName()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExportSRT(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	writeAttachment(w, "application/x-subrip; charset=utf-8", baseName(e)+".srt", []byte(e.session.ExportSRT()))
}

func (s *Server) handleExportVTT(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	writeAttachment(w, "text/vtt; charset=utf-8", baseName(e)+".vtt", []byte(e.session.ExportVTT()))
}

// handleBurn returns the uploaded video with the subtitles rendered in.
// previewWidth is the width of the player the style was chosen on.
func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	previewWidth := 0
	if v := r.URL.Query().Get("previewWidth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "previewWidth must be a non-negative integer")
			return
		}
		previewWidth = n
	}

	input, err := os.ReadFile(e.uploadPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "upload is no longer available")
		return
	}

	out, err := e.session.BurnIn(r.Context(), s.processor, input, previewWidth)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeAttachment(w, "video/mp4", "subtitled_"+baseName(e)+".mp4", out)
}

func (s *Server) handleExtractAudio(w http.ResponseWriter, r *http.Request, id string, e *entry) {
	input, err := os.ReadFile(e.uploadPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "upload is no longer available")
		return
	}

	out, err := e.session.ExtractAudio(r.Context(), s.processor, input)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeAttachment(w, "audio/mpeg", baseName(e)+".mp3", out)
}
