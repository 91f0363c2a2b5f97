package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
	"github.com/ronaldod-hc/legendas-app/internal/video"
)

type stubTranscriber struct {
	segments []segment.Segment
	err      error
}

func (s stubTranscriber) Transcribe(_ context.Context, path string) (*transcribe.Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &transcribe.Result{Segments: s.segments}, nil
}

type stubProcessor struct {
	err error
}

func (p stubProcessor) Process(_ context.Context, input []byte, cmd video.Command) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return append([]byte("processed:"), input...), nil
}

func fakeLoader(duration float64) MediaLoader {
	return func(_ context.Context, path, _ string) (media.Context, error) {
		if strings.HasSuffix(path, ".txt") {
			return nil, media.ErrUnsupportedMedia
		}
		return media.Video{Path: path, Name: "ignored", Duration: duration, Width: 1280, Height: 720}, nil
	}
}

func newTestServer(t *testing.T, cfg Config, tr transcribe.Transcriber, p video.Processor) *Server {
	t.Helper()
	if cfg.UploadDir == "" {
		cfg.UploadDir = t.TempDir()
	}
	srv, err := New(cfg, tr, p, nil, WithMediaLoader(fakeLoader(60)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func uploadRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	rec := serve(srv, uploadRequest(t, "/sessions", "media", "clip.mp4", []byte("fake video")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeSession(t, rec).ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Config{}, nil, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "running") {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	segs := []segment.Segment{{ID: 1, StartTime: 0, EndTime: 2.5, Text: "Fala"}}
	srv := newTestServer(t, Config{}, stubTranscriber{segments: segs}, nil)

	rec := serve(srv, uploadRequest(t, "/transcribe", "video", "clip.mp4", []byte("data")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp transcribe.TranscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	got, err := transcribe.ParseSegments(resp.Raw)
	if err != nil {
		t.Fatalf("ParseSegments(raw) error: %v", err)
	}
	if diff := cmp.Diff(segs, got); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestTranscribeEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		tr         transcribe.Transcriber
		field      string
		wantStatus int
	}{
		{"no transcriber", nil, "video", http.StatusServiceUnavailable},
		{"missing file", stubTranscriber{}, "other", http.StatusBadRequest},
		{"timeout", stubTranscriber{err: transcribe.ErrTimeout}, "video", http.StatusGatewayTimeout},
		{"upstream failure", stubTranscriber{err: transcribe.ErrUpstreamFailed}, "video", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Config{}, tt.tr, nil)
			rec := serve(srv, uploadRequest(t, "/transcribe", tt.field, "clip.mp4", []byte("data")))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("error body = %q", rec.Body.String())
			}
		})
	}
}

func TestSessionEditingFlow(t *testing.T) {
	srv := newTestServer(t, Config{}, nil, nil)
	id := createSession(t, srv)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("session id %q is not a uuid: %v", id, err)
	}

	rec := serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/seek", `{"time": 5}`))
	if got := decodeSession(t, rec).CurrentTime; got != 5 {
		t.Errorf("currentTime = %v, want 5", got)
	}

	rec = serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/segments", ""))
	resp := decodeSession(t, rec)
	if resp.Committed == nil || !*resp.Committed || len(resp.Segments) != 1 {
		t.Fatalf("add segment = %+v", resp)
	}
	added := resp.Segments[0]
	if added.StartTime != 5 || added.EndTime != 8 || resp.ActiveID != added.ID {
		t.Errorf("added segment = %+v, active %d", added, resp.ActiveID)
	}

	rec = serve(srv, jsonRequest(http.MethodPatch, "/sessions/"+id+"/segments/1", `{"text": "Olá mundo"}`))
	if rec.Code != http.StatusOK || decodeSession(t, rec).Segments[0].Text != "Olá mundo" {
		t.Errorf("patch = %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/export.srt", nil))
	want := "1\n00:00:05,000 --> 00:00:08,000\nOlá mundo"
	if rec.Body.String() != want {
		t.Errorf("export.srt = %q, want %q", rec.Body.String(), want)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "clip.srt") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	// 1000px for 60s; the segment spans 83.3px..133.3px
	rec = serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/pointer", `{"type": "down", "x": 110}`))
	if resp := decodeSession(t, rec); resp.Committed == nil || !*resp.Committed || resp.Drag == nil {
		t.Fatalf("pointer down = %s", rec.Body.String())
	}
	serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/pointer", `{"type": "move", "x": 160}`))
	rec = serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/pointer", `{"type": "up", "x": 160}`))
	moved := decodeSession(t, rec).Segments[0]
	if moved.StartTime != 8 || moved.EndTime != 11 {
		t.Errorf("dragged segment = [%v, %v], want [8, 11]", moved.StartTime, moved.EndTime)
	}

	rec = serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/zoom", `{"level": 99}`))
	if z := decodeSession(t, rec).Zoom; z != 20 {
		t.Errorf("zoom = %d, want 20", z)
	}

	rec = serve(srv, jsonRequest(http.MethodDelete, "/sessions/"+id+"/segments/1", ""))
	if resp := decodeSession(t, rec); len(resp.Segments) != 0 || resp.ActiveID != 0 {
		t.Errorf("after delete = %+v", resp)
	}
}

func TestSessionRequestErrors(t *testing.T) {
	srv := newTestServer(t, Config{}, nil, nil)
	id := createSession(t, srv)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
	}{
		{"unknown session", httptest.NewRequest(http.MethodGet, "/sessions/nope", nil), http.StatusNotFound},
		{"bad segment id", jsonRequest(http.MethodPatch, "/sessions/"+id+"/segments/abc", `{"text":"x"}`), http.StatusBadRequest},
		{"missing segment", jsonRequest(http.MethodDelete, "/sessions/"+id+"/segments/42", ""), http.StatusNotFound},
		{"bad json", jsonRequest(http.MethodPost, "/sessions/"+id+"/seek", `{"time":`), http.StatusBadRequest},
		{"unknown field", jsonRequest(http.MethodPost, "/sessions/"+id+"/seek", `{"when": 3}`), http.StatusBadRequest},
		{"bad pointer type", jsonRequest(http.MethodPost, "/sessions/"+id+"/pointer", `{"type":"hover","x":1}`), http.StatusBadRequest},
		{"invalid style", jsonRequest(http.MethodPut, "/sessions/"+id+"/style", `{"color":"red","outlineColor":"#000000","outlineWidth":2,"fontSize":16,"positionY":85}`), http.StatusBadRequest},
		{"no transcriber", jsonRequest(http.MethodPost, "/sessions/"+id+"/transcribe", ""), http.StatusServiceUnavailable},
		{"bad preview width", httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/burn?previewWidth=wide", nil), http.StatusBadRequest},
		{"unsupported upload", uploadRequest(t, "/sessions", "media", "notes.txt", []byte("x")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, tt.req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestSessionTranscribeFailureShowsSentinel(t *testing.T) {
	srv := newTestServer(t, Config{}, stubTranscriber{err: errors.New("quota exceeded")}, nil)
	id := createSession(t, srv)

	rec := serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/transcribe", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeSession(t, rec)
	if resp.Error != "quota exceeded" {
		t.Errorf("error = %q", resp.Error)
	}
	want := []segment.Segment{{ID: 1, StartTime: 0, EndTime: 60, Text: "transcription failed: quota exceeded"}}
	if diff := cmp.Diff(want, resp.Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestImportSubtitles(t *testing.T) {
	srv := newTestServer(t, Config{}, nil, nil)
	id := createSession(t, srv)

	srt := "1\n00:00:01,000 --> 00:00:02,500\nOne\n\n2\n00:00:03,000 --> 00:00:04,000\nTwo\n"
	rec := serve(srv, uploadRequest(t, "/sessions/"+id+"/import", "subtitles", "in.srt", []byte(srt)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	segs := decodeSession(t, rec).Segments
	if len(segs) != 2 || segs[1].Text != "Two" || segs[0].EndTime != 2.5 {
		t.Errorf("imported = %+v", segs)
	}
}

func TestBurnAndAudio(t *testing.T) {
	srv := newTestServer(t, Config{}, nil, stubProcessor{})
	id := createSession(t, srv)
	serve(srv, jsonRequest(http.MethodPost, "/sessions/"+id+"/segments", ""))

	rec := serve(srv, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/burn?previewWidth=640", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "processed:fake video" {
		t.Fatalf("burn = %d %q", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "subtitled_clip.mp4") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/audio", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/mpeg" {
		t.Errorf("audio = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	failing := newTestServer(t, Config{}, nil, stubProcessor{err: video.ErrProcessing})
	id = createSession(t, failing)
	rec = serve(failing, httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/burn", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("failed burn status = %d, want 502", rec.Code)
	}
}

func TestSessionEvictionRemovesUpload(t *testing.T) {
	srv := newTestServer(t, Config{MaxSessions: 1}, nil, nil)
	first := createSession(t, srv)
	e, _ := srv.sessions.get(first)
	uploadPath := e.uploadPath

	second := createSession(t, srv)

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/sessions/"+first, nil)); rec.Code != http.StatusNotFound {
		t.Errorf("evicted session status = %d, want 404", rec.Code)
	}
	if _, err := os.Stat(uploadPath); !os.IsNotExist(err) {
		t.Errorf("upload of evicted session still exists: %v", err)
	}

	rec := serve(srv, httptest.NewRequest(http.MethodDelete, "/sessions/"+second, nil))
	if rec.Code != http.StatusNoContent || srv.sessions.len() != 0 {
		t.Errorf("delete = %d, %d sessions left", rec.Code, srv.sessions.len())
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, Config{AllowedOrigins: []string{"http://localhost:5173"}}, nil, nil)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/transcribe", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		return serve(srv, req)
	}

	rec := preflight("http://localhost:5173")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("allowed preflight = %d %v", rec.Code, rec.Header())
	}
	if rec := preflight("https://evil.example"); rec.Code != http.StatusForbidden {
		t.Errorf("foreign preflight = %d, want 403", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	if got := serve(srv, req).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin got Allow-Origin %q", got)
	}
}
