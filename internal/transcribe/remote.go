package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/media"
)

// RemoteTranscriber posts media to a legendas /transcribe endpoint.
type RemoteTranscriber struct {
	endpoint string
	client   *http.Client
	options  Options
	logger   *logging.Logger
}

// body of a /transcribe response
type TranscribeResponse struct {
	Raw   string `json:"raw,omitempty"`
	Error string `json:"error,omitempty"`
}

func NewRemoteTranscriber(endpoint string, opts Options) (*RemoteTranscriber, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("remote transcription endpoint is required")
	}
	return &RemoteTranscriber{
		endpoint: endpoint,
		// Gemini processing of a long video can take minutes
		client:  &http.Client{Timeout: 15 * time.Minute},
		options: opts,
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

func (t *RemoteTranscriber) Transcribe(ctx context.Context, mediaPath string) (*Result, error) {
	file, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, filepath.Base(mediaPath)))
	header.Set("Content-Type", media.MIMEType(mediaPath))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	t.logger.Debugw("posting media for transcription", "endpoint", t.endpoint, "bytes", body.Len())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUpstreamFailed, err)
	}

	var payload TranscribeResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %s", ErrUpstreamFailed, resp.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if payload.Error != "" {
		if resp.StatusCode == http.StatusGatewayTimeout {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, payload.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstreamFailed, payload.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %s", ErrUpstreamFailed, resp.Status)
	}

	segments, err := ParseSegments(payload.Raw)
	if err != nil {
		return nil, err
	}

	var duration float64
	if len(segments) > 0 {
		duration = segments[len(segments)-1].EndTime
	}
	return &Result{
		Segments: segments,
		Language: t.options.Language,
		Duration: duration,
	}, nil
}

func (t *RemoteTranscriber) TranscribeWithChunks(ctx context.Context, chunks []media.ChunkInfo, concurrency int) (*Result, error) {
	return transcribeChunks(ctx, t, chunks, concurrency, t.options.Language)
}
