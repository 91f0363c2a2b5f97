package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/media"
)

// implements Transcriber using the Gemini File API
type GeminiTranscriber struct {
	client  *genai.Client
	files   fileService
	model   string
	options Options
	logger  *logging.Logger
}

// the subset of the File API used while waiting for an upload
type fileService interface {
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiTranscriber{
		client:  client,
		files:   client.Files,
		model:   model,
		options: opts,
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

// Transcribe uploads the media, waits for the File API to finish
// processing it and asks the model for timed segments.
func (t *GeminiTranscriber) Transcribe(ctx context.Context, mediaPath string) (*Result, error) {
	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("media file not found: %s", mediaPath)
	}

	uploaded, err := t.client.Files.UploadFromPath(ctx, mediaPath, &genai.UploadFileConfig{
		MIMEType:    media.MIMEType(mediaPath),
		DisplayName: filepath.Base(mediaPath),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload media file: %w", err)
	}
	t.logger.Debugw("uploaded media", "file", uploaded.Name, "state", uploaded.State)

	defer func() {
		// the request context may already be cancelled here
		_, _ = t.client.Files.Delete(context.Background(), uploaded.Name, nil)
	}()

	ready, err := t.waitForActive(ctx, uploaded)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(ready.URI, ready.MIMEType),
			genai.NewPartFromText(t.buildTranscriptionPrompt()),
		}, genai.RoleUser),
	}

	result, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}

	segments, err := t.parseTranscriptionResponse(result)
	if err != nil {
		return nil, err
	}

	var duration float64
	if len(segments) > 0 {
		duration = segments[len(segments)-1].EndTime
	}

	return &Result{
		Segments: toSegments(segments),
		Language: t.options.Language,
		Duration: duration,
	}, nil
}

// waitForActive polls the uploaded file while it is PROCESSING.
func (t *GeminiTranscriber) waitForActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	current := file
	err := t.options.Retry.Wait(ctx, func(ctx context.Context) (bool, error) {
		if current.State != genai.FileStateProcessing {
			return true, nil
		}
		next, err := t.files.Get(ctx, current.Name, nil)
		if err != nil {
			return false, fmt.Errorf("failed to check upload state: %w", err)
		}
		current = next
		t.logger.Debugw("upload state", "file", current.Name, "state", current.State)
		return current.State != genai.FileStateProcessing, nil
	})
	if err != nil {
		return nil, err
	}

	if current.State == genai.FileStateFailed {
		msg := "file processing failed"
		if current.Error != nil && current.Error.Message != "" {
			msg = current.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstreamFailed, msg)
	}
	return current, nil
}

// TranscribeWithChunks transcribes pre-cut chunks in parallel.
func (t *GeminiTranscriber) TranscribeWithChunks(ctx context.Context, chunks []media.ChunkInfo, concurrency int) (*Result, error) {
	return transcribeChunks(ctx, t, chunks, concurrency, t.options.Language)
}

// creates the prompt for transcription
func (t *GeminiTranscriber) buildTranscriptionPrompt() string {
	var sb strings.Builder

	sb.WriteString("Transcribe the speech in this file into subtitle segments. ")
	sb.WriteString("Respond with a strict JSON array and nothing else. ")
	sb.WriteString(`Each element must be {"id": number, "startTime": number, "endTime": number, "text": string}, `)
	sb.WriteString("with times in seconds from the start of the file. ")
	sb.WriteString("Keep each segment short enough to read on screen and never let segments overlap. ")

	if t.options.Language != "" {
		sb.WriteString(fmt.Sprintf("The speech is in %s. ", t.options.Language))
	}

	if t.options.TranscriptLanguage != "" && t.options.TranscriptLanguage != "native" {
		sb.WriteString(fmt.Sprintf("Write the text in %s. ", t.options.TranscriptLanguage))
	}

	if t.options.Prompt != "" {
		sb.WriteString(t.options.Prompt)
		sb.WriteString(" ")
	}

	sb.WriteString("Do not wrap the array in markdown.")

	return sb.String()
}

// parses Gemini's response into segments
func (t *GeminiTranscriber) parseTranscriptionResponse(result *genai.GenerateContentResponse) ([]transcriptSegment, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("%w: empty response from Gemini", ErrMalformedResponse)
	}

	var responseText strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	if responseText.Len() == 0 {
		return nil, fmt.Errorf("%w: no text in Gemini response", ErrMalformedResponse)
	}

	return extractTranscriptSegments(cleanJSONResponse(responseText.String()))
}

// Close is a no-op; the genai client holds no resources that need releasing.
func (t *GeminiTranscriber) Close() error {
	return nil
}
