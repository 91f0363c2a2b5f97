package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

var (
	// the upstream kept processing past the retry budget
	ErrTimeout = errors.New("transcription timed out")
	// the upstream reported that it could not process the media
	ErrUpstreamFailed = errors.New("transcription service failed")
	// the upstream answered with something that is not a segment array
	ErrMalformedResponse = errors.New("malformed transcription response")
)

// transcription result; times are seconds
type Result struct {
	Segments []segment.Segment
	Language string
	Duration float64
}

// interface for media transcription
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (*Result, error)
}

type ConcurrentTranscriber interface {
	Transcriber
	TranscribeWithChunks(
		ctx context.Context,
		chunks []media.ChunkInfo,
		concurrency int,
	) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderRemote Provider = "remote"
)

// transcription options
type Options struct {
	Language           string // source language of the media
	TranscriptLanguage string // output language, "native" keeps the spoken one
	Model              string
	Prompt             string
	// remote service URL, only used by ProviderRemote
	Endpoint string
	Retry    RetryPolicy
	Logger   *logging.Logger
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	case ProviderRemote:
		return NewRemoteTranscriber(opts.Endpoint, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// RetryPolicy bounds a wait for an upstream job: at most MaxAttempts checks,
// Delay apart.
type RetryPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delay: 5 * time.Second, MaxAttempts: 60}
}

// the zero policy means the default one
func (p RetryPolicy) orDefault() RetryPolicy {
	if p.MaxAttempts <= 0 {
		return DefaultRetryPolicy()
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Wait calls check until it reports done or fails. Running out of attempts
// yields ErrTimeout.
func (p RetryPolicy) Wait(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	p = p.orDefault()

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrTimeout, attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
}

type chunkResult struct {
	Index    int
	Segments []segment.Segment
	Error    error
}

// transcribeChunks runs t over every chunk with bounded concurrency and
// merges the results, shifting each chunk's times by its offset.
func transcribeChunks(
	ctx context.Context,
	t Transcriber,
	chunks []media.ChunkInfo,
	concurrency int,
	language string,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}

	if concurrency <= 0 {
		concurrency = 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan media.ChunkInfo)
	resultChan := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range workChan {
				if ctx.Err() != nil {
					return
				}
				segments, err := transcribeChunk(ctx, t, chunk)
				if err != nil {
					cancel()
				}
				resultChan <- chunkResult{
					Index:    chunk.Index,
					Segments: segments,
					Error:    err,
				}
			}
		}()
	}

	go func() {
		defer close(workChan)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case workChan <- chunk:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]chunkResult, 0, len(chunks))
	var firstErr error
	for result := range resultChan {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d failed: %w", result.Index, result.Error)
			}
			continue
		}
		results = append(results, result)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(results) != len(chunks) {
		return nil, ctx.Err()
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	var all []segment.Segment
	for _, r := range results {
		all = append(all, r.Segments...)
	}
	for i := range all {
		all[i].ID = i + 1
	}

	return &Result{
		Segments: all,
		Language: language,
		Duration: chunks[len(chunks)-1].EndTime,
	}, nil
}

func transcribeChunk(ctx context.Context, t Transcriber, chunk media.ChunkInfo) ([]segment.Segment, error) {
	result, err := t.Transcribe(ctx, chunk.Path)
	if err != nil {
		return nil, err
	}

	adjusted := make([]segment.Segment, len(result.Segments))
	for i, seg := range result.Segments {
		adjusted[i] = segment.Segment{
			StartTime: seg.StartTime + chunk.StartTime,
			EndTime:   seg.EndTime + chunk.StartTime,
			Text:      seg.Text,
		}
	}
	return adjusted, nil
}
