package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/ronaldod-hc/legendas-app/internal/ffmpeg"
)

// ChunkInfo is one slice of a longer audio file; times are seconds into
// the source.
type ChunkInfo struct {
	Path      string
	Index     int
	StartTime float64
	EndTime   float64
}

// settings for audio compression
type CompressionOptions struct {
	Format     string // mp3 or aac
	SampleRate int    // Hz
	Channels   int
	Bitrate    string // e.g. "64k"
}

// defaults for transcription uploads
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

func (o CompressionOptions) kwargs() ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"vn": "", // no video
		"ar": o.SampleRate,
		"ac": o.Channels,
	}
	switch o.Format {
	case "aac":
		kwargs["acodec"] = "aac"
	default:
		kwargs["acodec"] = "libmp3lame"
	}
	if o.Bitrate != "" {
		kwargs["b:a"] = o.Bitrate
	}
	return kwargs
}

// CompressAudio re-encodes the audio track of inputPath into a small mono file.
func CompressAudio(
	ctx context.Context,
	inputPath, outputPath string,
	opts CompressionOptions,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	err = ffmpeg.Input(inputPath).
		Output(outputPath, opts.kwargs()).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}

	return nil
}

type chunkJob struct {
	index        int
	startSeconds float64
	endSeconds   float64
	chunkPath    string
}

// planChunks lays out consecutive chunk windows covering totalSeconds.
func planChunks(audioPath, outputDir string, totalSeconds, chunkSeconds float64) []chunkJob {
	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	ext := filepath.Ext(audioPath)

	var jobs []chunkJob
	for i := 0; ; i++ {
		start := float64(i) * chunkSeconds
		if start >= totalSeconds {
			break
		}
		end := start + chunkSeconds
		if end > totalSeconds {
			end = totalSeconds
		}
		jobs = append(jobs, chunkJob{
			index:        i,
			startSeconds: start,
			endSeconds:   end,
			chunkPath:    filepath.Join(outputDir, fmt.Sprintf("%s_chunk_%03d%s", baseName, i, ext)),
		})
	}
	return jobs
}

// ChunkAudio splits an audio file into chunks of chunkSeconds, cutting up to
// concurrency chunks at once (10 when concurrency <= 0).
func ChunkAudio(
	ctx context.Context,
	audioPath string,
	chunkSeconds float64,
	outputDir string,
	concurrency int,
) ([]ChunkInfo, error) {
	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkSeconds)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	info, err := Probe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return nil, err
	}

	jobs := planChunks(audioPath, outputDir, info.Duration, chunkSeconds)

	var (
		mu       sync.Mutex
		chunks   []ChunkInfo
		firstErr error
		wg       sync.WaitGroup
	)

	sem := make(chan struct{}, concurrency)

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(j chunkJob) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			stop := firstErr != nil || ctx.Err() != nil
			mu.Unlock()
			if stop {
				return
			}

			err := ffmpeg.Input(audioPath).
				Output(j.chunkPath, ffmpeg.KwArgs{
					"ss": j.startSeconds,
					"t":  j.endSeconds - j.startSeconds,
					"c":  "copy",
				}).
				OverWriteOutput().
				SetFfmpegPath(ffmpegPath).
				Run()

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to create chunk %d: %w", j.index, err)
				}
				return
			}

			chunks = append(chunks, ChunkInfo{
				Path:      j.chunkPath,
				Index:     j.index,
				StartTime: j.startSeconds,
				EndTime:   j.endSeconds,
			})
		}(job)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		_ = CleanupChunks(chunks)
		return nil, err
	}
	if firstErr != nil {
		_ = CleanupChunks(chunks)
		return nil, firstErr
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})

	return chunks, nil
}

// removes all chunk files
func CleanupChunks(chunks []ChunkInfo) error {
	var lastErr error
	for _, chunk := range chunks {
		if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}
