package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
)

var generateCmd = &cobra.Command{
	Use:   "generate [media_file]",
	Short: "Generate subtitles for an audio or video file",
	Long: `Generate subtitles for the specified audio or video file using AI transcription.

The command accepts both audio files (mp3, wav, aac, etc.) and video files (mp4, mkv, etc.).
The audio track is compressed before it is uploaded. Long recordings can be split
into chunks (--chunk-duration) that are transcribed in parallel.

Captions longer than --max-chars are split at word boundaries and every caption is
clamped to the media duration. Subtitles can be written as SRT, VTT or ASS.

Examples:
  legendas generate video.mp4
  legendas generate audio.mp3 --format vtt
  legendas generate video.mp4 --provider openai --chunk-duration 2
  legendas generate video.mp4 --translate-to english -o video.en.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	transcriberFlags(generateCmd)

	generateCmd.Flags().
		IntP("chunk-duration", "d", 0, "Chunk duration in minutes for parallel transcription (0 sends the whole file)")
	generateCmd.Flags().
		StringP("format", "f", "srt", "Output subtitle format (srt, vtt, ass)")
	generateCmd.Flags().
		Int("concurrency", 3, "Number of parallel transcription workers")
	generateCmd.Flags().
		Int("max-chars", 0, "Split captions longer than this many characters (config default when 0)")
	generateCmd.Flags().
		String("translate-to", "", "Translate the captions into this language before writing")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx, cancel := signalContext()
	defer cancel()

	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}
	if !media.IsMediaFile(mediaPath) {
		return fmt.Errorf("%w: %s (expected audio or video file)", media.ErrUnsupportedMedia, filepath.Ext(mediaPath))
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := subtitle.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	chunkMinutes, _ := cmd.Flags().GetInt("chunk-duration")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	maxChars := intFlag(cmd, "max-chars", cfg.Segmentation.MaxChars)
	translateTo, _ := cmd.Flags().GetString("translate-to")
	output, _ := cmd.Flags().GetString("output")
	outputPath := outputPathFor(mediaPath, output, subtitle.GetExtensionForFormat(format))

	m, err := media.Load(ctx, mediaPath, "")
	if err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}

	logger.Infow("Starting subtitle generation",
		"input", mediaPath,
		"output", outputPath,
		"kind", m.Kind(),
		"duration", m.MediaDuration(),
		"format", format,
	)

	transcriber, err := newTranscriber(ctx, cmd)
	if err != nil {
		return err
	}

	result, err := transcribeMedia(ctx, transcriber, mediaPath, float64(chunkMinutes)*60, concurrency)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}
	logger.Infow("Transcription complete", "segments", len(result.Segments))

	session := editor.NewSession(editor.Options{
		Style:    cfg.Style,
		MaxChars: maxChars,
		Logger:   logger,
	})
	if err := session.LoadMedia(m); err != nil {
		return err
	}
	segs, err := session.ApplyTranscription(result.Segments, nil)
	if err != nil {
		return err
	}

	if translateTo != "" {
		translated, err := translateSegments(ctx, cmd, segs, translateTo)
		if err != nil {
			return err
		}
		if err := session.ImportSegments(translated); err != nil {
			return err
		}
	}

	if err := writeSessionSubtitles(session, format, outputPath); err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles generated successfully: %s\n", absOutput)
	fmt.Printf("  Entries: %d\n", len(session.Segments()))
	fmt.Printf("  Duration: %s\n", subtitle.FormatClock(m.MediaDuration()))

	return nil
}

// transcribeMedia prepares a compressed audio track for the API providers
// and transcribes it, chunked when chunkSeconds is positive and shorter
// than the recording.
func transcribeMedia(
	ctx context.Context,
	t transcribe.Transcriber,
	mediaPath string,
	chunkSeconds float64,
	concurrency int,
) (*transcribe.Result, error) {
	if _, remote := t.(*transcribe.RemoteTranscriber); remote && chunkSeconds <= 0 {
		// the service takes the original upload
		return t.Transcribe(ctx, mediaPath)
	}

	tempDir, err := os.MkdirTemp("", "legendas-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	audioPath := filepath.Join(tempDir, "audio.mp3")
	logger.Infow("Compressing audio for transcription")
	if err := media.CompressAudio(ctx, mediaPath, audioPath, media.DefaultCompressionOptions()); err != nil {
		return nil, err
	}

	ct, canChunk := t.(transcribe.ConcurrentTranscriber)
	if chunkSeconds <= 0 || !canChunk {
		return t.Transcribe(ctx, audioPath)
	}

	chunks, err := media.ChunkAudio(ctx, audioPath, chunkSeconds, filepath.Join(tempDir, "chunks"), concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to split audio: %w", err)
	}
	logger.Infow("Created audio chunks", "count", len(chunks), "concurrency", concurrency)

	return ct.TranscribeWithChunks(ctx, chunks, concurrency)
}

// writeSessionSubtitles writes the session's segments in format. ASS output
// is the burn-in markup and needs a video.
func writeSessionSubtitles(session *editor.Session, format subtitle.Format, path string) error {
	var data string
	switch format {
	case subtitle.FormatASS:
		markup, err := session.ExportASS(0)
		if err != nil {
			return err
		}
		data = markup
	case subtitle.FormatVTT:
		data = session.ExportVTT()
	default:
		data = session.ExportSRT()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}
	logger.Infow("Wrote subtitles", "path", path, "format", format)
	return nil
}
