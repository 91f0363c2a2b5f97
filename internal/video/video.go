package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/ronaldod-hc/legendas-app/internal/ffmpeg"
	"github.com/ronaldod-hc/legendas-app/internal/logging"
)

var ErrProcessing = errors.New("media processing failed")

// Command is an operation the processor runs over one input; it is either
// ExtractAudio or BurnSubtitles.
type Command interface {
	// output file extension, including the dot
	outputExt() string
	outputArgs(workDir string) (ffmpeg.KwArgs, error)
}

// ExtractAudio pulls the audio track out as a standalone file.
type ExtractAudio struct {
	Format  string // mp3 (default), wav or flac
	Quality int    // VBR quality for mp3, 0 best .. 9 worst
}

// BurnSubtitles renders ASS markup into the video frames.
type BurnSubtitles struct {
	Markup string
	// directory with the fonts referenced by the markup
	FontsDir string
}

// defines interface for media processing operations
type Processor interface {
	Process(ctx context.Context, input []byte, cmd Command) ([]byte, error)
}

// DefaultProcessor runs ffmpeg over files in a private temp directory.
type DefaultProcessor struct {
	tempDir string
	logger  *logging.Logger
}

func NewProcessor(tempDir string, logger *logging.Logger) *DefaultProcessor {
	return &DefaultProcessor{
		tempDir: tempDir,
		logger:  logging.OrNop(logger),
	}
}

// Process writes input to disk, runs cmd and returns the produced file.
func (p *DefaultProcessor) Process(ctx context.Context, input []byte, cmd Command) ([]byte, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrProcessing)
	}

	workDir, err := os.MkdirTemp(p.tempDir, "legendas-job-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create work dir: %v", ErrProcessing, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	inputPath := filepath.Join(workDir, "input")
	if err := os.WriteFile(inputPath, input, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", ErrProcessing, err)
	}

	outputPath := filepath.Join(workDir, "output"+cmd.outputExt())
	if err := p.ProcessFile(ctx, inputPath, outputPath, cmd); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrProcessing, err)
	}
	return out, nil
}

// ProcessFile runs cmd from inputPath to outputPath. Nothing is left at
// outputPath when ffmpeg fails.
func (p *DefaultProcessor) ProcessFile(ctx context.Context, inputPath, outputPath string, cmd Command) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("%w: input file not found: %s", ErrProcessing, inputPath)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	workDir, err := os.MkdirTemp(p.tempDir, "legendas-args-*")
	if err != nil {
		return fmt.Errorf("%w: create work dir: %v", ErrProcessing, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	kwargs, err := cmd.outputArgs(workDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", ErrProcessing, err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	p.logger.Debugw("running ffmpeg", "input", inputPath, "output", outputPath, "args", kwargs)

	err = ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()
	if err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("%w: ffmpeg: %v", ErrProcessing, err)
	}
	return nil
}

func (c ExtractAudio) outputExt() string {
	switch c.Format {
	case "wav", "flac":
		return "." + c.Format
	default:
		return ".mp3"
	}
}

func (c ExtractAudio) outputArgs(string) (ffmpeg.KwArgs, error) {
	kwargs := ffmpeg.KwArgs{"vn": ""}
	switch c.Format {
	case "wav":
		kwargs["acodec"] = "pcm_s16le"
	case "flac":
		kwargs["acodec"] = "flac"
	default:
		kwargs["acodec"] = "libmp3lame"
		quality := c.Quality
		if quality <= 0 || quality > 9 {
			quality = 2
		}
		kwargs["q:a"] = quality
	}
	return kwargs, nil
}

func (c BurnSubtitles) outputExt() string {
	return ".mp4"
}

func (c BurnSubtitles) outputArgs(workDir string) (ffmpeg.KwArgs, error) {
	if strings.TrimSpace(c.Markup) == "" {
		return nil, errors.New("no subtitle markup to burn")
	}

	subsPath := filepath.Join(workDir, "subs.ass")
	if err := os.WriteFile(subsPath, []byte(c.Markup), 0o644); err != nil {
		return nil, fmt.Errorf("write subtitle markup: %w", err)
	}

	return ffmpeg.KwArgs{
		"vf":     subtitlesFilter(subsPath, c.FontsDir),
		"c:a":    "copy",
		"preset": "ultrafast",
	}, nil
}

// subtitlesFilter builds the libass filter expression; colons and quotes in
// paths must be escaped for the filtergraph parser.
func subtitlesFilter(subsPath, fontsDir string) string {
	filter := "subtitles=" + escapeFilterPath(subsPath)
	if fontsDir != "" {
		filter += ":fontsdir=" + escapeFilterPath(fontsDir)
	}
	return filter
}

func escapeFilterPath(p string) string {
	p = filepath.ToSlash(p)
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`)
	return r.Replace(p)
}
