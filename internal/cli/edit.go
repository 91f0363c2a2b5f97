package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
	"github.com/ronaldod-hc/legendas-app/internal/tui"
)

var editCmd = &cobra.Command{
	Use:   "edit [media_file]",
	Short: "Edit subtitles on a terminal timeline",
	Long: `Open an interactive timeline for the media file.

Drag captions with the mouse to move them, drag their edges to resize, click
empty timeline to seek. Keys: space play/pause, ←/→ seek, +/- zoom, a add,
d delete, tab select next, e edit text, t transcribe, s save, q quit.

Existing subtitles can be loaded with --subtitles; "s" writes SRT to --output
(default: next to the media file).

Examples:
  legendas edit video.mp4
  legendas edit video.mp4 --subtitles video.srt -o video.fixed.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)
	transcriberFlags(editCmd)

	editCmd.Flags().String("subtitles", "", "SRT or WebVTT file to start from")
}

func runEdit(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx, cancel := signalContext()
	defer cancel()

	subtitlesPath, _ := cmd.Flags().GetString("subtitles")
	output, _ := cmd.Flags().GetString("output")
	outputPath := outputPathFor(mediaPath, output, ".srt")

	m, err := media.Load(ctx, mediaPath, "")
	if err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}

	// the terminal belongs to the editor; keep the session quiet
	session := editor.NewSession(editor.Options{
		Style:    cfg.Style,
		MaxChars: cfg.Segmentation.MaxChars,
		FontsDir: cfg.Server.FontsDir,
		Logger:   logging.NewNop(),
	})
	if err := session.LoadMedia(m); err != nil {
		return err
	}

	if subtitlesPath != "" {
		segs, err := subtitle.Open(subtitlesPath)
		if err != nil {
			return fmt.Errorf("failed to parse subtitle file: %w", err)
		}
		if err := session.ImportSegments(segs); err != nil {
			return fmt.Errorf("subtitles do not fit the media: %w", err)
		}
	}

	var transcriber transcribe.Transcriber
	if t, err := newTranscriber(ctx, cmd); err == nil {
		transcriber = t
	} else {
		logger.Warnw("transcription is disabled", "error", err)
	}

	model := tui.New(ctx, session, tui.Options{
		Transcriber: transcriber,
		OutputPath:  outputPath,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}
	return nil
}
