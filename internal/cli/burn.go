package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/media"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
	"github.com/ronaldod-hc/legendas-app/internal/video"
)

var burnCmd = &cobra.Command{
	Use:   "burn [video_file] [subtitle_file]",
	Short: "Burn subtitles into a video",
	Long: `Render an SRT or WebVTT file into the frames of a video.

Captions are drawn with the style from the config file; the flags below
override single properties. Font size is given in preview pixels and scaled
to the video width, as in the web editor (--preview-width).

Examples:
  legendas burn video.mp4 video.srt
  legendas burn video.mp4 video.srt --color "#FFFF00" --font-size 20
  legendas burn video.mp4 video.vtt --position-y 10 -o captioned.mp4`,
	Args: cobra.ExactArgs(2),
	RunE: runBurn,
}

func init() {
	rootCmd.AddCommand(burnCmd)

	burnCmd.Flags().String("color", "", "Caption color as #RRGGBB")
	burnCmd.Flags().String("outline-color", "", "Outline color as #RRGGBB")
	burnCmd.Flags().Float64("outline-width", 0, "Outline width in pixels")
	burnCmd.Flags().Float64("font-size", 0, "Font size in preview pixels")
	burnCmd.Flags().Float64("position-y", 0, "Vertical caption position, percent of the height")
	burnCmd.Flags().Int("preview-width", 0, "Width of the preview the style was chosen on (video width when 0)")
	burnCmd.Flags().String("fonts-dir", "", "Directory with fonts for the renderer")
}

// styleFromFlags overrides base with the style flags the user set.
func styleFromFlags(cmd *cobra.Command, base subtitle.Style) subtitle.Style {
	style := base
	flags := cmd.Flags()
	if flags.Changed("color") {
		style.Color, _ = flags.GetString("color")
	}
	if flags.Changed("outline-color") {
		style.OutlineColor, _ = flags.GetString("outline-color")
	}
	if flags.Changed("outline-width") {
		style.OutlineWidth, _ = flags.GetFloat64("outline-width")
	}
	if flags.Changed("font-size") {
		style.FontSize, _ = flags.GetFloat64("font-size")
	}
	if flags.Changed("position-y") {
		style.PositionY, _ = flags.GetFloat64("position-y")
	}
	return style
}

func runBurn(cmd *cobra.Command, args []string) error {
	videoPath, subtitlePath := args[0], args[1]
	ctx, cancel := signalContext()
	defer cancel()

	output, _ := cmd.Flags().GetString("output")
	previewWidth, _ := cmd.Flags().GetInt("preview-width")
	fontsDir := stringFlag(cmd, "fonts-dir", cfg.Server.FontsDir)

	if output == "" {
		output = filepath.Join(filepath.Dir(videoPath), "subtitled_"+
			outputPathFor(filepath.Base(videoPath), "", ".mp4"))
	}

	m, err := media.Load(ctx, videoPath, "")
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}
	if m.Kind() != media.KindVideo {
		return fmt.Errorf("%w: %s has no video track", media.ErrUnsupportedMedia, videoPath)
	}

	segs, err := subtitle.Open(subtitlePath)
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}

	session := editor.NewSession(editor.Options{FontsDir: fontsDir, Logger: logger})
	if err := session.LoadMedia(m); err != nil {
		return err
	}
	if err := session.SetStyle(styleFromFlags(cmd, cfg.Style)); err != nil {
		return err
	}
	if err := session.ImportSegments(segs); err != nil {
		return fmt.Errorf("subtitles do not fit the video: %w", err)
	}

	markup, err := session.ExportASS(previewWidth)
	if err != nil {
		return err
	}

	logger.Infow("Burning subtitles",
		"video", videoPath,
		"subtitles", subtitlePath,
		"output", output,
		"entries", len(segs),
	)

	processor := video.NewProcessor("", logger)
	if err := processor.ProcessFile(ctx, videoPath, output, video.BurnSubtitles{
		Markup:   markup,
		FontsDir: fontsDir,
	}); err != nil {
		return fmt.Errorf("burn-in failed: %w", err)
	}

	absOutput, _ := filepath.Abs(output)
	fmt.Printf("Subtitled video written: %s\n", absOutput)
	return nil
}
