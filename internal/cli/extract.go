package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/video"
)

var extractCmd = &cobra.Command{
	Use:   "extract [video_file]",
	Short: "Extract audio from a video file",
	Long: `Extract the audio track from a video file and save it as a separate audio file.

Supports mp3 (variable bitrate), wav and flac output.

Examples:
  legendas extract video.mp4
  legendas extract video.mp4 -o audio.wav -f wav
  legendas extract video.mp4 --format mp3 --quality 0`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().
		StringP("format", "f", "mp3", "Output audio format (mp3, wav, flac)")
	extractCmd.Flags().
		IntP("quality", "q", 2, "mp3 VBR quality, 0 (best) to 9 (smallest)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	videoPath := args[0]

	format, _ := cmd.Flags().GetString("format")
	quality, _ := cmd.Flags().GetInt("quality")
	output, _ := cmd.Flags().GetString("output")

	validFormats := map[string]bool{
		"mp3":  true,
		"wav":  true,
		"flac": true,
	}
	if !validFormats[format] {
		return fmt.Errorf("invalid format %q: supported formats are mp3, wav, flac", format)
	}
	if quality < 0 || quality > 9 {
		return fmt.Errorf("quality must be between 0 and 9, got %d", quality)
	}

	outputPath := outputPathFor(videoPath, output, "."+format)

	logger.Infow("Extracting audio",
		"video", videoPath,
		"output", outputPath,
		"format", format,
		"quality", quality,
	)

	ctx, cancel := signalContext()
	defer cancel()

	processor := video.NewProcessor("", logger)
	if err := processor.ProcessFile(ctx, videoPath, outputPath, video.ExtractAudio{
		Format:  format,
		Quality: quality,
	}); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Audio extracted successfully: %s\n", absOutput)

	return nil
}
