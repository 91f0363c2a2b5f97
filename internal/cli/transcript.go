package cli

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript [subtitle_file]",
	Short: "Print the full text of a subtitle file",
	Long: `Print every caption of an SRT or WebVTT file in order as running text.

Examples:
  legendas transcript video.srt
  legendas transcript video.vtt --copy`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscript,
}

func init() {
	rootCmd.AddCommand(transcriptCmd)

	transcriptCmd.Flags().
		BoolP("copy", "c", false, "Copy the transcript to the clipboard")
}

func runTranscript(cmd *cobra.Command, args []string) error {
	segs, err := subtitle.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	text := segment.FullText(segs)

	if copyText, _ := cmd.Flags().GetBool("copy"); copyText {
		if err := clipboard.WriteAll(text); err != nil {
			return fmt.Errorf("failed to copy transcript: %w", err)
		}
		logger.Infow("Transcript copied to clipboard", "characters", len(text))
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
