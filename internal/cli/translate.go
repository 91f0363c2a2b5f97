package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/config"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
	"github.com/ronaldod-hc/legendas-app/internal/subtitle"
	"github.com/ronaldod-hc/legendas-app/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [subtitle_file]",
	Short: "Translate subtitles to another language using AI",
	Long: `Translate an existing SRT or WebVTT file to another language using AI.

Only the caption text changes; every cue keeps its timing.

The --overlay flag creates bilingual subtitles with the translated text
first, followed by the original text on the next line.

Examples:
  legendas translate video.srt --target-language japanese
  legendas translate video.vtt --target-language pt --overlay
  legendas translate video.srt -l english --target-language spanish --provider anthropic`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		Bool("overlay", false, "Overlay translated text with original (bilingual subtitles)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY env var)")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider-specific, uses sensible defaults)")
	translateCmd.Flags().
		String("provider", "", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		Int("concurrency", 0, "Number of parallel translation workers (config default when 0)")
	translateCmd.Flags().
		Int("batch-size", 0, "Number of subtitle entries per API request (config default when 0)")

	_ = translateCmd.MarkFlagRequired("target-language")
}

// translation settings after merging flags over the config file
type translateSettings struct {
	provider    translate.Provider
	apiKey      string
	model       string
	input       string
	target      string
	batchSize   int
	concurrency int
}

func (s translateSettings) validate() error {
	if s.target == "" {
		return fmt.Errorf("target language is required")
	}
	if s.input != "" && strings.EqualFold(strings.TrimSpace(s.input), strings.TrimSpace(s.target)) {
		return fmt.Errorf("input language %q and target language %q cannot be the same", s.input, s.target)
	}
	if s.concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", s.concurrency)
	}
	if s.batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", s.batchSize)
	}
	return nil
}

// settingsFromConfig fills what the command line did not set.
func settingsFromConfig(target string) translateSettings {
	tc := cfg.Translation
	return translateSettings{
		provider:    translate.Provider(tc.Provider),
		model:       tc.Model,
		target:      target,
		batchSize:   tc.BatchSize,
		concurrency: tc.Concurrency,
	}
}

func runTranslate(cmd *cobra.Command, args []string) error {
	subtitlePath := args[0]
	ctx, cancel := signalContext()
	defer cancel()

	target, _ := cmd.Flags().GetString("target-language")
	overlay, _ := cmd.Flags().GetBool("overlay")
	output, _ := cmd.Flags().GetString("output")

	s := settingsFromConfig(target)
	s.provider = translate.Provider(stringFlag(cmd, "provider", string(s.provider)))
	s.model = stringFlag(cmd, "model", s.model)
	s.apiKey, _ = cmd.Flags().GetString("api-key")
	s.input, _ = cmd.Flags().GetString("language")
	if n, _ := cmd.Flags().GetInt("concurrency"); n != 0 {
		s.concurrency = n
	}
	if n, _ := cmd.Flags().GetInt("batch-size"); n != 0 {
		s.batchSize = n
	}

	if _, err := os.Stat(subtitlePath); os.IsNotExist(err) {
		return fmt.Errorf("subtitle file not found: %s", subtitlePath)
	}
	ext := strings.ToLower(filepath.Ext(subtitlePath))
	if ext != ".srt" && ext != ".vtt" {
		return fmt.Errorf("unsupported subtitle format %q: use .srt or .vtt", ext)
	}
	if err := s.validate(); err != nil {
		return err
	}

	suffix := "." + target + ext
	if overlay {
		suffix = "." + target + ".overlay" + ext
	}
	outputPath := outputPathFor(subtitlePath, output, suffix)

	logger.Infow("Starting subtitle translation",
		"input", subtitlePath,
		"output", outputPath,
		"target_language", target,
		"input_language", s.input,
		"overlay", overlay,
		"provider", s.provider,
	)

	segs, err := subtitle.Open(subtitlePath)
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	if len(segs) == 0 {
		return fmt.Errorf("subtitle file contains no entries")
	}
	logger.Infow("Parsed subtitle file", "entries", len(segs))

	translated, err := runTranslation(ctx, s, segs)
	if err != nil {
		return err
	}
	if overlay {
		translated = overlaySegments(translated, segs)
	}

	writer, err := subtitle.NewWriter(subtitle.GetFormatFromExtension(outputPath))
	if err != nil {
		return err
	}
	if err := subtitle.WriteFile(writer, translated, outputPath); err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles translated successfully: %s\n", absOutput)
	fmt.Printf("  Entries: %d\n", len(translated))
	fmt.Printf("  Target language: %s\n", target)
	if overlay {
		fmt.Printf("  Mode: bilingual overlay\n")
	}

	return nil
}

// translateSegments translates with the configured provider; used by
// generate --translate-to.
func translateSegments(ctx context.Context, cmd *cobra.Command, segs []segment.Segment, target string) ([]segment.Segment, error) {
	s := settingsFromConfig(target)
	s.input, _ = cmd.Flags().GetString("language")
	if err := s.validate(); err != nil {
		return nil, err
	}
	return runTranslation(ctx, s, segs)
}

func runTranslation(ctx context.Context, s translateSettings, segs []segment.Segment) ([]segment.Segment, error) {
	apiKey, err := config.ResolveAPIKey(string(s.provider), s.apiKey)
	if err != nil {
		return nil, err
	}

	translator, err := translate.Factory(ctx, s.provider, apiKey, translate.Options{
		InputLanguage:  s.input,
		TargetLanguage: s.target,
		Model:          s.model,
		BatchSize:      s.batchSize,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}

	logger.Infow("Translating subtitles", "items", len(segs), "concurrency", s.concurrency)
	out, err := translate.TranslateSegments(ctx, translator, segs, s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	logger.Infow("Translation complete", "results", len(out))
	return out, nil
}

// overlaySegments puts the translation above the original text.
func overlaySegments(translated, original []segment.Segment) []segment.Segment {
	out := make([]segment.Segment, len(translated))
	for i, seg := range translated {
		if i < len(original) {
			seg.Text = seg.Text + "\n" + original[i].Text
		}
		out[i] = seg
	}
	return out
}
