package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/config"
	"github.com/ronaldod-hc/legendas-app/internal/ffmpeg"
	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
)

var (
	verbose    bool
	configPath string
	envFile    string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "legendas",
	Short: "AI subtitle generator and timeline editor",
	Long: `Legendas transcribes audio and video with AI, lets you fix the timing
and text of every caption on a timeline and burns the result into the video.

It can run as a CLI, as an HTTP backend for the web editor or as a terminal
editor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		if err := config.LoadEnv(files...); err != nil {
			return err
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		ffmpeg.Configure(ffmpeg.BinaryPaths{
			FFmpeg:  cfg.FFmpeg.FFmpegPath,
			FFprobe: cfg.FFmpeg.FFprobePath,
		})
		logger.Debugw("configuration loaded", "path", configPath, "provider", cfg.Transcription.Provider)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().
		StringVar(&envFile, "env-file", "", "Load environment variables from this file (default .env when present)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		StringP("language", "l", "", "Language code (e.g., en, es, pt)")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// stringFlag returns the flag value when the user set it, fallback otherwise.
func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetInt(name)
		return v
	}
	return fallback
}

// outputPathFor derives an output file next to input when --output is empty.
func outputPathFor(input, output, suffix string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}

// transcriberFlags are shared by every command that can transcribe.
func transcriberFlags(cmd *cobra.Command) {
	cmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY / OPENAI_API_KEY)")
	cmd.Flags().
		String("provider", "", "Transcription provider (gemini, openai, remote)")
	cmd.Flags().
		String("model", "", "Model to use for transcription (provider default when empty)")
	cmd.Flags().
		String("endpoint", "", "URL of a remote /transcribe service (remote provider)")
	cmd.Flags().
		String("transcript-language", "native", "Output language for transcript (e.g., 'english', or 'native' for the spoken language)")
}

// isValidOpenAITranscriptLanguage reports whether Whisper can produce the
// requested transcript language; it only translates into English.
func isValidOpenAITranscriptLanguage(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "native", "english", "en":
		return true
	}
	return false
}

// newTranscriber builds the transcriber selected by flags and config.
func newTranscriber(ctx context.Context, cmd *cobra.Command) (transcribe.Transcriber, error) {
	tc := cfg.Transcription
	provider := transcribe.Provider(stringFlag(cmd, "provider", tc.Provider))
	language, _ := cmd.Flags().GetString("language")
	if language == "" {
		language = tc.Language
	}
	transcriptLang, _ := cmd.Flags().GetString("transcript-language")

	if provider == transcribe.ProviderOpenAI && !isValidOpenAITranscriptLanguage(transcriptLang) {
		return nil, fmt.Errorf("openai can only transcribe natively or into English, got %q", transcriptLang)
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	apiKey, err := config.ResolveAPIKey(string(provider), apiKey)
	if err != nil {
		return nil, err
	}

	opts := transcribe.Options{
		Language:           language,
		TranscriptLanguage: transcriptLang,
		Model:              stringFlag(cmd, "model", tc.Model),
		Endpoint:           stringFlag(cmd, "endpoint", tc.Endpoint),
		Retry: transcribe.RetryPolicy{
			Delay:       tc.PollInterval,
			MaxAttempts: tc.MaxPollAttempts,
		},
		Logger: logger,
	}

	t, err := transcribe.Factory(ctx, provider, apiKey, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}
	logger.Debugw("transcriber ready", "provider", provider, "model", opts.Model)
	return t, nil
}
