package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ronaldod-hc/legendas-app/internal/config"
	"github.com/ronaldod-hc/legendas-app/internal/server"
	"github.com/ronaldod-hc/legendas-app/internal/transcribe"
	"github.com/ronaldod-hc/legendas-app/internal/video"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcription and editing backend",
	Long: `Serve the HTTP API used by the web editor.

POST /transcribe accepts a multipart "video" field and answers with the caption
segments. The /sessions routes keep an editing session per uploaded file, so the
timeline can be edited, exported and burned in on the server.

Without an API key the server still starts; transcription requests then fail
with 503.

Examples:
  legendas serve
  legendas serve --addr :8080 --allowed-origin https://legendas.example.com`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	transcriberFlags(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (config default :3001)")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Origins allowed by CORS (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sc := cfg.Server
	addr := stringFlag(cmd, "addr", sc.Addr)
	origins := sc.AllowedOrigins
	if cmd.Flags().Changed("allowed-origin") {
		origins, _ = cmd.Flags().GetStringSlice("allowed-origin")
	}

	var transcriber transcribe.Transcriber
	t, err := newTranscriber(ctx, cmd)
	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		logger.Warnw("no API key configured, transcription is disabled", "error", err)
	case err != nil:
		return err
	default:
		transcriber = t
	}

	srv, err := server.New(server.Config{
		AllowedOrigins: origins,
		MaxSessions:    sc.MaxSessions,
		UploadDir:      sc.UploadDir,
		MaxUploadBytes: sc.MaxUploadMB << 20,
		FontsDir:       sc.FontsDir,
		MaxChars:       cfg.Segmentation.MaxChars,
		Style:          cfg.Style,
	}, transcriber, video.NewProcessor("", logger), logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Infow("Starting server", "addr", addr, "origins", origins, "upload_dir", sc.UploadDir)
	return srv.ListenAndServe(ctx, addr)
}
