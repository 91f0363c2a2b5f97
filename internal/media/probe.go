package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	ffmpegbin "github.com/ronaldod-hc/legendas-app/internal/ffmpeg"
)

// ProbeInfo is what ffprobe reports about a media file.
type ProbeInfo struct {
	Duration float64
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType   string `json:"codec_type"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		Duration    string `json:"duration"`
		Disposition struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
}

func Probe(ctx context.Context, filePath string) (*ProbeInfo, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(out.Bytes())
}

func parseProbeOutput(data []byte) (*ProbeInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &ProbeInfo{}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			// cover art in audio files shows up as a one-frame video stream
			if s.Disposition.AttachedPic == 1 || info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = s.Width
			info.Height = s.Height
		case "audio":
			info.HasAudio = true
		}
	}

	duration := probe.Format.Duration
	if duration == "" && len(probe.Streams) > 0 {
		duration = probe.Streams[0].Duration
	}
	if duration == "" {
		return nil, fmt.Errorf("ffprobe reported no duration")
	}
	seconds, err := strconv.ParseFloat(duration, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration: %w", err)
	}
	info.Duration = seconds

	return info, nil
}

// Load probes path and builds the matching Context variant. mimeType may be
// empty, in which case the extension decides.
func Load(ctx context.Context, path, mimeType string) (Context, error) {
	kind, err := DetectKind(mimeType, path)
	if err != nil {
		return nil, err
	}

	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	return FromProbe(path, kind, info)
}

// FromProbe builds a Context from already probed information.
func FromProbe(path string, kind Kind, info *ProbeInfo) (Context, error) {
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%w: %s has no playable duration", ErrUnsupportedMedia, filepath.Base(path))
	}

	name := filepath.Base(path)
	if kind == KindVideo && info.HasVideo {
		return Video{
			Path:     path,
			Name:     name,
			Duration: info.Duration,
			Width:    info.Width,
			Height:   info.Height,
		}, nil
	}
	return Audio{Path: path, Name: name, Duration: info.Duration}, nil
}
