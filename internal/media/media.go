package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Context is the loaded media file; it is either Video or Audio.
type Context interface {
	Kind() Kind
	MediaPath() string
	DisplayName() string
	MediaDuration() float64
	isMedia()
}

// Video carries the intrinsic frame size used to scale burned-in captions.
type Video struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type Audio struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

func (Video) isMedia() {}
func (Audio) isMedia() {}

func (Video) Kind() Kind { return KindVideo }
func (v Video) MediaPath() string { return v.Path }
func (v Video) DisplayName() string { return v.Name }
func (v Video) MediaDuration() float64 { return v.Duration }
func (Audio) Kind() Kind { return KindAudio }
func (a Audio) MediaPath() string { return a.Path }
func (a Audio) DisplayName() string { return a.Name }
func (a Audio) MediaDuration() float64 { return a.Duration }

var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
}

var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".wma":  true,
	".aiff": true,
}

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}

// DetectKind classifies a file by MIME type when one is given, falling back
// to its extension.
func DetectKind(mimeType, path string) (Kind, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo, nil
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio, nil
	}

	switch {
	case IsVideoFile(path):
		return KindVideo, nil
	case IsAudioFile(path):
		return KindAudio, nil
	}

	if mimeType != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, filepath.Base(path))
}

// MIMEType guesses a content type for uploads from the file extension.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".mpeg", ".mpg":
		return "video/mpeg"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".aac":
		return "audio/aac"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
