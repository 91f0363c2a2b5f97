package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ronaldod-hc/legendas-app/internal/logging"
	"github.com/ronaldod-hc/legendas-app/internal/segment"
)

func TestParseVerboseJSONResponse(t *testing.T) {
	transcriber := &OpenAITranscriber{}

	tests := []struct {
		name             string
		rawJSON          string
		fallbackDuration float64
		wantCount        int
		wantErr          bool
	}{
		{
			name: "valid verbose_json with segments",
			rawJSON: `{
				"text": "Hello world. How are you today?",
				"segments": [
					{"start": 0.0, "end": 1.5, "text": "Hello world."},
					{"start": 1.5, "end": 3.0, "text": "How are you today?"}
				],
				"language": "en",
				"duration": 3.0
			}`,
			fallbackDuration: 5,
			wantCount:        2,
		},
		{
			name: "verbose_json with no segments but has text",
			rawJSON: `{
				"text": "This is a transcription without segments.",
				"segments": [],
				"language": "en",
				"duration": 2.5
			}`,
			fallbackDuration: 5,
			wantCount:        1,
		},
		{
			name: "verbose_json with null segments",
			rawJSON: `{
				"text": "Transcription text only.",
				"segments": null,
				"language": "en",
				"duration": 1.0
			}`,
			fallbackDuration: 5,
			wantCount:        1,
		},
		{
			name: "verbose_json with empty text segments filtered out",
			rawJSON: `{
				"text": "Hello world",
				"segments": [
					{"start": 0.0, "end": 0.5, "text": ""},
					{"start": 0.5, "end": 1.5, "text": "Hello world"},
					{"start": 1.5, "end": 2.0, "text": "   "}
				],
				"language": "en",
				"duration": 2.0
			}`,
			fallbackDuration: 5,
			wantCount:        1,
		},
		{
			name: "verbose_json with whitespace-padded text",
			rawJSON: `{
				"text": "  Trimmed text  ",
				"segments": [
					{"start": 0.0, "end": 1.0, "text": "  Trimmed text  "}
				],
				"language": "en",
				"duration": 1.0
			}`,
			fallbackDuration: 5,
			wantCount:        1,
		},
		{
			name:             "empty response",
			rawJSON:          "",
			fallbackDuration: 5,
			wantErr:          true,
		},
		{
			name:             "invalid JSON",
			rawJSON:          `{"text": "incomplete`,
			fallbackDuration: 5,
			wantErr:          true,
		},
		{
			name: "no segments and no text",
			rawJSON: `{
				"text": "",
				"segments": [],
				"language": "en",
				"duration": 0
			}`,
			fallbackDuration: 5,
			wantErr:          true,
		},
		{
			name: "real whisper response format",
			rawJSON: `{
				"task": "transcribe",
				"language": "english",
				"duration": 8.470000267028809,
				"text": "The stale smell of old beer lingers. It takes heat to bring out the odor.",
				"segments": [
					{
						"id": 0,
						"seek": 0,
						"start": 0.0,
						"end": 3.319999933242798,
						"text": "The stale smell of old beer lingers.",
						"tokens": [50364, 440, 23025, 7966, 295, 1331, 8388, 22949, 404, 13, 50530],
						"temperature": 0.0,
						"avg_logprob": -0.2860786020755768,
						"compression_ratio": 1.2363636493682861,
						"no_speech_prob": 0.009231
					},
					{
						"id": 1,
						"seek": 0,
						"start": 3.319999933242798,
						"end": 6.190000057220459,
						"text": "It takes heat to bring out the odor.",
						"tokens": [50530, 467, 2516, 3738, 281, 1565, 484, 264, 10602, 13, 50673],
						"temperature": 0.0,
						"avg_logprob": -0.2860786020755768,
						"compression_ratio": 1.2363636493682861,
						"no_speech_prob": 0.009231
					}
				]
			}`,
			fallbackDuration: 10,
			wantCount:        2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, err := transcriber.parseVerboseJSONResponse(
				tt.rawJSON,
				tt.fallbackDuration,
			)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(segments) != tt.wantCount {
				t.Errorf(
					"got %d segments, want %d",
					len(segments),
					tt.wantCount,
				)
			}

			// Verify segments have non-empty text
			for i, seg := range segments {
				if seg.Text == "" {
					t.Errorf("segment %d has empty text", i)
				}
			}
		})
	}
}

func TestParseVerboseJSONResponseSegments(t *testing.T) {
	transcriber := &OpenAITranscriber{}

	tests := []struct {
		name     string
		rawJSON  string
		fallback float64
		want     []segment.Segment
	}{
		{
			name: "ids stay dense after dropping blank text",
			rawJSON: `{"segments": [
				{"start": 1.5, "end": 3.0, "text": " Olá. "},
				{"start": 3.0, "end": 3.4, "text": "   "},
				{"start": 3.4, "end": 5.5, "text": "Tchau."}
			]}`,
			want: []segment.Segment{
				{ID: 1, StartTime: 1.5, EndTime: 3, Text: "Olá."},
				{ID: 2, StartTime: 3.4, EndTime: 5.5, Text: "Tchau."},
			},
		},
		{
			name:     "text only uses the reported duration",
			rawJSON:  `{"text": "sem segmentos", "duration": 10.5}`,
			fallback: 15,
			want:     []segment.Segment{{ID: 1, StartTime: 0, EndTime: 10.5, Text: "sem segmentos"}},
		},
		{
			name:     "text only falls back to the probed duration",
			rawJSON:  `{"text": "sem duração"}`,
			fallback: 15,
			want:     []segment.Segment{{ID: 1, StartTime: 0, EndTime: 15, Text: "sem duração"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transcriber.parseVerboseJSONResponse(tt.rawJSON, tt.fallback)
			if err != nil {
				t.Fatalf("parseVerboseJSONResponse() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func newOpenAITestTranscriber(t *testing.T, handler http.HandlerFunc, opts Options) *OpenAITranscriber {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &OpenAITranscriber{
		client: openai.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(srv.URL),
			option.WithMaxRetries(0),
		),
		model:   "whisper-1",
		options: opts,
		logger:  logging.NewNop(),
	}
}

func TestOpenAITranscribeWithTimestamps(t *testing.T) {
	var gotPath string
	tr := newOpenAITestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text": "oi tudo bem", "segments": [
			{"start": 0, "end": 1.2, "text": "oi"},
			{"start": 1.3, "end": 2.5, "text": "tudo bem"}
		]}`)
	}, Options{Language: "pt"})

	result, err := tr.transcribeWithTimestamps(context.Background(), strings.NewReader("audio"), 2.5)
	if err != nil {
		t.Fatalf("transcribeWithTimestamps() error: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/audio/transcriptions") {
		t.Errorf("request path = %q, want the transcriptions endpoint", gotPath)
	}

	want := &Result{
		Segments: []segment.Segment{
			{ID: 1, StartTime: 0, EndTime: 1.2, Text: "oi"},
			{ID: 2, StartTime: 1.3, EndTime: 2.5, Text: "tudo bem"},
		},
		Language: "pt",
		Duration: 2.5,
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenAIUpstreamFailure(t *testing.T) {
	tr := newOpenAITestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error": {"message": "boom", "type": "server_error"}}`)
	}, Options{TranscriptLanguage: "english"})

	t.Run("transcription", func(t *testing.T) {
		_, err := tr.transcribeWithTimestamps(context.Background(), strings.NewReader("audio"), 1)
		if !errors.Is(err, ErrUpstreamFailed) {
			t.Errorf("error = %v, want ErrUpstreamFailed", err)
		}
	})

	t.Run("translation", func(t *testing.T) {
		_, err := tr.transcribeWithTranslation(context.Background(), strings.NewReader("audio"), 1)
		if !errors.Is(err, ErrUpstreamFailed) {
			t.Errorf("error = %v, want ErrUpstreamFailed", err)
		}
	})
}

func TestShouldUseTranslation(t *testing.T) {
	tests := []struct {
		transcriptLang string
		want           bool
	}{
		{"english", true},
		{"English", true},
		{"ENGLISH", true},
		{"en", true},
		{"EN", true},
		{" english ", true},
		{"native", false},
		{"", false},
		{"spanish", false},
		{"japanese", false},
	}

	for _, tt := range tests {
		t.Run(tt.transcriptLang, func(t *testing.T) {
			transcriber := &OpenAITranscriber{
				options: Options{
					TranscriptLanguage: tt.transcriptLang,
				},
			}
			got := transcriber.shouldUseTranslation()
			if got != tt.want {
				t.Errorf("shouldUseTranslation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFallbackSingleSegment(t *testing.T) {
	transcriber := &OpenAITranscriber{}

	// Test case where response has text but no segments array
	rawJSON := `{
		"text": "This is a transcription without segments.",
		"duration": 10.5
	}`

	segments, err := transcriber.parseVerboseJSONResponse(rawJSON, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(segments) != 1 {
		t.Fatalf("expected 1 fallback segment, got %d", len(segments))
	}

	if segments[0].StartTime != 0 {
		t.Errorf(
			"fallback segment start time should be 0, got %v",
			segments[0].StartTime,
		)
	}

	// Duration from response should be used
	expectedEnd := 10.5
	if segments[0].EndTime != expectedEnd {
		t.Errorf(
			"fallback segment end time: got %v, want %v",
			segments[0].EndTime,
			expectedEnd,
		)
	}

	if segments[0].Text != "This is a transcription without segments." {
		t.Errorf("fallback segment text incorrect: %q", segments[0].Text)
	}
}
