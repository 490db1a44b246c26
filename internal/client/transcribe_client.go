package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
)

// TranscribeClient implements media.Transcriber against an OpenAI-compatible
// audio transcription endpoint (Groq Whisper in production).
type TranscribeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewTranscribeClient creates a new transcription client
func NewTranscribeClient(cfg *config.TranscribeConfig) *TranscribeClient {
	return &TranscribeClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

type transcriptionResponse struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads the audio and converts the verbose response into
// ordered, non-overlapping segments clamped to the source duration.
func (c *TranscribeClient) Transcribe(ctx context.Context, audioPath string, duration float64, onProgress media.ProgressFunc) ([]model.SubtitleSegment, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer audio.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	_ = form.WriteField("model", c.model)
	_ = form.WriteField("response_format", "verbose_json")
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	if onProgress != nil {
		onProgress(10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcription service error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if onProgress != nil {
		onProgress(90)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcription: %w", err)
	}

	segments := make([]model.SubtitleSegment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		segments = append(segments, model.SubtitleSegment{
			StartTime: s.Start,
			EndTime:   s.End,
			Text:      s.Text,
		})
	}

	if onProgress != nil {
		onProgress(100)
	}
	return NormalizeSegments(segments, duration), nil
}

// NormalizeSegments enforces the segment contract regardless of provider
// quirks: sorted by start, non-overlapping, end > start, bounded by the
// source duration.
func NormalizeSegments(segments []model.SubtitleSegment, duration float64) []model.SubtitleSegment {
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].StartTime < segments[j].StartTime
	})

	out := segments[:0]
	prevEnd := 0.0
	for _, s := range segments {
		if s.StartTime < prevEnd {
			s.StartTime = prevEnd
		}
		if duration > 0 && s.EndTime > duration {
			s.EndTime = duration
		}
		if s.EndTime <= s.StartTime {
			continue
		}
		out = append(out, s)
		prevEnd = s.EndTime
	}
	return out
}

// IsConfigured returns true if the client has valid configuration
func (c *TranscribeClient) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}
