package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/clipforge/api/internal/model"
)

// ProgressFunc receives sub-progress of a single external operation, 0-100.
type ProgressFunc func(progress int)

// NoiseSuppressor is the pluggable noise-suppression operation. It consumes
// one audio artifact and produces a cleaned audio artifact inside the given
// scope. Implementations may be slow and may fail independently.
type NoiseSuppressor interface {
	Suppress(ctx context.Context, audioPath string, scope *ArtifactScope, onProgress ProgressFunc) (string, error)
}

// Transcriber is the pluggable speech-to-text operation. It consumes one
// audio artifact and produces ordered, non-overlapping timed text segments
// bounded by the source duration.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, duration float64, onProgress ProgressFunc) ([]model.SubtitleSegment, error)
}

// StubSuppressor is the deterministic fallback used when no suppression
// service is configured. It copies the input audio unchanged, stepping
// sub-progress the way the real service streams it.
type StubSuppressor struct {
	StepDelay time.Duration
}

// NewStubSuppressor returns a fallback suppressor with a small per-step delay.
func NewStubSuppressor() *StubSuppressor {
	return &StubSuppressor{StepDelay: 200 * time.Millisecond}
}

func (s *StubSuppressor) Suppress(ctx context.Context, audioPath string, scope *ArtifactScope, onProgress ProgressFunc) (string, error) {
	log.Printf("Suppression service not configured, passing audio through: %s", audioPath)

	for _, progress := range []int{20, 40, 60, 80} {
		select {
		case <-time.After(s.StepDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}

	outPath := scope.Create("wav")
	if err := copyFile(audioPath, outPath); err != nil {
		return "", fmt.Errorf("failed to copy audio: %w", err)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return outPath, nil
}

// StubTranscriber is the deterministic fallback transcriber. Segment timing
// is a pure function of the source duration: 4s spans separated by 0.5s
// gaps, clipped to the duration, so tests get repeatable output.
type StubTranscriber struct {
	StepDelay time.Duration
}

// NewStubTranscriber returns a fallback transcriber with a small per-step delay.
func NewStubTranscriber() *StubTranscriber {
	return &StubTranscriber{StepDelay: 200 * time.Millisecond}
}

var stubTranscriptLines = []string{
	"Welcome to the editor.",
	"This clip is being transcribed automatically.",
	"Generated captions can be edited on the timeline.",
	"Audio quality affects transcription accuracy.",
	"Captions improve accessibility for every viewer.",
	"Export burns subtitles into the final render.",
	"Thanks for watching.",
}

func (t *StubTranscriber) Transcribe(ctx context.Context, audioPath string, duration float64, onProgress ProgressFunc) ([]model.SubtitleSegment, error) {
	log.Printf("Transcription service not configured, generating placeholder segments: %s", audioPath)

	for _, progress := range []int{25, 50, 75} {
		select {
		case <-time.After(t.StepDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}

	const segmentLen = 4.0
	const gap = 0.5

	var segments []model.SubtitleSegment
	start := 0.0
	for i := 0; start < duration; i++ {
		end := start + segmentLen
		if end > duration {
			end = duration
		}
		// Rounding can push a clamped end back past the duration (29.96
		// rounds to 30.0), so clamp again after rounding.
		segStart := round1(start)
		segEnd := round1(end)
		if segEnd > duration {
			segEnd = duration
		}
		if segEnd <= segStart {
			break
		}
		segments = append(segments, model.SubtitleSegment{
			StartTime: segStart,
			EndTime:   segEnd,
			Text:      stubTranscriptLines[i%len(stubTranscriptLines)],
		})
		start = end + gap
	}

	if onProgress != nil {
		onProgress(100)
	}
	return segments, nil
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
