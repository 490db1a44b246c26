package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/api/internal/model"
)

// ErrSourceUnavailable marks a source asset that could not be fetched into
// the local workspace.
var ErrSourceUnavailable = errors.New("source unavailable")

// StepError carries the failing step's name up to the queue handler, which
// decides retry versus terminal failure.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// SourceFetcher pulls a stored asset into the run's artifact scope and
// returns the local path. Implemented by the asset repository.
type SourceFetcher interface {
	Fetch(ctx context.Context, storagePath string, scope *ArtifactScope) (string, error)
}

// Result is what a finished pipeline run hands back to the worker: either
// output bytes for a new asset, or subtitle segments.
type Result struct {
	Bytes     []byte
	Filename  string
	MimeType  string
	FileSize  int64
	Subtitles []model.SubtitleSegment
}

// Pipeline executes the ordered transformation steps for one job type. All
// collaborators are injected; nothing here holds global state.
type Pipeline struct {
	ffmpeg      *FFmpeg
	suppressor  NoiseSuppressor
	transcriber Transcriber
	source      SourceFetcher
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(ffmpeg *FFmpeg, suppressor NoiseSuppressor, transcriber Transcriber, source SourceFetcher) *Pipeline {
	return &Pipeline{
		ffmpeg:      ffmpeg,
		suppressor:  suppressor,
		transcriber: transcriber,
		source:      source,
	}
}

// Run fetches the source, executes the steps for the job type, and returns
// the final result. Artifacts created during the run are removed on every
// exit path. Progress is reported cumulatively through onProgress.
func (p *Pipeline) Run(ctx context.Context, jobType model.JobType, input model.InputData, onProgress ProgressFunc) (result *Result, err error) {
	scope, err := NewArtifactScope()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			log.Printf("Failed to clean up artifacts: %v", cerr)
		}
	}()

	sourcePath, err := p.source.Fetch(ctx, input.SourcePath, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	emit := monotonic(onProgress)

	switch jobType {
	case model.JobTypeNoiseRemoval:
		if strings.HasPrefix(input.MimeType, "video/") {
			return p.runVideoNoiseRemoval(ctx, sourcePath, input, scope, emit)
		}
		return p.runAudioNoiseRemoval(ctx, sourcePath, input, scope, emit)
	case model.JobTypeSubtitleGeneration:
		return p.runSubtitleGeneration(ctx, sourcePath, input, scope, emit)
	default:
		return nil, fmt.Errorf("unknown job type: %s", jobType)
	}
}

// runVideoNoiseRemoval: extract audio (10) → strip audio (20) → suppress
// (50, with sub-progress) → remux (20).
func (p *Pipeline) runVideoNoiseRemoval(ctx context.Context, sourcePath string, input model.InputData, scope *ArtifactScope, emit ProgressFunc) (*Result, error) {
	audioPath, err := p.ffmpeg.ExtractAudio(ctx, sourcePath, scope)
	if err != nil {
		return nil, &StepError{Step: "extract-audio", Err: err}
	}
	emit(10)

	silentPath, err := p.ffmpeg.StripAudio(ctx, sourcePath, scope)
	if err != nil {
		return nil, &StepError{Step: "strip-audio", Err: err}
	}
	emit(30)

	cleanedPath, err := p.suppressor.Suppress(ctx, audioPath, scope, func(sub int) {
		// Suppression owns the 30-80 band
		emit(30 + sub/2)
	})
	if err != nil {
		return nil, &StepError{Step: "noise-suppression", Err: err}
	}
	emit(80)

	finalPath, err := p.ffmpeg.Remux(ctx, silentPath, cleanedPath, scope)
	if err != nil {
		return nil, &StepError{Step: "remux", Err: err}
	}
	emit(95)

	data, err := os.ReadFile(finalPath)
	if err != nil {
		return nil, &StepError{Step: "remux", Err: fmt.Errorf("failed to read output: %w", err)}
	}
	emit(100)

	return &Result{
		Bytes:    data,
		Filename: outputFilename(input.OriginalName, "noise_removed", "mp4"),
		MimeType: "video/mp4",
		FileSize: int64(len(data)),
	}, nil
}

// runAudioNoiseRemoval: suppression is the whole run, sub-progress mapped
// onto the 20-90 band.
func (p *Pipeline) runAudioNoiseRemoval(ctx context.Context, sourcePath string, input model.InputData, scope *ArtifactScope, emit ProgressFunc) (*Result, error) {
	emit(20)
	cleanedPath, err := p.suppressor.Suppress(ctx, sourcePath, scope, func(sub int) {
		emit(20 + sub*7/10)
	})
	if err != nil {
		return nil, &StepError{Step: "noise-suppression", Err: err}
	}
	emit(90)

	data, err := os.ReadFile(cleanedPath)
	if err != nil {
		return nil, &StepError{Step: "noise-suppression", Err: fmt.Errorf("failed to read output: %w", err)}
	}
	emit(100)

	return &Result{
		Bytes:    data,
		Filename: outputFilename(input.OriginalName, "noise_removed", "wav"),
		MimeType: "audio/wav",
		FileSize: int64(len(data)),
	}, nil
}

// runSubtitleGeneration: optional audio extraction for video sources, then
// transcription over the remaining progress band.
func (p *Pipeline) runSubtitleGeneration(ctx context.Context, sourcePath string, input model.InputData, scope *ArtifactScope, emit ProgressFunc) (*Result, error) {
	audioPath := sourcePath
	base := 0

	if strings.HasPrefix(input.MimeType, "video/") {
		extracted, err := p.ffmpeg.ExtractAudio(ctx, sourcePath, scope)
		if err != nil {
			return nil, &StepError{Step: "extract-audio", Err: err}
		}
		audioPath = extracted
		base = 20
		emit(base)
	}

	duration := input.Duration
	if duration <= 0 {
		// The snapshot can miss the duration for assets ingested before
		// probing existed; measure the audio rather than guessing.
		info, err := p.ffmpeg.Probe(ctx, audioPath)
		if err != nil {
			return nil, &StepError{Step: "probe", Err: err}
		}
		if info.Duration <= 0 {
			return nil, &StepError{Step: "probe", Err: fmt.Errorf("source duration unknown")}
		}
		duration = info.Duration
	}

	segments, err := p.transcriber.Transcribe(ctx, audioPath, duration, func(sub int) {
		emit(base + sub*(95-base)/100)
	})
	if err != nil {
		return nil, &StepError{Step: "transcription", Err: err}
	}
	emit(100)

	return &Result{Subtitles: segments}, nil
}

// monotonic clamps emitted progress to 0-100 and never lets it decrease.
func monotonic(onProgress ProgressFunc) ProgressFunc {
	last := 0
	return func(progress int) {
		if progress > 100 {
			progress = 100
		}
		if progress <= last {
			return
		}
		last = progress
		if onProgress != nil {
			onProgress(progress)
		}
	}
}

// outputFilename derives a result asset name from the source name.
func outputFilename(originalName, suffix, extension string) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	if base == "" {
		base = "output"
	}
	return fmt.Sprintf("%s_%s_%d.%s", base, suffix, time.Now().UnixMilli(), extension)
}
