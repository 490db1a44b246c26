package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// FFmpeg wraps the external ffmpeg/ffprobe binaries. It is constructed
// explicitly and injected into each pipeline, so there is no hidden global
// tool state and tests can swap the runner.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
}

// NewFFmpeg builds the production service using os/exec.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      execRunner{},
	}
}

// NewFFmpegWithRunner builds the service with an injected command runner.
func NewFFmpegWithRunner(ffmpegPath, ffprobePath string, r Runner) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      r,
	}
}

// ExtractAudio decodes the audio track of a video into an uncompressed
// 44.1kHz stereo WAV artifact.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath string, scope *ArtifactScope) (string, error) {
	outPath := scope.Create("wav")
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		outPath,
	}
	if err := f.run(ctx, f.ffmpegPath, args, outPath); err != nil {
		return "", fmt.Errorf("failed to extract audio: %w", err)
	}
	return outPath, nil
}

// StripAudio copies the video stream into a new silent MP4 without
// re-encoding.
func (f *FFmpeg) StripAudio(ctx context.Context, videoPath string, scope *ArtifactScope) (string, error) {
	outPath := scope.Create("mp4")
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", videoPath,
		"-c:v", "copy",
		"-an",
		outPath,
	}
	if err := f.run(ctx, f.ffmpegPath, args, outPath); err != nil {
		return "", fmt.Errorf("failed to strip audio: %w", err)
	}
	return outPath, nil
}

// Remux combines a silent video with an audio track, copying video and
// encoding audio to AAC for container compatibility.
func (f *FFmpeg) Remux(ctx context.Context, videoPath, audioPath string, scope *ArtifactScope) (string, error) {
	outPath := scope.Create("mp4")
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		outPath,
	}
	if err := f.run(ctx, f.ffmpegPath, args, outPath); err != nil {
		return "", fmt.Errorf("failed to remux audio with video: %w", err)
	}
	return outPath, nil
}

// MediaInfo is the probed shape of a media file.
type MediaInfo struct {
	Duration float64
	HasAudio bool
	HasVideo bool
	Format   string
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// Probe inspects a media file with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	args := []string{
		"-hide_banner",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	stdout, stderr, err := f.runner.Run(ctx, f.ffprobePath, args...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w (%s)", err, truncate(string(stderr), 512))
	}

	var probed probeOutput
	if err := json.Unmarshal(stdout, &probed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{Format: probed.Format.FormatName}
	if probed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, s := range probed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			info.HasVideo = true
		}
	}
	return info, nil
}

// run executes an ffmpeg invocation and verifies the output file exists.
func (f *FFmpeg) run(ctx context.Context, bin string, args []string, outPath string) error {
	_, stderr, err := f.runner.Run(ctx, bin, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %s", bin, exitErr.ExitCode(), truncate(string(stderr), 512))
		}
		return err
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("%s completed but output file is missing: %w", bin, err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
