package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStubTranscriber_SegmentsForShortClip(t *testing.T) {
	tr := &StubTranscriber{}

	segments, err := tr.Transcribe(context.Background(), "/tmp/a.wav", 30, nil)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("expected segments for a 30s clip")
	}
	assertSegmentContract(t, segments, 30)
}

func TestStubTranscriber_Deterministic(t *testing.T) {
	tr := &StubTranscriber{}

	first, _ := tr.Transcribe(context.Background(), "/tmp/a.wav", 17.3, nil)
	second, _ := tr.Transcribe(context.Background(), "/tmp/a.wav", 17.3, nil)
	if len(first) != len(second) {
		t.Fatalf("segment counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("segment %d differs between runs", i)
		}
	}
}

func TestStubTranscriber_FractionalDurationStaysBounded(t *testing.T) {
	tr := &StubTranscriber{}

	// 29.96 rounds up to 30.0 at one decimal; the last segment must still
	// end at or before the real duration.
	segments, err := tr.Transcribe(context.Background(), "/tmp/a.wav", 29.96, nil)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("expected segments")
	}
	assertSegmentContract(t, segments, 29.96)
}

func TestStubTranscriber_TinyDuration(t *testing.T) {
	tr := &StubTranscriber{}

	segments, err := tr.Transcribe(context.Background(), "/tmp/a.wav", 0.8, nil)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected one clipped segment, got %d", len(segments))
	}
	if segments[0].EndTime > 0.8 {
		t.Errorf("segment exceeds duration: %+v", segments[0])
	}
}

func TestStubSuppressor_PassesAudioThrough(t *testing.T) {
	scope, err := NewArtifactScope()
	if err != nil {
		t.Fatalf("create scope: %v", err)
	}
	defer scope.Close()

	inPath := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(inPath, []byte("raw-audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var progress []int
	outPath, err := (&StubSuppressor{}).Suppress(context.Background(), inPath, scope, func(v int) {
		progress = append(progress, v)
	})
	if err != nil {
		t.Fatalf("suppress: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "raw-audio" {
		t.Error("stub must pass audio through unchanged")
	}
	assertMonotonic(t, progress)
	if progress[len(progress)-1] != 100 {
		t.Errorf("expected final sub-progress 100, got %v", progress)
	}
}

func TestArtifactScope_CloseRemovesEverything(t *testing.T) {
	scope, err := NewArtifactScope()
	if err != nil {
		t.Fatalf("create scope: %v", err)
	}

	if _, err := scope.Write("wav", []byte("a")); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if _, err := scope.Write("mp4", []byte("b")); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if scope.Count() != 2 {
		t.Errorf("expected 2 artifacts, got %d", scope.Count())
	}

	if err := scope.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(scope.Dir()); !os.IsNotExist(err) {
		t.Error("scope directory survived Close")
	}

	// Close is idempotent
	if err := scope.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
