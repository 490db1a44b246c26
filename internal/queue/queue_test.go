package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/clipforge/api/internal/model"
)

func TestTaskTypeMapping(t *testing.T) {
	if got := TaskType(model.JobTypeNoiseRemoval); got != TaskTypeNoiseRemoval {
		t.Errorf("unexpected task type %q", got)
	}
	if got := TaskType(model.JobTypeSubtitleGeneration); got != TaskTypeSubtitleGeneration {
		t.Errorf("unexpected task type %q", got)
	}
	if got := QueueName(model.JobTypeNoiseRemoval); got != "noise-removal" {
		t.Errorf("unexpected queue name %q", got)
	}
}

func TestExponentialBackoff_DoublesPerAttempt(t *testing.T) {
	fn := ExponentialBackoff(2 * time.Second)
	err := errors.New("boom")

	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
	}
	for _, tc := range cases {
		if got := fn(tc.n, err, nil); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.n, tc.want, got)
		}
	}
}

func TestExponentialBackoff_Bounded(t *testing.T) {
	fn := ExponentialBackoff(time.Second)
	err := errors.New("boom")

	if got := fn(-1, err, nil); got != time.Second {
		t.Errorf("negative attempt: expected base delay, got %v", got)
	}
	// Large attempt counts must not overflow into a negative duration
	if got := fn(1000, err, nil); got <= 0 {
		t.Errorf("large attempt produced non-positive delay %v", got)
	}
}
