package domain

import "testing"

func TestParseStatusEventState(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    JobState
	}{
		{
			name:    "status key",
			payload: map[string]any{"status": "COMPLETED"},
			want:    StateCompleted,
		},
		{
			name:    "state key",
			payload: map[string]any{"state": "failed"},
			want:    StateFailed,
		},
		{
			name:    "lowercase normalized",
			payload: map[string]any{"status": "in_progress"},
			want:    StateInProgress,
		},
		{
			name:    "nested data wins",
			payload: map[string]any{"status": "QUEUED", "data": map[string]any{"status": "COMPLETED"}},
			want:    StateCompleted,
		},
		{
			name:    "nested data falls through to outer",
			payload: map[string]any{"status": "QUEUED", "data": map[string]any{"other": 1}},
			want:    StateQueued,
		},
		{
			name:    "missing state",
			payload: map[string]any{"other": true},
			want:    JobState(""),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseStatusEvent(tc.payload).State; got != tc.want {
				t.Fatalf("state = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseStatusEventProgress(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    float64
	}{
		{
			name:    "fraction scaled to percent",
			payload: map[string]any{"progress": 0.5},
			want:    50,
		},
		{
			name:    "percentage passed through",
			payload: map[string]any{"progress": 42.0},
			want:    42,
		},
		{
			name:    "clamped above 100",
			payload: map[string]any{"progress": 150.0},
			want:    100,
		},
		{
			name:    "clamped below 0",
			payload: map[string]any{"progress": -3.0},
			want:    0,
		},
		{
			name:    "progress_percent alias",
			payload: map[string]any{"progress_percent": 80.0},
			want:    80,
		},
		{
			name:    "percentage alias",
			payload: map[string]any{"percentage": 25.0},
			want:    25,
		},
		{
			name:    "metrics fallback",
			payload: map[string]any{"metrics": map[string]any{"progress": 0.25}},
			want:    25,
		},
		{
			name:    "nested data source",
			payload: map[string]any{"progress": 90.0, "data": map[string]any{"progress": 0.1}},
			want:    10,
		},
		{
			name:    "absent defaults to zero",
			payload: map[string]any{"status": "QUEUED"},
			want:    0,
		},
		{
			name:    "non-numeric ignored",
			payload: map[string]any{"progress": "lots"},
			want:    0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseStatusEvent(tc.payload).Progress; got != tc.want {
				t.Fatalf("progress = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Fatalf("COMPLETED and FAILED must be terminal")
	}
	if StateQueued.Terminal() || StateInProgress.Terminal() || JobState("").Terminal() {
		t.Fatalf("non-terminal states reported terminal")
	}
}
