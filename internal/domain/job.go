package domain

import "strings"

// JobState is the normalized remote queue state. States are upper-cased on
// decode; only COMPLETED and FAILED are terminal.
type JobState string

const (
	StateQueued     JobState = "QUEUED"
	StateInProgress JobState = "IN_PROGRESS"
	StateCompleted  JobState = "COMPLETED"
	StateFailed     JobState = "FAILED"
)

// Terminal reports whether no further state transitions can occur.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// JobHandle correlates a submitted queue job with subsequent status, result
// and cancel calls. The request ID is assigned by the remote queue; a handle
// is never reused across two submissions.
type JobHandle struct {
	ModelID   string
	RequestID string
}

// StatusEvent is a decoded snapshot of remote job state. Each event
// supersedes the prior one; only the most recent and the terminal event
// matter. Raw keeps the undecoded payload for nested extraction.
type StatusEvent struct {
	State    JobState
	Progress float64
	Raw      map[string]any
}

// Terminal reports whether the event carries a terminal state.
func (e StatusEvent) Terminal() bool {
	return e.State.Terminal()
}

// ParseStatusEvent normalizes a raw queue status payload. The state is read
// from status/state keys, preferring a nested data object when present, and
// upper-cased. Progress accepts 0-1 fractions or 0-100 percentages and is
// clamped to [0,100].
func ParseStatusEvent(payload map[string]any) StatusEvent {
	return StatusEvent{
		State:    stateFromPayload(payload),
		Progress: progressFromPayload(payload),
		Raw:      payload,
	}
}

func stateFromPayload(payload map[string]any) JobState {
	if nested, ok := payload["data"].(map[string]any); ok {
		if s := firstString(nested, "status", "state"); s != "" {
			return JobState(strings.ToUpper(s))
		}
	}
	return JobState(strings.ToUpper(firstString(payload, "status", "state")))
}

func progressFromPayload(payload map[string]any) float64 {
	source := payload
	if nested, ok := payload["data"].(map[string]any); ok {
		source = nested
	}

	raw, ok := firstNumber(source, "progress", "progress_percent", "percentage")
	if !ok {
		if metrics, isMap := source["metrics"].(map[string]any); isMap {
			raw, ok = firstNumber(metrics, "progress")
		}
	}
	if !ok {
		return 0
	}
	if raw >= 0 && raw <= 1 {
		raw *= 100
	}
	return clampProgress(raw)
}

func clampProgress(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
	}
	return 0, false
}
