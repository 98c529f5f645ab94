package fal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"genvoy/internal/domain"
)

// StatusFunc observes every decoded status event. Implementations must not
// block for long; they run inline with the stream read loop.
type StatusFunc func(domain.StatusEvent)

// StreamJobStatus opens the queue's SSE status stream and returns the first
// terminal event. Frames are blank-line delimited; a frame's data lines are
// concatenated and parsed as JSON, and every decoded frame is forwarded to
// onStatus. A StreamUnavailable error means "fall back to polling", not "job
// failed": it covers unsupported stream endpoints (404/405/501), transport
// failures, and streams that end without a terminal event.
func (c *Client) StreamJobStatus(ctx context.Context, handle domain.JobHandle, timeout time.Duration, onStatus StatusFunc) (domain.StatusEvent, error) {
	streamCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.requestURL(handle)+"/status/stream", nil)
	if err != nil {
		return domain.StatusEvent{}, fmt.Errorf("fal: build stream request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return domain.StatusEvent{}, domain.WrapError(domain.CodeStreamUnavailable,
			fmt.Sprintf("SSE stream unavailable: %v", err), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return domain.StatusEvent{}, domain.Errf(domain.CodeStreamUnavailable,
			"SSE stream unavailable for %s/%s", handle.ModelID, handle.RequestID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.StatusEvent{}, domain.Errf(domain.CodeStreamUnavailable,
			"SSE stream request failed: status %d", resp.StatusCode)
	}

	var (
		last      *domain.StatusEvent
		dataLines []string
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimLeft(line[5:], " \t"))
			continue
		}
		if strings.TrimSpace(line) != "" {
			continue
		}
		if len(dataLines) == 0 {
			continue
		}

		raw := strings.TrimSpace(strings.Join(dataLines, "\n"))
		dataLines = nil
		if raw == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			continue
		}
		event := domain.ParseStatusEvent(payload)
		last = &event
		if onStatus != nil {
			onStatus(event)
		}
		if event.Terminal() {
			return event, nil
		}
	}
	if err := scanner.Err(); err != nil {
		// Server closed mid-stream or the deadline hit: re-check the last
		// decoded frame before declaring the stream unusable.
		if last != nil && last.Terminal() {
			return *last, nil
		}
		return domain.StatusEvent{}, domain.WrapError(domain.CodeStreamUnavailable,
			fmt.Sprintf("SSE stream unavailable: %v", err), err)
	}

	if last != nil && last.Terminal() {
		return *last, nil
	}
	return domain.StatusEvent{}, domain.NewToolError(domain.CodeStreamUnavailable,
		"SSE stream ended without usable status events")
}

// WaitForCompletion drives a job to its terminal state: the SSE stream is
// attempted first, and only a StreamUnavailable failure triggers the polling
// fallback. Any other stream error propagates immediately. A FAILED terminal
// state from either path surfaces as JobFailed carrying the raw payload;
// exhausting the timeout without a terminal state surfaces as JobTimeout.
func (c *Client) WaitForCompletion(ctx context.Context, handle domain.JobHandle, timeout, pollInterval time.Duration, onStatus StatusFunc) (domain.StatusEvent, error) {
	event, err := c.StreamJobStatus(ctx, handle, timeout, onStatus)
	if err == nil {
		switch event.State {
		case domain.StateCompleted:
			return event, nil
		case domain.StateFailed:
			return domain.StatusEvent{}, jobFailed(event)
		}
	} else if !domain.IsCode(err, domain.CodeStreamUnavailable) {
		return domain.StatusEvent{}, err
	} else {
		c.logger.Debug().Str("request_id", handle.RequestID).
			Msg("status stream unavailable, falling back to polling")
	}

	// Elapsed time is accounted per poll tick, not by interrupting in-flight
	// calls: the last call is allowed to finish before the budget is checked.
	var elapsed time.Duration
	for elapsed < timeout {
		event, err := c.JobStatus(ctx, handle)
		if err != nil {
			return domain.StatusEvent{}, err
		}
		if onStatus != nil {
			onStatus(event)
		}
		switch event.State {
		case domain.StateCompleted:
			return event, nil
		case domain.StateFailed:
			return domain.StatusEvent{}, jobFailed(event)
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return domain.StatusEvent{}, domain.WrapError(domain.CodeJobTimeout,
				fmt.Sprintf("job %s wait aborted: %v", handle.RequestID, ctx.Err()), ctx.Err())
		}
		elapsed += pollInterval
	}
	return domain.StatusEvent{}, domain.Errf(domain.CodeJobTimeout,
		"job %s timed out after %s", handle.RequestID, timeout)
}

func jobFailed(event domain.StatusEvent) error {
	raw, err := json.Marshal(event.Raw)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", event.Raw))
	}
	return domain.Errf(domain.CodeJobFailed, "fal.ai job failed: %s", raw)
}
