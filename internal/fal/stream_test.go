package fal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"genvoy/internal/domain"
)

func sseFrame(w http.ResponseWriter, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestStreamJobStatusDeliversTerminalEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		sseFrame(w, `{"status": "IN_QUEUE", "progress": 0}`)
		sseFrame(w, `{"status": "IN_PROGRESS", "progress": 0.4}`)
		sseFrame(w, `{"status": "COMPLETED", "progress": 1}`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	var seen []domain.StatusEvent
	handle := domain.JobHandle{ModelID: "fal-ai/flux", RequestID: "req-1"}
	event, err := c.StreamJobStatus(context.Background(), handle, 5*time.Second, func(e domain.StatusEvent) {
		seen = append(seen, e)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if event.State != domain.StateCompleted {
		t.Fatalf("state = %q, want COMPLETED", event.State)
	}
	if len(seen) != 3 {
		t.Fatalf("observed %d events, want 3", len(seen))
	}
	if seen[1].State != domain.StateInProgress || seen[1].Progress != 40 {
		t.Fatalf("second event = %+v, want IN_PROGRESS at 40%%", seen[1])
	}
}

func TestStreamJobStatusSkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseFrame(w, `not json at all`)
		sseFrame(w, `{"status": "COMPLETED"}`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	handle := domain.JobHandle{ModelID: "fal-ai/flux", RequestID: "req-1"}
	event, err := c.StreamJobStatus(context.Background(), handle, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if event.State != domain.StateCompleted {
		t.Fatalf("state = %q", event.State)
	}
}

func TestStreamJobStatusUnsupportedEndpoint(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		c := newTestClient(t, srv.URL)

		handle := domain.JobHandle{ModelID: "fal-ai/flux", RequestID: "req-1"}
		_, err := c.StreamJobStatus(context.Background(), handle, time.Second, nil)
		if !domain.IsCode(err, domain.CodeStreamUnavailable) {
			t.Fatalf("status %d: code = %q, want %q", status, domain.CodeOf(err), domain.CodeStreamUnavailable)
		}
		srv.Close()
	}
}

func TestStreamJobStatusEndsWithoutTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseFrame(w, `{"status": "IN_PROGRESS", "progress": 0.5}`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	handle := domain.JobHandle{ModelID: "fal-ai/flux", RequestID: "req-1"}
	_, err := c.StreamJobStatus(context.Background(), handle, time.Second, nil)
	if !domain.IsCode(err, domain.CodeStreamUnavailable) {
		t.Fatalf("code = %q, want %q", domain.CodeOf(err), domain.CodeStreamUnavailable)
	}
}

func TestWaitForCompletionFallsBackToPolling(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/fal-ai/flux/requests/req-1/status/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/fal-ai/flux/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			w.Write([]byte(`{"status": "IN_PROGRESS", "progress": 0.5}`))
			return
		}
		w.Write([]byte(`{"status": "COMPLETED", "progress": 1}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	handle := domain.JobHandle{ModelID: "fal-ai/flux", RequestID: "req-1"}
	event, err := c.WaitForCompletion(context.Background(), handle, 10*time.Second, 5*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if event.State != domain.StateCompleted {
		t.Fatalf("state = %q", event.State)
	}
	if atomic.LoadInt32(&polls) < 3 {
		t.Fatalf("polls = %d, fallback did not drive the job to completion", polls)
	}
}

func TestWaitForCompletionStreamFailureDoesNotFallBack(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/fal-ai/flux/requests/req-1/status/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseFrame(w, `{"status": "FAILED", "error": "nsfw content"}`)
	})
	mux.HandleFunc("/fal-ai/flux/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		w.Write([]byte(`{"status": "IN_PROGRESS"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	handle := domain.JobHandle{ModelID: "fal-ai/flux", RequestID: "req-1"}
	_, err := c.WaitForCompletion(context.Background(), handle, 10*time.Second, time.Millisecond, nil)
	if !domain.IsCode(err, domain.CodeJobFailed) {
		t.Fatalf("code = %q, want %q", domain.CodeOf(err), domain.CodeJobFailed)
	}
	if atomic.LoadInt32(&polls) != 0 {
		t.Fatalf("a FAILED stream result must not trigger polling, got %d polls", polls)
	}
}

func TestWaitForCompletionTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fal-ai/flux/requests/req-1/status/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/fal-ai/flux/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "IN_PROGRESS", "progress": 0.1}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	handle := domain.JobHandle{ModelID: "fal-ai/flux", RequestID: "req-1"}
	_, err := c.WaitForCompletion(context.Background(), handle, 20*time.Millisecond, 5*time.Millisecond, nil)
	if !domain.IsCode(err, domain.CodeJobTimeout) {
		t.Fatalf("code = %q, want %q", domain.CodeOf(err), domain.CodeJobTimeout)
	}
}
