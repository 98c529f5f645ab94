// Package generate composes the queue client, result extraction and the
// filesystem layer into a single admission-gated generation lifecycle, and
// fans it out for batch and compare requests with per-item isolation.
package generate

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"genvoy/internal/domain"
	"genvoy/internal/extract"
	"genvoy/internal/fal"
	"genvoy/internal/media"
	"genvoy/internal/metrics"
	"genvoy/internal/storage"
)

// Request is one immutable generation order. Created at the tool boundary
// after validation; read-only afterward.
type Request struct {
	ModelID    string
	Prompt     string
	Params     map[string]any
	OutputPath string
	RepoPath   string
	Timeout    time.Duration
}

// Options tunes the orchestrator.
type Options struct {
	// AuthHeader is attached to CDN downloads; generated asset links are
	// authenticated with the same credential as the API.
	AuthHeader     string
	MaxConcurrent  int
	JobTimeout     time.Duration
	FanoutTimeout  time.Duration
	PollInterval   time.Duration
	SubmitTimeout  time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.Collector
}

// Service owns the generation pipeline. The admission gate caps in-flight
// remote jobs process-wide; fan-out items contend for slots independently.
type Service struct {
	client        *fal.Client
	ws            *storage.Workspace
	downloader    *storage.Downloader
	gate          *semaphore.Weighted
	authHeader    string
	jobTimeout    time.Duration
	fanoutTimeout time.Duration
	pollInterval  time.Duration
	submitTimeout time.Duration
	logger        zerolog.Logger
	metrics       *metrics.Collector
}

// NewService wires the orchestrator with its collaborators.
func NewService(client *fal.Client, ws *storage.Workspace, downloader *storage.Downloader, opts Options) *Service {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = domain.MaxConcurrentJobs
	}
	jobTimeout := opts.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 360 * time.Second
	}
	fanoutTimeout := opts.FanoutTimeout
	if fanoutTimeout <= 0 {
		fanoutTimeout = 600 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 60 * time.Second
	}
	return &Service{
		client:        client,
		ws:            ws,
		downloader:    downloader,
		gate:          semaphore.NewWeighted(int64(maxConcurrent)),
		authHeader:    opts.AuthHeader,
		jobTimeout:    jobTimeout,
		fanoutTimeout: fanoutTimeout,
		pollInterval:  pollInterval,
		submitTimeout: submitTimeout,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// Generate runs one complete generation: submit, await terminal state, fetch
// the result, download the asset, and optionally copy it to a secondary
// destination.
func (s *Service) Generate(ctx context.Context, req Request, rep Reporter) (*domain.GenerateResult, error) {
	if rep == nil {
		rep = NopReporter{}
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.jobTimeout
	}

	s.metrics.JobStarted()
	start := time.Now()
	result, err := s.generate(ctx, req, timeout, rep)
	if err != nil {
		s.metrics.JobFailed()
		s.logger.Warn().Err(err).Str("model_id", req.ModelID).Msg("generation failed")
		return nil, err
	}
	s.metrics.JobCompleted(time.Since(start))
	return result, nil
}

func (s *Service) generate(ctx context.Context, req Request, timeout time.Duration, rep Reporter) (*domain.GenerateResult, error) {
	handle, terminal, resultPayload, err := s.runRemoteJob(ctx, req, timeout, rep)
	if err != nil {
		return nil, err
	}

	resultURL, ok := extract.MediaURL(resultPayload)
	if !ok {
		return nil, domain.NewToolError(domain.CodeInvalidResponse,
			"no media URL found in fal.ai result payload")
	}

	_, ext := media.Detect(resultURL, "")
	outputPath, err := s.ws.ResolveOutput(req.OutputPath, ext)
	if err != nil {
		return nil, err
	}
	download, err := s.downloader.Download(ctx, resultURL, outputPath,
		map[string]string{"Authorization": s.authHeader})
	if err != nil {
		return nil, err
	}
	s.metrics.DownloadedBytes(download.SizeBytes)

	repoPath := ""
	if req.RepoPath != "" {
		target := req.RepoPath
		if filepath.Ext(target) == "" {
			if downloadedExt := filepath.Ext(download.Path); downloadedExt != "" {
				target += downloadedExt
			}
		}
		repoPath, err = s.ws.CopyInto(download.Path, target)
		if err != nil {
			return nil, err
		}
	}

	result := &domain.GenerateResult{
		RequestID:  handle.RequestID,
		OutputPath: download.Path,
		RepoPath:   repoPath,
		MediaType:  string(download.Media),
		FileSizeKB: math.Round(float64(download.SizeBytes)/1024*1000) / 1000,
		ModelID:    req.ModelID,
		ResultURL:  resultURL,
	}
	// The result payload's values win; the terminal status payload fills in.
	if cost, ok := extract.CostUSD(resultPayload); ok {
		result.CostUSD = &cost
	} else if cost, ok := extract.CostUSD(terminal.Raw); ok {
		result.CostUSD = &cost
	}
	if duration, ok := extract.DurationMS(resultPayload); ok {
		result.DurationMS = &duration
	} else if duration, ok := extract.DurationMS(terminal.Raw); ok {
		result.DurationMS = &duration
	}

	s.logger.Info().Str("model_id", req.ModelID).Str("request_id", handle.RequestID).
		Str("output_path", download.Path).Int64("bytes", download.SizeBytes).
		Msg("generation completed")
	return result, nil
}

// runRemoteJob holds an admission-gate slot for the remote phase only:
// submit, await terminal state, fetch result. The CDN download happens
// outside the gate.
func (s *Service) runRemoteJob(ctx context.Context, req Request, timeout time.Duration, rep Reporter) (domain.JobHandle, domain.StatusEvent, map[string]any, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return domain.JobHandle{}, domain.StatusEvent{}, nil, err
	}
	defer s.gate.Release(1)

	payload := map[string]any{"prompt": req.Prompt}
	for key, value := range req.Params {
		payload[key] = value
	}
	handle, err := s.client.SubmitJob(ctx, req.ModelID, payload, s.submitTimeout)
	if err != nil {
		return domain.JobHandle{}, domain.StatusEvent{}, nil, err
	}

	onStatus := func(event domain.StatusEvent) {
		progress := event.Progress
		if event.State == domain.StateCompleted {
			progress = 100
		}
		rep.Report(ctx, progress, fmt.Sprintf("%s status=%s", req.ModelID, stateLabel(event.State)))
	}
	terminal, err := s.client.WaitForCompletion(ctx, handle, timeout, s.pollInterval, onStatus)
	if err != nil {
		return handle, domain.StatusEvent{}, nil, err
	}
	resultPayload, err := s.client.JobResult(ctx, handle)
	if err != nil {
		return handle, terminal, nil, err
	}
	return handle, terminal, resultPayload, nil
}

func stateLabel(state domain.JobState) string {
	if state == "" {
		return "UNKNOWN"
	}
	return string(state)
}

// GenerateBatch fans out count independent generations of one model/prompt.
// Failures are captured per item, tagged by 1-based index; no early abort.
func (s *Service) GenerateBatch(ctx context.Context, modelID, prompt string, count int, outputDir, repoDir string, params map[string]any, rep Reporter) *domain.BatchResult {
	slug := domain.SlugifyModelID(modelID)
	requests := make([]Request, count)
	for i := range requests {
		stem := fmt.Sprintf("%s_%d", slug, i+1)
		requests[i] = Request{
			ModelID:    modelID,
			Prompt:     prompt,
			Params:     params,
			OutputPath: filepath.Join(outputDir, stem),
			Timeout:    s.fanoutTimeout,
		}
		if repoDir != "" {
			requests[i].RepoPath = filepath.Join(repoDir, stem)
		}
	}
	results, errs := s.fanOut(ctx, requests, rep)

	out := &domain.BatchResult{Files: []domain.GenerateResult{}, Failed: []domain.FailedItem{}}
	for i := range requests {
		if errs[i] != nil {
			out.Failed = append(out.Failed, domain.FailedItem{Index: i + 1, Error: errs[i].Error()})
			continue
		}
		out.Files = append(out.Files, *results[i])
	}
	return out
}

// GenerateCompare runs the same prompt across several models. Failures are
// keyed by the originating model ID.
func (s *Service) GenerateCompare(ctx context.Context, modelIDs []string, prompt, outputDir, repoDir string, params map[string]any, rep Reporter) *domain.CompareResult {
	requests := make([]Request, len(modelIDs))
	for i, modelID := range modelIDs {
		slug := domain.SlugifyModelID(modelID)
		requests[i] = Request{
			ModelID:    modelID,
			Prompt:     prompt,
			Params:     params,
			OutputPath: filepath.Join(outputDir, slug),
			Timeout:    s.fanoutTimeout,
		}
		if repoDir != "" {
			requests[i].RepoPath = filepath.Join(repoDir, slug)
		}
	}
	results, errs := s.fanOut(ctx, requests, rep)

	out := &domain.CompareResult{Files: []domain.GenerateResult{}, Failed: []domain.FailedItem{}}
	for i, modelID := range modelIDs {
		if errs[i] != nil {
			out.Failed = append(out.Failed, domain.FailedItem{ModelID: modelID, Error: errs[i].Error()})
			continue
		}
		out.Files = append(out.Files, *results[i])
	}
	return out
}

// fanOut runs all requests concurrently. Results correlate back to requests
// by position after every goroutine settles.
func (s *Service) fanOut(ctx context.Context, requests []Request, rep Reporter) ([]*domain.GenerateResult, []error) {
	results := make([]*domain.GenerateResult, len(requests))
	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Generate(ctx, requests[i], rep)
		}(i)
	}
	wg.Wait()
	return results, errs
}
