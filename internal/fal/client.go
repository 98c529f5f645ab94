// Package fal is a typed client for the fal.ai catalog and job-queue APIs.
// Transport and status-code failures are mapped onto the closed ToolError
// taxonomy so callers can branch on error kinds instead of response codes.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genvoy/internal/domain"
)

const (
	defaultBaseURL  = "https://api.fal.ai/v1"
	defaultQueueURL = "https://queue.fal.run"

	// Start-timeout header on queue submissions; a 504 tagged with
	// X-Fal-Request-Timeout-Type: user means the job never started.
	startTimeoutHeader     = "X-Fal-Request-Timeout"
	startTimeoutTypeHeader = "X-Fal-Request-Timeout-Type"

	maxErrorBodyBytes = 500
)

// Options configures the fal.ai client.
type Options struct {
	// APIKey is the full authorization value, e.g. "Key <token>".
	APIKey         string
	BaseURL        string
	QueueURL       string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// Client performs HTTP calls against the fal.ai APIs.
type Client struct {
	apiKey     string
	baseURL    string
	queueURL   string
	httpClient *http.Client
	// streamClient carries no overall timeout; stream lifetimes are bounded
	// by the caller's context deadline instead.
	streamClient *http.Client
	logger       zerolog.Logger
}

// NewClient constructs a client. A missing credential is fatal here, not at
// first use.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, domain.NewToolError(domain.CodeMissingCredential, "FAL_KEY is not configured")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	streamClient := &http.Client{Transport: httpClient.Transport}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	queueURL := strings.TrimRight(opts.QueueURL, "/")
	if queueURL == "" {
		queueURL = defaultQueueURL
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		queueURL:     queueURL,
		httpClient:   httpClient,
		streamClient: streamClient,
		logger:       opts.Logger,
	}, nil
}

// do issues one request and decodes the JSON response, applying the fixed
// status-code-to-error table. Special cases are checked before the generic
// non-2xx mapping.
func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body any, headers map[string]string) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("fal: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("fal: build request: %w", err)
	}
	c.setHeaders(req)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.CodeNetworkError,
			fmt.Sprintf("fal.ai request failed: %v", err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.CodeNetworkError,
			fmt.Sprintf("fal.ai response read failed: %v", err), err)
	}

	if mapped := c.mapStatus(resp, rawURL, raw); mapped != nil {
		return nil, mapped
	}

	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.NewToolError(domain.CodeInvalidResponse, "fal.ai returned non-JSON payload")
	}
	return decoded, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *Client) mapStatus(resp *http.Response, rawURL string, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		if retryAfter == "" {
			retryAfter = "unknown"
		}
		return domain.Errf(domain.CodeRateLimited,
			"rate limited by fal.ai. Retry-After=%s", retryAfter)
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewToolError(domain.CodeModelNotFound, "model or request ID not found")
	case resp.StatusCode == http.StatusForbidden && strings.Contains(rawURL, "/models/usage"):
		return domain.NewToolError(domain.CodeAdminScope,
			"fal.ai usage history requires an Admin API key")
	case resp.StatusCode == http.StatusGatewayTimeout && resp.Header.Get(startTimeoutTypeHeader) == "user":
		return domain.NewToolError(domain.CodeQueueStartTimeout,
			"queue job did not start within the requested timeout window")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet := string(body)
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return domain.Errf(domain.CodeAPIError,
			"%d response from fal.ai: %s", resp.StatusCode, snippet)
	}
	return nil
}

// SearchModels queries the model catalog by keyword. The deprecated page
// parameter is accepted as a cursor alias; conflicting values are rejected.
func (c *Client) SearchModels(ctx context.Context, query, category, cursor, page string) (map[string]any, error) {
	effective, err := domain.NormalizeCursor(cursor, page)
	if err != nil {
		return nil, err
	}
	params := url.Values{"q": {query}}
	if category != "" {
		params.Set("category", category)
	}
	if effective != "" {
		params.Set("cursor", effective)
	}
	return c.do(ctx, http.MethodGet, c.baseURL+"/models", params, nil, nil)
}

// ListModels lists the model catalog with optional category and cursor.
func (c *Client) ListModels(ctx context.Context, category, cursor, page string) (map[string]any, error) {
	effective, err := domain.NormalizeCursor(cursor, page)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if effective != "" {
		params.Set("cursor", effective)
	}
	return c.do(ctx, http.MethodGet, c.baseURL+"/models", params, nil, nil)
}

// GetSchema fetches a model's OpenAPI input schema.
func (c *Client) GetSchema(ctx context.Context, modelID string) (map[string]any, error) {
	params := url.Values{"endpoint_id": {modelID}, "expand": {"openapi-3.0"}}
	payload, err := c.do(ctx, http.MethodGet, c.baseURL+"/models", params, nil, nil)
	if err != nil {
		return nil, err
	}
	if models, ok := payload["models"].([]any); ok && len(models) > 0 {
		if entry, ok := models[0].(map[string]any); ok {
			if openapi, ok := entry["openapi"].(map[string]any); ok {
				return openapi, nil
			}
			return entry, nil
		}
	}
	if openapi, ok := payload["openapi"].(map[string]any); ok {
		return openapi, nil
	}
	return payload, nil
}

// EstimateCost combines catalog pricing with a historical price estimate for
// the requested call quantity.
func (c *Client) EstimateCost(ctx context.Context, modelID string, count int) (map[string]any, error) {
	pricing, err := c.do(ctx, http.MethodGet, c.baseURL+"/models/pricing",
		url.Values{"endpoint_id": {modelID}}, nil, nil)
	if err != nil {
		return nil, err
	}
	estimate, err := c.do(ctx, http.MethodPost, c.baseURL+"/models/pricing/estimate", nil,
		map[string]any{
			"estimate_type": "historical_api_price",
			"endpoints":     map[string]any{modelID: map[string]any{"call_quantity": count}},
		}, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"pricing": pricing, "estimate": estimate}, nil
}

// ListRecent returns recent usage history. Requires an Admin-scoped key.
func (c *Client) ListRecent(ctx context.Context, modelID string, limit int) (map[string]any, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if modelID != "" {
		params.Set("endpoint_id", modelID)
	}
	return c.do(ctx, http.MethodGet, c.baseURL+"/models/usage", params, nil, nil)
}

// SubmitJob enqueues a generation job and returns its handle. The queue
// response must carry a non-empty request ID.
func (c *Client) SubmitJob(ctx context.Context, modelID string, payload map[string]any, startTimeout time.Duration) (domain.JobHandle, error) {
	seconds := int(startTimeout / time.Second)
	if seconds <= 0 {
		seconds = 60
	}
	data, err := c.do(ctx, http.MethodPost, c.queueURL+"/"+modelID, nil, payload,
		map[string]string{startTimeoutHeader: strconv.Itoa(seconds)})
	if err != nil {
		return domain.JobHandle{}, err
	}
	requestID, _ := data["request_id"].(string)
	if requestID == "" {
		requestID, _ = data["requestId"].(string)
	}
	if requestID == "" {
		return domain.JobHandle{}, domain.NewToolError(domain.CodeInvalidResponse,
			"fal.ai queue response missing request_id")
	}
	c.logger.Debug().Str("model_id", modelID).Str("request_id", requestID).Msg("job submitted")
	return domain.JobHandle{ModelID: modelID, RequestID: requestID}, nil
}

// JobStatus fetches and normalizes the current queue state for a handle.
func (c *Client) JobStatus(ctx context.Context, handle domain.JobHandle) (domain.StatusEvent, error) {
	payload, err := c.do(ctx, http.MethodGet, c.requestURL(handle)+"/status", nil, nil, nil)
	if err != nil {
		return domain.StatusEvent{}, err
	}
	return domain.ParseStatusEvent(payload), nil
}

// JobResult fetches the raw result payload for a completed job.
func (c *Client) JobResult(ctx context.Context, handle domain.JobHandle) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, c.requestURL(handle), nil, nil, nil)
}

// CancelJob asks the queue to cancel a job and returns the provider response.
func (c *Client) CancelJob(ctx context.Context, handle domain.JobHandle) (map[string]any, error) {
	return c.do(ctx, http.MethodPut, c.requestURL(handle)+"/cancel", nil, nil, nil)
}

func (c *Client) requestURL(handle domain.JobHandle) string {
	return c.queueURL + "/" + handle.ModelID + "/requests/" + handle.RequestID
}
