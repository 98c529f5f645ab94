package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"genvoy/internal/domain"
)

// jobHandle rebuilds the remote correlation key from the request. Model IDs
// contain slashes, so they travel as a query parameter.
func (a *App) jobHandle(r *http.Request) (domain.JobHandle, error) {
	requestID := chi.URLParam(r, "request_id")
	if requestID == "" {
		return domain.JobHandle{}, domain.NewToolError(domain.CodeValidation, "request_id is required")
	}
	modelID := r.URL.Query().Get("model_id")
	if err := domain.ValidateModelID(modelID); err != nil {
		return domain.JobHandle{}, err
	}
	return domain.JobHandle{ModelID: modelID, RequestID: requestID}, nil
}

// JobStatus returns the current queue state of a submitted job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	handle, err := a.jobHandle(r)
	if err != nil {
		a.toolError(w, err)
		return
	}
	event, err := a.Client.JobStatus(r.Context(), handle)
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"request_id": handle.RequestID,
		"model_id":   handle.ModelID,
		"status":     event.State,
		"progress":   event.Progress,
		"raw":        event.Raw,
	})
}

// CancelJob requests cancellation for a queued job and returns the provider
// response payload.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	handle, err := a.jobHandle(r)
	if err != nil {
		a.toolError(w, err)
		return
	}
	payload, err := a.Client.CancelJob(r.Context(), handle)
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, payload)
}
