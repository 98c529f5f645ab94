package handlers

import (
	"net/http"
	"strconv"

	"genvoy/internal/domain"
)

const maxSearchQueryLength = 200

// SearchModels proxies a catalog keyword search. The legacy page parameter is
// accepted as a cursor alias.
func (a *App) SearchModels(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" || len(query) > maxSearchQueryLength {
		a.error(w, http.StatusBadRequest, string(domain.CodeValidation), "q must be 1-200 characters")
		return
	}
	payload, err := a.Client.SearchModels(r.Context(), query,
		r.URL.Query().Get("category"), r.URL.Query().Get("cursor"), r.URL.Query().Get("page"))
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, payload)
}

// ListModels returns the model catalog snapshot.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	payload, err := a.Client.ListModels(r.Context(),
		r.URL.Query().Get("category"), r.URL.Query().Get("cursor"), r.URL.Query().Get("page"))
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, payload)
}

// GetSchema fetches a model's input schema so callers can validate generation
// parameters before use.
func (a *App) GetSchema(w http.ResponseWriter, r *http.Request) {
	modelID := r.URL.Query().Get("model_id")
	if err := domain.ValidateModelID(modelID); err != nil {
		a.toolError(w, err)
		return
	}
	payload, err := a.Client.GetSchema(r.Context(), modelID)
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, payload)
}

// EstimateCost estimates generation cost for a model and call quantity.
func (a *App) EstimateCost(w http.ResponseWriter, r *http.Request) {
	modelID := r.URL.Query().Get("model_id")
	if err := domain.ValidateModelID(modelID); err != nil {
		a.toolError(w, err)
		return
	}
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			a.error(w, http.StatusBadRequest, string(domain.CodeValidation), "count must be a positive integer")
			return
		}
		count = parsed
	}
	payload, err := a.Client.EstimateCost(r.Context(), modelID, count)
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, payload)
}

// ListRecent returns recent usage history. Requires an Admin-scoped key.
func (a *App) ListRecent(w http.ResponseWriter, r *http.Request) {
	modelID := r.URL.Query().Get("model_id")
	if modelID != "" {
		if err := domain.ValidateModelID(modelID); err != nil {
			a.toolError(w, err)
			return
		}
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			a.error(w, http.StatusBadRequest, string(domain.CodeValidation), "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	payload, err := a.Client.ListRecent(r.Context(), modelID, limit)
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, payload)
}
