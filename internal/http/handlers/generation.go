package handlers

import (
	"encoding/json"
	"net/http"

	"genvoy/internal/domain"
	"genvoy/internal/generate"
)

type generateRequest struct {
	ModelID    string         `json:"model_id"`
	Prompt     string         `json:"prompt"`
	OutputPath string         `json:"output_path"`
	RepoPath   string         `json:"repo_path,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

func (req generateRequest) validate() error {
	if err := domain.ValidateModelID(req.ModelID); err != nil {
		return err
	}
	if err := domain.ValidatePrompt(req.Prompt); err != nil {
		return err
	}
	if req.OutputPath == "" {
		return domain.NewToolError(domain.CodeValidation, "output_path is required")
	}
	return nil
}

type batchRequest struct {
	ModelID   string         `json:"model_id"`
	Prompt    string         `json:"prompt"`
	Count     int            `json:"count"`
	OutputDir string         `json:"output_dir"`
	RepoDir   string         `json:"repo_dir,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

func (req batchRequest) validate() error {
	if err := domain.ValidateModelID(req.ModelID); err != nil {
		return err
	}
	if err := domain.ValidatePrompt(req.Prompt); err != nil {
		return err
	}
	if req.Count < 1 || req.Count > domain.MaxBatchCount {
		return domain.Errf(domain.CodeValidation, "count must be between 1 and %d", domain.MaxBatchCount)
	}
	if req.OutputDir == "" {
		return domain.NewToolError(domain.CodeValidation, "output_dir is required")
	}
	return nil
}

type compareRequest struct {
	ModelIDs  []string       `json:"model_ids"`
	Prompt    string         `json:"prompt"`
	OutputDir string         `json:"output_dir"`
	RepoDir   string         `json:"repo_dir,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

func (req compareRequest) validate() error {
	if len(req.ModelIDs) < 2 || len(req.ModelIDs) > domain.MaxCompareModels {
		return domain.Errf(domain.CodeValidation, "model_ids must contain 2 to %d entries", domain.MaxCompareModels)
	}
	for _, modelID := range req.ModelIDs {
		if err := domain.ValidateModelID(modelID); err != nil {
			return err
		}
	}
	if err := domain.ValidatePrompt(req.Prompt); err != nil {
		return err
	}
	if req.OutputDir == "" {
		return domain.NewToolError(domain.CodeValidation, "output_dir is required")
	}
	return nil
}

// Generate runs one generation job end to end and returns where the asset
// landed.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, string(domain.CodeValidation), "invalid payload")
		return
	}
	if err := req.validate(); err != nil {
		a.toolError(w, err)
		return
	}

	result, err := a.Generator.Generate(r.Context(), generate.Request{
		ModelID:    req.ModelID,
		Prompt:     req.Prompt,
		Params:     req.Params,
		OutputPath: req.OutputPath,
		RepoPath:   req.RepoPath,
	}, a.reporter())
	if err != nil {
		a.toolError(w, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

// GenerateBatch fans out count generations of one model/prompt and reports
// partial successes alongside per-index failures.
func (a *App) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, string(domain.CodeValidation), "invalid payload")
		return
	}
	if err := req.validate(); err != nil {
		a.toolError(w, err)
		return
	}

	result := a.Generator.GenerateBatch(r.Context(), req.ModelID, req.Prompt, req.Count,
		req.OutputDir, req.RepoDir, req.Params, a.reporter())
	a.json(w, http.StatusOK, result)
}

// GenerateCompare runs the same prompt across multiple models; failures are
// keyed by model ID.
func (a *App) GenerateCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, string(domain.CodeValidation), "invalid payload")
		return
	}
	if err := req.validate(); err != nil {
		a.toolError(w, err)
		return
	}

	result := a.Generator.GenerateCompare(r.Context(), req.ModelIDs, req.Prompt,
		req.OutputDir, req.RepoDir, req.Params, a.reporter())
	a.json(w, http.StatusOK, result)
}

func (a *App) reporter() generate.Reporter {
	return generate.LogReporter{Logger: a.Logger}
}
