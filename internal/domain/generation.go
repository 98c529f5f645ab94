package domain

// GenerateResult is the unit returned to the tool boundary for one completed
// generation: where the asset landed, what it is, and what it cost.
type GenerateResult struct {
	RequestID  string   `json:"request_id"`
	OutputPath string   `json:"output_path"`
	RepoPath   string   `json:"repo_path,omitempty"`
	MediaType  string   `json:"media_type"`
	FileSizeKB float64  `json:"file_size_kb"`
	ModelID    string   `json:"model_id"`
	CostUSD    *float64 `json:"cost_usd,omitempty"`
	DurationMS *int64   `json:"duration_ms,omitempty"`
	ResultURL  string   `json:"result_url"`
}

// FailedItem tags a per-item failure inside a fan-out. Batch failures carry a
// 1-based index; compare failures carry the originating model ID.
type FailedItem struct {
	Index   int    `json:"index,omitempty"`
	ModelID string `json:"model_id,omitempty"`
	Error   string `json:"error"`
}

// BatchResult separates succeeded items from failed ones; a failure in one
// item never aborts the rest.
type BatchResult struct {
	Files  []GenerateResult `json:"files"`
	Failed []FailedItem     `json:"failed"`
}

// CompareResult mirrors BatchResult for cross-model comparison runs.
type CompareResult struct {
	Files  []GenerateResult `json:"files"`
	Failed []FailedItem     `json:"failed"`
}
