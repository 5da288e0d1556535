package server

// InitializeRequest selects the workbook to ingest.
type InitializeRequest struct {
	Path string `json:"path"`
}

// InitializeResponse reports the ingestion outcome.
type InitializeResponse struct {
	Status   string `json:"status"`
	Snippets int    `json:"snippets"`
}

// ChatRequest is one question from the client.
type ChatRequest struct {
	Prompt    string   `json:"prompt"`
	Snippets  []string `json:"snippets,omitempty"`
	Detailed  bool     `json:"detailed,omitempty"`
	K         int      `json:"k,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// ChatResponse carries the generated (or refusal) answer.
type ChatResponse struct {
	Response string   `json:"response"`
	Snippets []string `json:"snippets"`
}

// StatusResponse describes the running service.
type StatusResponse struct {
	Status           string   `json:"status"`
	ChunksLoaded     int      `json:"chunks_loaded"`
	FormulaTemplates int      `json:"formula_templates"`
	HasIndex         bool     `json:"has_index"`
	SampleChunks     []string `json:"sample_chunks"`
}

// FormulaRequest asks for a formula explanation.
type FormulaRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// FormulaResponse carries the explanation and formula syntax.
type FormulaResponse struct {
	Explanation string `json:"explanation"`
	Formula     string `json:"formula"`
}

// FormulaTemplateResponse is one predefined template.
type FormulaTemplateResponse struct {
	Name        string `json:"name"`
	Formula     string `json:"formula"`
	Description string `json:"description"`
}

// HistoryOpenRequest opens a session or a single record.
type HistoryOpenRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ID        *int   `json:"id,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
