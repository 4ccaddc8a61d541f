package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes one finished pipeline run.
type Run struct {
	RunID        string      `json:"runId"`
	Trigger      string      `json:"trigger"`
	Status       string      `json:"status"`
	Outcome      string      `json:"outcome,omitempty"`
	FailedStage  string      `json:"failedStage,omitempty"`
	FailureClass string      `json:"failureClass,omitempty"`
	Error        string      `json:"error,omitempty"`
	Fetched      int         `json:"fetched"`
	Included     []string    `json:"included"`
	Overflow     []string    `json:"overflow"`
	Excluded     []Exclusion `json:"excluded"`
	TargetWords  int         `json:"targetWords"`
	Words        int         `json:"words"`
	Subject      string      `json:"subject,omitempty"`
	Records      []Record    `json:"records,omitempty"`
	StartedAt    string      `json:"startedAt,omitempty"`
	FinishedAt   string      `json:"finishedAt,omitempty"`
	DurationMS   int64       `json:"durationMs"`
}

// Exclusion explains why a fetched newsletter was left out.
type Exclusion struct {
	DocumentID string `json:"documentId"`
	Subject    string `json:"subject"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// Record is the per-document state at the end of a run.
type Record struct {
	DocumentID string `json:"documentId"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
}

// WorkflowStatus summarizes orchestrator state.
type WorkflowStatus struct {
	Running     bool          `json:"running"`
	State       string        `json:"state"`
	CurrentRun  string        `json:"currentRun,omitempty"`
	LastRun     *Run          `json:"lastRun,omitempty"`
	StageHealth []StageHealth `json:"stageHealth"`
	NextRun     string        `json:"nextRun,omitempty"`
}

// StageHealth mirrors readiness reporting for collaborators.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// RunAccepted acknowledges a triggered run.
type RunAccepted struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
