package api

import (
	"time"

	"letterpod/internal/workflow"
)

// FromRunSummary converts a run summary to its API representation.
func FromRunSummary(s workflow.RunSummary) Run {
	dto := Run{
		RunID:        s.RunID,
		Trigger:      s.Trigger,
		Status:       string(s.Status),
		Outcome:      string(s.Outcome),
		FailedStage:  string(s.FailedStage),
		FailureClass: s.FailureClass,
		Error:        s.Error,
		Fetched:      s.Fetched,
		Included:     nonNil(s.Included),
		Overflow:     nonNil(s.Overflow),
		Excluded:     make([]Exclusion, 0, len(s.Excluded)),
		TargetWords:  s.TargetWords,
		Words:        s.Words,
		Subject:      s.Subject,
		StartedAt:    formatTime(s.StartedAt),
		FinishedAt:   formatTime(s.FinishedAt),
		DurationMS:   s.Duration().Milliseconds(),
	}
	for _, e := range s.Excluded {
		dto.Excluded = append(dto.Excluded, Exclusion{
			DocumentID: e.Document.ID,
			Subject:    e.Document.Subject,
			Reason:     string(e.Reason),
			Detail:     e.Detail,
		})
	}
	for _, rec := range s.Records {
		dto.Records = append(dto.Records, Record{
			DocumentID: rec.DocumentID,
			State:      string(rec.State),
			Reason:     rec.Reason,
			Outcome:    string(rec.Outcome),
		})
	}
	return dto
}

// FromStatusSummary converts the orchestrator status. next is the next
// scheduled run, zero when unscheduled.
func FromStatusSummary(s workflow.StatusSummary, next time.Time) WorkflowStatus {
	dto := WorkflowStatus{
		Running:     s.Running,
		State:       string(s.State),
		CurrentRun:  s.CurrentRun,
		StageHealth: make([]StageHealth, 0, len(s.Health)),
		NextRun:     formatTime(next),
	}
	if s.LastRun != nil {
		run := FromRunSummary(*s.LastRun)
		dto.LastRun = &run
	}
	for _, h := range s.Health {
		dto.StageHealth = append(dto.StageHealth, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return dto
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
