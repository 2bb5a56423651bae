package domain

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusFinished  RunStatus = "finished"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one recorded extraction of a report.
type Run struct {
	ID         string
	Report     string
	Status     RunStatus
	Params     map[string]interface{}
	Bands      int
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      *string
}
