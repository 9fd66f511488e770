package journal

import (
	"time"

	"github.com/mattjoyce/partwalk/internal/walker"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Run is one recorded pass over a parts manifest.
type Run struct {
	ID         string         `json:"id"`
	Frequency  string         `json:"frequency"`
	ConfigPath string         `json:"config_path,omitempty"`
	Status     Status         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Summary    walker.Summary `json:"summary"`
}

// Entry is one recorded outcome within a run.
type Entry struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Seq         int       `json:"seq"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type"`
	Filename    string    `json:"filename,omitempty"`
	Module      string    `json:"module,omitempty"`
	Outcome     string    `json:"outcome"`
	Digest      string    `json:"digest,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
