package reporting

import (
	"time"

	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
)

// RunReport represents a complete scenario run report.
type RunReport struct {
	// Run metadata
	RunID        string    `json:"run_id"`
	ScenarioFile string    `json:"scenario_file"`
	Backend      string    `json:"backend"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     string    `json:"duration"`

	// Run result
	Status  RunStatus `json:"status"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`

	// Topology sizing actually deployed
	Validators int `json:"validators"`
	Executors  int `json:"executors"`

	// Workloads and expectations that participated in the run
	Workloads    []string `json:"workloads,omitempty"`
	Expectations []string `json:"expectations,omitempty"`

	// Cleanup audit
	CleanupSummary cleanup.Summary    `json:"cleanup_summary"`
	CleanupLog     []cleanup.AuditEntry `json:"cleanup_log,omitempty"`

	// Errors encountered, one entry per failed expectation/workload
	Errors []string `json:"errors,omitempty"`
}

// RunStatus represents the status of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusStopped   RunStatus = "stopped"
)

// LiveRunState represents the current state of a running scenario.
type LiveRunState struct {
	RunID        string        `json:"run_id"`
	ScenarioFile string        `json:"scenario_file"`
	State        string        `json:"state"`
	StartTime    time.Time     `json:"start_time"`
	Elapsed      time.Duration `json:"elapsed"`
}
