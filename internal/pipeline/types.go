package pipeline

import (
	"time"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/planner"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

// PipelineConfig holds configuration for a batch solve.
type PipelineConfig struct {
	WorkerCount   int            // Number of concurrent solves
	Days          []string       // Horizon for files that name none
	Options       solver.Options // Passed to every solve
	RetryAttempts int            // Extra attempts for UNDEFINED and BUSY results
	RetryBackoff  time.Duration  // Pause between attempts
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		WorkerCount:   4,
		Days:          append([]string(nil), domain.DefaultDays...),
		Options:       solver.DefaultOptions(),
		RetryAttempts: 1,
		RetryBackoff:  250 * time.Millisecond,
	}
}

// FileJobStatus represents the state of a single file job
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// FileJob tracks the solve of a single scenario file. A job is completed when the planner
// produced a result, whatever its outcome; it fails only when the file could not be loaded.
type FileJob struct {
	FilePath     string           `json:"file"`
	ScenarioName string           `json:"scenario,omitempty"`
	Status       FileJobStatus    `json:"status"`
	Result       *planner.Result  `json:"result,omitempty"`
	Snapshot     *domain.Snapshot `json:"-"`
	ErrorMessage string           `json:"error,omitempty"`
	Attempts     int              `json:"attempts"`
	Elapsed      time.Duration    `json:"elapsed_ns"`
}

// Report is the outcome of a batch, jobs in input order.
type Report struct {
	Jobs      []*FileJob `json:"jobs"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Planned   int        `json:"planned"`
}
