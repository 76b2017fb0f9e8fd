package database

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobType represents the type of job
type JobType string

const (
	JobTypePrepare   JobType = "prepare"
	JobTypeOCR       JobType = "ocr"
	JobTypeIngestion JobType = "ingestion"
)

// Job represents a preparation request or background run
type Job struct {
	ID          ulid.ULID  `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`         // 0-100
	CurrentStep string     `json:"currentStep"`      // Human-readable current step
	TotalSteps  int        `json:"totalSteps"`       // Total number of steps
	Message     string     `json:"message"`          // Status message
	Error       string     `json:"error,omitempty"`  // Error message if failed
	Result      string     `json:"result,omitempty"` // JSON result data
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IsFinished reports whether the job reached a terminal status
func (j *Job) IsFinished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobSummary is stored as the result of batch jobs
type JobSummary struct {
	FilesProcessed int    `json:"filesProcessed"`
	FilesTotal     int    `json:"filesTotal"`
	PagesPrepared  int    `json:"pagesPrepared"`
	Errors         int    `json:"errors"`
	Details        string `json:"details,omitempty"`
}

// PreparedPageRecord is one normalized page produced by a job
type PreparedPageRecord struct {
	ID            int64     `json:"id"`
	JobID         ulid.ULID `json:"jobId"`
	Source        string    `json:"source"`
	PageIndex     int       `json:"pageIndex"`
	SourceWidth   int       `json:"sourceWidth"`
	SourceHeight  int       `json:"sourceHeight"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	DPI           float64   `json:"dpi"`
	Fallback      bool      `json:"fallback"`
	Format        string    `json:"format"`
	EncodedLength int       `json:"encodedLength"`
	OutputPath    string    `json:"outputPath,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
