package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Progress    int        `bun:"progress,default:0"`
	CurrentStep string     `bun:"current_step,default:''"`
	TotalSteps  int        `bun:"total_steps,default:0"`
	Message     string     `bun:"message,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

// BunPreparedPage represents the prepared_pages table for Bun ORM
type BunPreparedPage struct {
	bun.BaseModel `bun:"table:prepared_pages,alias:pp"`

	ID            int64     `bun:"id,pk,autoincrement"`
	JobID         string    `bun:"job_id,notnull"`
	Source        string    `bun:"source,notnull"`
	PageIndex     int       `bun:"page_index,notnull"`
	SourceWidth   int       `bun:"source_width,notnull"`
	SourceHeight  int       `bun:"source_height,notnull"`
	Width         int       `bun:"width,notnull"`
	Height        int       `bun:"height,notnull"`
	DPI           float64   `bun:"dpi,notnull"`
	Fallback      bool      `bun:"fallback,notnull"`
	Format        string    `bun:"format,notnull"`
	EncodedLength int       `bun:"encoded_length,notnull"`
	OutputPath    string    `bun:"output_path,nullzero"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToPreparedPage converts BunPreparedPage to PreparedPageRecord
func (bp *BunPreparedPage) ToPreparedPage() (*PreparedPageRecord, error) {
	parsedULID, err := ulid.Parse(bp.JobID)
	if err != nil {
		return nil, err
	}

	return &PreparedPageRecord{
		ID:            bp.ID,
		JobID:         parsedULID,
		Source:        bp.Source,
		PageIndex:     bp.PageIndex,
		SourceWidth:   bp.SourceWidth,
		SourceHeight:  bp.SourceHeight,
		Width:         bp.Width,
		Height:        bp.Height,
		DPI:           bp.DPI,
		Fallback:      bp.Fallback,
		Format:        bp.Format,
		EncodedLength: bp.EncodedLength,
		OutputPath:    bp.OutputPath,
		CreatedAt:     bp.CreatedAt,
	}, nil
}

// FromPreparedPage converts PreparedPageRecord to BunPreparedPage
func FromPreparedPage(page *PreparedPageRecord) *BunPreparedPage {
	return &BunPreparedPage{
		ID:            page.ID,
		JobID:         page.JobID.String(),
		Source:        page.Source,
		PageIndex:     page.PageIndex,
		SourceWidth:   page.SourceWidth,
		SourceHeight:  page.SourceHeight,
		Width:         page.Width,
		Height:        page.Height,
		DPI:           page.DPI,
		Fallback:      page.Fallback,
		Format:        page.Format,
		EncodedLength: page.EncodedLength,
		OutputPath:    page.OutputPath,
		CreatedAt:     page.CreatedAt,
	}
}

// bunSchemaMigration records an applied migration version
type bunSchemaMigration struct {
	bun.BaseModel `bun:"table:bun_schema_migrations"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Version   string    `bun:"version,notnull,unique"`
	Name      string    `bun:"name,notnull"`
	AppliedAt time.Time `bun:"applied_at,notnull,default:current_timestamp"`
}
