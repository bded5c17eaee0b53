package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/clinical-ingress/pkg/model"
	"github.com/David-Botos/clinical-ingress/pkg/source"
)

// DatasetJob represents one record set to read and clean
type DatasetJob struct {
	ID         string              // Unique job identifier
	Source     source.RecordSource // Where the raw records come from
	Priority   int                 // Job priority (higher = more important)
	CreatedAt  time.Time           // Job creation timestamp
	RetryCount int                 // Number of retries attempted
	MaxRetries int                 // Maximum allowed retries
}

// NewDatasetJob creates a new dataset job with defaults
func NewDatasetJob(src source.RecordSource) DatasetJob {
	return DatasetJob{
		ID:         uuid.New().String(),
		Source:     src,
		Priority:   1, // Default priority
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3, // Default max retries
	}
}

// WithPriority sets the job priority and returns the modified job
func (j DatasetJob) WithPriority(priority int) DatasetJob {
	j.Priority = priority
	return j
}

// WithMaxRetries sets the maximum retry count and returns the modified job
func (j DatasetJob) WithMaxRetries(maxRetries int) DatasetJob {
	j.MaxRetries = maxRetries
	return j
}

// IsRetryable checks if the job can be retried
func (j DatasetJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry increments the retry count and returns the modified job
func (j DatasetJob) Retry() DatasetJob {
	j.RetryCount++
	return j
}

// Name returns the dataset name
func (j DatasetJob) Name() string {
	return j.Source.Name()
}

// Result represents the outcome of cleaning one dataset
type Result struct {
	JobID              string
	Dataset            string
	Success            bool
	RowsRead           int
	ColumnsIn          int
	ColumnsOut         int
	CleaningOperations int
	DiscardsByReason   map[string]int
	Frame              *model.Frame              // Cleaned record set, nil on failure
	Operations         []model.CleaningOperation // Audit trail of the cleaning run
	Verification       *VerificationReport
	Errors             []ErrorRecord
	Warnings           []string
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
	RetryCount         int
	WorkerID           int

	aborted bool // The error handler asked for the whole ingest to stop
}

// NewResult initializes a result for a job
func NewResult(job DatasetJob, workerID int) *Result {
	now := time.Now()
	return &Result{
		JobID:            job.ID,
		Dataset:          job.Name(),
		StartTime:        now,
		RetryCount:       job.RetryCount,
		WorkerID:         workerID,
		DiscardsByReason: make(map[string]int),
		Errors:           make([]ErrorRecord, 0),
		Warnings:         make([]string, 0),
	}
}

// Complete marks the job as complete and calculates duration
func (r *Result) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success
}

// AddError adds an error to the result
func (r *Result) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// AddWarning adds a warning to the result
func (r *Result) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// HasErrors checks if any errors occurred
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// recordOperations stores the audit trail and tallies discards by reason
func (r *Result) recordOperations(ops []model.CleaningOperation) {
	r.Operations = ops
	r.CleaningOperations = len(ops)
	for _, op := range ops {
		if op.CleaningOperation == model.OpValueDiscarded {
			r.DiscardsByReason[op.CleaningReason]++
		}
	}
}

// Summary represents the outcome of a whole ingest
type Summary struct {
	Datasets           []string
	TotalDatasets      int
	SuccessfulDatasets int
	FailedDatasets     int
	TotalRows          int
	TotalCleaningOps   int
	TotalWarnings      int
	DiscardsByReason   map[string]int
	ErrorCategories    map[ErrorCategory]int
	Duration           time.Duration
	StartTime          time.Time
	EndTime            time.Time
	Throughput         float64 // rows/second
}

// SuccessRate returns the percentage of datasets cleaned successfully
func (s *Summary) SuccessRate() float64 {
	if s.TotalDatasets == 0 {
		return 0
	}
	return float64(s.SuccessfulDatasets) / float64(s.TotalDatasets) * 100
}
