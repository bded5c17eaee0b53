package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/cleaner"
	"github.com/David-Botos/clinical-ingress/pkg/model"
	"github.com/David-Botos/clinical-ingress/pkg/source"
)

// Worker reads and cleans one dataset at a time
type Worker struct {
	ID             int
	dataCleaner    *cleaner.DataCleaner
	verifier       *Verifier
	errorHandler   *ErrorHandler
	logger         *zap.Logger
	datasetTimeout time.Duration
	retryDelay     time.Duration
}

// NewWorker creates a new worker
func NewWorker(
	id int,
	dataCleaner *cleaner.DataCleaner,
	verifier *Verifier,
	errorHandler *ErrorHandler,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		ID:           id,
		dataCleaner:  dataCleaner,
		verifier:     verifier,
		errorHandler: errorHandler,
		logger:       logger.With(zap.Int("workerID", id)),
		retryDelay:   time.Second,
	}
}

// WithDatasetTimeout bounds reading and cleaning one dataset
func (w *Worker) WithDatasetTimeout(timeout time.Duration) *Worker {
	w.datasetTimeout = timeout
	return w
}

// WithRetryDelay sets the pause before a source is read again
func (w *Worker) WithRetryDelay(delay time.Duration) *Worker {
	w.retryDelay = delay
	return w
}

// Start processes jobs until the channel closes or ctx is cancelled
func (w *Worker) Start(ctx context.Context, jobs <-chan DatasetJob, results chan<- Result) {
	w.logger.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping due to context cancellation")
			return

		case job, ok := <-jobs:
			if !ok {
				w.logger.Debug("Worker stopping due to closed job channel")
				return
			}

			result := w.ProcessJob(ctx, job)

			select {
			case results <- result:
			case <-ctx.Done():
				w.logger.Warn("Context cancelled while sending result",
					zap.String("dataset", job.Name()))
				return
			}
			if result.aborted {
				w.logger.Info("Worker stopping after abort",
					zap.String("dataset", job.Name()))
				return
			}
		}
	}
}

// ProcessJob reads, cleans and verifies one dataset, retrying the read
// while the error handler allows it
func (w *Worker) ProcessJob(ctx context.Context, job DatasetJob) Result {
	for {
		result := NewResult(job, w.ID)

		w.logger.Info("Starting dataset",
			zap.String("dataset", job.Name()),
			zap.Int("retryCount", job.RetryCount))

		err := w.processDataset(ctx, job, result)
		if err == nil {
			result.Complete(true)
			return *result
		}

		category := w.errorHandler.CategorizeError(err)
		if ctx.Err() != nil {
			category = ErrorCategoryCancelled
		}
		record := NewErrorRecord(err, category).
			WithDataset(job.Name()).
			WithRetry(job.RetryCount)
		if !job.IsRetryable() {
			record.Recoverable = false
		}
		result.AddError(record)
		result.Complete(false)

		switch w.errorHandler.HandleError(record) {
		case ActionRetry:
		case ActionAbort:
			result.aborted = true
			return *result
		default:
			return *result
		}

		select {
		case <-time.After(w.retryDelay):
		case <-ctx.Done():
			return *result
		}
		job = job.Retry()
	}
}

// processDataset runs one attempt; errors are wrapped with the stage sentinel
func (w *Worker) processDataset(ctx context.Context, job DatasetJob, result *Result) error {
	if w.datasetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.datasetTimeout)
		defer cancel()
	}

	// Step 1: read the raw record set
	raw, err := job.Source.Read(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSource, job.Name(), err)
	}
	result.RowsRead = raw.Len()
	result.ColumnsIn = raw.Width()
	if wr, ok := job.Source.(source.Warner); ok {
		for _, warning := range wr.Warnings() {
			result.AddWarning(warning)
		}
	}
	if d, ok := job.Source.(source.Describer); ok && d.Metadata() != nil {
		w.logger.Debug("Source metadata",
			zap.String("dataset", job.Name()),
			zap.Strings("columns", d.Metadata().ColumnNames()))
	}

	// Step 2: clean
	cleaned, ops, err := w.dataCleaner.Clean(ctx, raw)
	result.recordOperations(ops)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCleaning, job.Name(), err)
	}
	result.ColumnsOut = cleaned.Width()

	// Step 3: verify
	if w.verifier != nil {
		report := w.verifier.Verify(job.Name(), raw, cleaned, ops)
		result.Verification = report
		if err := report.Err(); err != nil {
			return err
		}
	}

	result.Frame = cleaned
	w.logDiscards(job, ops)
	return nil
}

// logDiscards logs one line per column with discarded values
func (w *Worker) logDiscards(job DatasetJob, ops []model.CleaningOperation) {
	perColumn := make(map[string]int)
	for _, op := range ops {
		if op.CleaningOperation == model.OpValueDiscarded {
			perColumn[op.ColumnName]++
		}
	}
	for column, n := range perColumn {
		w.logger.Debug("Values discarded",
			zap.String("dataset", job.Name()),
			zap.String("column", column),
			zap.Int("count", n))
	}
}
