package ingest

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/category"
	"github.com/David-Botos/clinical-ingress/pkg/cleaner"
	"github.com/David-Botos/clinical-ingress/pkg/config"
	"github.com/David-Botos/clinical-ingress/pkg/source"
)

// Manager cleans many datasets concurrently through a worker pool
type Manager struct {
	dataCleaner    *cleaner.DataCleaner
	verifier       *Verifier
	errorHandler   *ErrorHandler
	metrics        *Metrics
	logger         *zap.Logger
	workerCount    int
	maxRetries     int
	retryDelay     time.Duration
	datasetTimeout time.Duration
	csvDelimiter   rune
}

// NewManager creates a manager using the ingest settings of cfg
func NewManager(cfg *config.Config, dataCleaner *cleaner.DataCleaner, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if dataCleaner == nil {
		return nil, errors.New("data cleaner cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	workerCount := cfg.WorkerPoolSize
	if workerCount <= 0 {
		workerCount = calculateOptimalWorkerCount()
	}

	return &Manager{
		dataCleaner:    dataCleaner,
		verifier:       NewVerifier(logger.Named("verifier")),
		errorHandler:   NewErrorHandler(logger.Named("errors"), cfg.RetryAttempts),
		metrics:        NewMetrics(logger.Named("metrics")),
		logger:         logger,
		workerCount:    workerCount,
		maxRetries:     cfg.RetryAttempts,
		retryDelay:     cfg.RetryDelay,
		datasetTimeout: cfg.DatasetTimeout,
		csvDelimiter:   cfg.CSVDelimiter,
	}, nil
}

// NewManagerFromConfig creates a manager whose cleaner uses the category maps
// named by cfg.CategoryMapsPath, or the embedded maps when it is empty
func NewManagerFromConfig(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	maps, err := category.Load(cfg.CategoryMapsPath)
	if err != nil {
		return nil, WrapError(err, "failed to load category maps")
	}
	dataCleaner, err := cleaner.NewDataCleaner(maps, logger.Named("cleaner"))
	if err != nil {
		return nil, WrapError(err, "failed to create data cleaner")
	}
	return NewManager(cfg, dataCleaner, logger)
}

// CSVSources opens one delimited-text source per path using the configured
// delimiter
func (m *Manager) CSVSources(paths ...string) []source.RecordSource {
	sources := make([]source.RecordSource, len(paths))
	for i, path := range paths {
		sources[i] = source.NewCSVSource(path, m.csvDelimiter, nil, m.logger.Named("csv"))
	}
	return sources
}

// WithWorkerCount sets the number of worker goroutines
func (m *Manager) WithWorkerCount(count int) *Manager {
	if count > 0 {
		m.workerCount = count
	}
	return m
}

// WorkerCount returns the size of the worker pool
func (m *Manager) WorkerCount() int {
	return m.workerCount
}

func (m *Manager) newWorker(id int) *Worker {
	return NewWorker(id, m.dataCleaner, m.verifier, m.errorHandler, m.logger).
		WithDatasetTimeout(m.datasetTimeout).
		WithRetryDelay(m.retryDelay)
}

// Run cleans every source and returns one result per source in the order
// given. A failing dataset does not stop the others; cancelling ctx stops
// handing out datasets and returns ctx's error with the results so far.
func (m *Manager) Run(ctx context.Context, sources []source.RecordSource) ([]Result, *Summary, error) {
	return m.RunPrioritized(ctx, sources, nil)
}

// RunPrioritized is Run with priorities keyed by source name. Higher
// priorities are handed to workers first; unlisted sources keep the default.
func (m *Manager) RunPrioritized(
	ctx context.Context,
	sources []source.RecordSource,
	priorities map[string]int,
) ([]Result, *Summary, error) {
	m.logger.Info("Starting ingest",
		zap.Int("datasets", len(sources)),
		zap.Int("workers", m.workerCount))

	jobs := make([]DatasetJob, len(sources))
	position := make(map[string]int, len(sources))
	for i, src := range sources {
		jobs[i] = NewDatasetJob(src).WithMaxRetries(m.maxRetries)
		if p, ok := priorities[src.Name()]; ok {
			jobs[i] = jobs[i].WithPriority(p)
		}
		position[jobs[i].ID] = i
	}

	jobQueue := make(chan DatasetJob)
	resultQueue := make(chan Result, m.workerCount)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	workers := m.workerCount
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker *Worker) {
			defer wg.Done()
			worker.Start(workerCtx, jobQueue, resultQueue)
		}(m.newWorker(i))
	}

	// Submit jobs, highest priority first
	go func() {
		defer close(jobQueue)
		sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].Priority > jobs[j].Priority })
		for _, job := range jobs {
			select {
			case jobQueue <- job:
				m.logger.Debug("Submitted job",
					zap.String("dataset", job.Name()),
					zap.String("jobID", job.ID))
			case <-workerCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultQueue)
	}()

	results := make([]Result, len(sources))
	done := make([]bool, len(sources))
	aborted := false
	for result := range resultQueue {
		m.metrics.RecordResult(result)
		i := position[result.JobID]
		results[i] = result
		done[i] = true

		if result.aborted {
			aborted = true
			cancelWorkers()
		}
	}

	m.metrics.Complete()
	summary := m.metrics.GenerateSummary()

	if err := ctx.Err(); err != nil {
		m.logger.Warn("Ingest cancelled by context",
			zap.Int("completed", summary.TotalDatasets),
			zap.Int("datasets", len(sources)))
		return completed(results, done), summary, err
	}
	if aborted {
		m.logger.Warn("Ingest aborted",
			zap.Int("completed", summary.TotalDatasets),
			zap.Int("datasets", len(sources)))
		return completed(results, done), summary, ErrAborted
	}

	m.logger.Info("Ingest completed",
		zap.Int("successfulDatasets", summary.SuccessfulDatasets),
		zap.Int("failedDatasets", summary.FailedDatasets),
		zap.Int("totalRows", summary.TotalRows),
		zap.Duration("duration", summary.Duration))

	return results, summary, nil
}

// CleanOne reads and cleans a single dataset without the pool
func (m *Manager) CleanOne(ctx context.Context, src source.RecordSource) Result {
	job := NewDatasetJob(src).WithMaxRetries(m.maxRetries)
	result := m.newWorker(-1).ProcessJob(ctx, job) // -1 marks the dedicated worker
	m.metrics.RecordResult(result)
	return result
}

// GetMetrics returns the ingest metrics
func (m *Manager) GetMetrics() *Metrics {
	return m.metrics
}

// GetErrorSummary returns a summary of errors
func (m *Manager) GetErrorSummary() map[ErrorCategory]int {
	return m.errorHandler.GetErrorSummary()
}

// GenerateReport generates a plain-text ingest report
func (m *Manager) GenerateReport() string {
	return m.metrics.GenerateReport()
}

func completed(results []Result, done []bool) []Result {
	out := make([]Result, 0, len(results))
	for i, r := range results {
		if done[i] {
			out = append(out, r)
		}
	}
	return out
}

// calculateOptimalWorkerCount sizes the pool from the CPU count. Cleaning
// is CPU bound and each worker holds one dataset in memory.
func calculateOptimalWorkerCount() int {
	workerCount := runtime.NumCPU()

	// Ensure at least 2 workers and not more than 12
	if workerCount < 2 {
		workerCount = 2
	} else if workerCount > 12 {
		workerCount = 12
	}

	return workerCount
}
