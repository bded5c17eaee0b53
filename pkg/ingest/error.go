package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stage sentinels wrapped into dataset failures so they can be categorised
var (
	ErrSource       = errors.New("source error")
	ErrCleaning     = errors.New("cleaning error")
	ErrVerification = errors.New("verification error")

	// ErrAborted is returned by Run when a dataset failure stopped the ingest
	ErrAborted = errors.New("ingest aborted")
)

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates processing should continue despite the error
	ActionContinue Action = iota
	// ActionRetry indicates the dataset should be read again
	ActionRetry
	// ActionSkipDataset indicates the dataset should be given up on
	ActionSkipDataset
	// ActionAbort indicates the whole ingest should stop
	ActionAbort
)

// ErrorCategory defines categories of dataset failures
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategorySource
	ErrorCategoryCleaning
	ErrorCategoryVerification
	ErrorCategoryTimeout
	ErrorCategoryCancelled
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategorySource:
		return "Source"
	case ErrorCategoryCleaning:
		return "Cleaning"
	case ErrorCategoryVerification:
		return "Verification"
	case ErrorCategoryTimeout:
		return "Timeout"
	case ErrorCategoryCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// MarshalText lets categories key JSON objects by name
func (ec ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// ErrorRecord represents a single dataset failure
type ErrorRecord struct {
	Category    ErrorCategory
	Dataset     string
	Error       error
	Message     string // Derived from Error but stored for serialization
	Timestamp   time.Time
	RetryCount  int
	Recoverable bool
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:    category,
		Error:       err,
		Timestamp:   time.Now(),
		Recoverable: category == ErrorCategorySource,
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithDataset adds the dataset name to the error record
func (r ErrorRecord) WithDataset(dataset string) ErrorRecord {
	r.Dataset = dataset
	return r
}

// WithRetry sets retry information
func (r ErrorRecord) WithRetry(retryCount int) ErrorRecord {
	r.RetryCount = retryCount
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Dataset != "" {
		sb.WriteString(fmt.Sprintf("Dataset: %s ", r.Dataset))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	if r.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf(" (Retry: %d)", r.RetryCount))
	}

	return sb.String()
}

// ErrorHandler counts dataset failures and decides what happens next
type ErrorHandler struct {
	logger        *zap.Logger
	errorCounts   map[ErrorCategory]int
	sampleErrors  map[ErrorCategory][]ErrorRecord
	datasetErrors map[string]int
	mu            sync.Mutex
	maxSamples    int
	maxRetries    int
}

// NewErrorHandler creates a new error handler allowing maxRetries reads
// of a failing source
func NewErrorHandler(logger *zap.Logger, maxRetries int) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		logger:        logger,
		errorCounts:   make(map[ErrorCategory]int),
		sampleErrors:  make(map[ErrorCategory][]ErrorRecord),
		datasetErrors: make(map[string]int),
		maxSamples:    5, // Store up to 5 sample errors per category
		maxRetries:    maxRetries,
	}
}

// CategorizeError determines the category of an error
func (eh *ErrorHandler) CategorizeError(err error) ErrorCategory {
	var category ErrorCategory

	switch {
	case err == nil:
		category = ErrorCategoryNone
	case errors.Is(err, context.Canceled):
		category = ErrorCategoryCancelled
	case errors.Is(err, context.DeadlineExceeded):
		// The dataset timeout fired; a read that slow is not retried
		category = ErrorCategoryTimeout
	case errors.Is(err, ErrVerification):
		category = ErrorCategoryVerification
	case errors.Is(err, ErrCleaning):
		category = ErrorCategoryCleaning
	default:
		// Anything not raised by the cleaner happened while reading
		category = ErrorCategorySource
	}

	eh.logger.Debug("Categorized error",
		zap.Error(err),
		zap.String("category", category.String()))

	return category
}

// HandleError records an error and determines the action
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.RecordError(record)

	switch record.Category {
	case ErrorCategoryNone:
		return ActionContinue
	case ErrorCategorySource:
		if eh.ShouldRetry(record) {
			eh.logger.Warn("Retrying after source error",
				zap.String("dataset", record.Dataset),
				zap.Int("retry", record.RetryCount+1),
				zap.String("error", record.Message))
			return ActionRetry
		}
		return ActionSkipDataset
	case ErrorCategoryCleaning, ErrorCategoryVerification, ErrorCategoryTimeout:
		return ActionSkipDataset
	case ErrorCategoryCancelled:
		return ActionAbort
	default:
		return ActionContinue
	}
}

// ShouldRetry determines if a dataset read should be retried; only source
// failures are
func (eh *ErrorHandler) ShouldRetry(record ErrorRecord) bool {
	return record.Category == ErrorCategorySource &&
		record.Recoverable &&
		record.RetryCount < eh.maxRetries
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts[record.Category]++

	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	if record.Dataset != "" {
		eh.datasetErrors[record.Dataset]++
	}

	logLevel := zap.WarnLevel
	if record.Category == ErrorCategoryCancelled {
		logLevel = zap.InfoLevel
	}
	eh.logger.Log(logLevel, "Dataset error",
		zap.String("category", record.Category.String()),
		zap.String("dataset", record.Dataset),
		zap.String("error", record.Message),
		zap.Bool("recoverable", record.Recoverable),
		zap.Int("retryCount", record.RetryCount))
}

// GetErrorSummary returns error counts by category
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int)
	for category, count := range eh.errorCounts {
		summary[category] = count
	}

	return summary
}

// GetErrorSamples returns sample errors for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord)
	for category, records := range eh.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}

	return samples
}

// GetDatasetErrorCounts returns error counts by dataset
func (eh *ErrorHandler) GetDatasetErrorCounts() map[string]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	counts := make(map[string]int)
	for dataset, count := range eh.datasetErrors {
		counts[dataset] = count
	}

	return counts
}

// WrapError creates a new error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
