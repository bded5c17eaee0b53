package ingest

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics tracks metrics for an ingest
type Metrics struct {
	mu                 sync.Mutex
	logger             *zap.Logger
	StartTime          time.Time
	EndTime            time.Time
	Datasets           []string
	SuccessfulDatasets int
	FailedDatasets     int
	TotalRowsRead      int
	TotalCleaningOps   int
	TotalWarnings      int
	DiscardsByReason   map[string]int
	PeakMemoryUsage    int64
	ErrorCounts        map[ErrorCategory]int
	WorkerUtilization  map[int]time.Duration
}

// NewMetrics creates a new Metrics instance
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{
		StartTime:         time.Now(),
		DiscardsByReason:  make(map[string]int),
		ErrorCounts:       make(map[ErrorCategory]int),
		WorkerUtilization: make(map[int]time.Duration),
		logger:            logger,
	}
}

// RecordResult records metrics for a finished dataset
func (m *Metrics) RecordResult(result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Datasets = append(m.Datasets, result.Dataset)
	m.TotalRowsRead += result.RowsRead
	m.TotalCleaningOps += result.CleaningOperations
	m.TotalWarnings += len(result.Warnings)
	for reason, n := range result.DiscardsByReason {
		m.DiscardsByReason[reason] += n
	}

	if result.Success {
		m.SuccessfulDatasets++
	} else {
		m.FailedDatasets++
	}
	if result.HasErrors() {
		for _, err := range result.Errors {
			m.ErrorCounts[err.Category]++
		}
	}

	m.WorkerUtilization[result.WorkerID] += result.Duration
	m.sampleMemory()

	m.logger.Info("Dataset completed",
		zap.String("dataset", result.Dataset),
		zap.Bool("success", result.Success),
		zap.Int("rowsRead", result.RowsRead),
		zap.Int("cleaningOps", result.CleaningOperations),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", result.Duration),
		zap.Int("worker", result.WorkerID))
}

// sampleMemory keeps the peak heap allocation
func (m *Metrics) sampleMemory() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	if alloc := int64(memStats.Alloc); alloc > m.PeakMemoryUsage {
		m.PeakMemoryUsage = alloc
	}
}

// Complete marks the ingest as complete
func (m *Metrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EndTime = time.Now()

	m.logger.Info("Ingest completed",
		zap.Duration("totalDuration", m.duration()),
		zap.Int("successfulDatasets", m.SuccessfulDatasets),
		zap.Int("failedDatasets", m.FailedDatasets),
		zap.Int("totalRowsRead", m.TotalRowsRead),
		zap.Float64("throughput", m.throughput()))
}

// Duration returns the total duration of the ingest
func (m *Metrics) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration()
}

func (m *Metrics) duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// throughput calculates rows/second
func (m *Metrics) throughput() float64 {
	seconds := m.duration().Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(m.TotalRowsRead) / seconds
}

// GetWorkerEfficiency returns the share of the ingest each worker was busy
func (m *Metrics) GetWorkerEfficiency() map[int]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workerEfficiency()
}

func (m *Metrics) workerEfficiency() map[int]float64 {
	efficiency := make(map[int]float64)
	total := m.duration()
	if total <= 0 {
		return efficiency
	}
	for workerID, busy := range m.WorkerUtilization {
		efficiency[workerID] = float64(busy) / float64(total)
	}
	return efficiency
}

// GenerateSummary creates a Summary from the metrics
func (m *Metrics) GenerateSummary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	endTime := m.EndTime
	if endTime.IsZero() {
		endTime = time.Now()
	}

	discards := make(map[string]int, len(m.DiscardsByReason))
	for reason, n := range m.DiscardsByReason {
		discards[reason] = n
	}
	errorCounts := make(map[ErrorCategory]int, len(m.ErrorCounts))
	for category, n := range m.ErrorCounts {
		errorCounts[category] = n
	}

	return &Summary{
		Datasets:           append([]string(nil), m.Datasets...),
		TotalDatasets:      m.SuccessfulDatasets + m.FailedDatasets,
		SuccessfulDatasets: m.SuccessfulDatasets,
		FailedDatasets:     m.FailedDatasets,
		TotalRows:          m.TotalRowsRead,
		TotalCleaningOps:   m.TotalCleaningOps,
		TotalWarnings:      m.TotalWarnings,
		DiscardsByReason:   discards,
		ErrorCategories:    errorCounts,
		Duration:           m.duration(),
		StartTime:          m.StartTime,
		EndTime:            endTime,
		Throughput:         m.throughput(),
	}
}

// formatBytes converts bytes to a human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// getPercentage safely calculates a percentage, avoiding division by zero
func getPercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// GenerateReport creates a plain-text metrics report
func (m *Metrics) GenerateReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.SuccessfulDatasets + m.FailedDatasets
	var sb strings.Builder
	fmt.Fprintf(&sb, `
Ingest Metrics Report
=====================
Duration:                %s

Datasets
--------
Total Datasets:          %d
Successful Datasets:     %d (%.1f%%)
Failed Datasets:         %d (%.1f%%)

Data Summary
------------
Total Rows Read:         %d
Total Cleaning Ops:      %d
Source Warnings:         %d
Average Throughput:      %.2f rows/sec
Peak Memory Usage:       %s
`,
		formatDuration(m.duration()),
		total,
		m.SuccessfulDatasets, getPercentage(float64(m.SuccessfulDatasets), float64(total)),
		m.FailedDatasets, getPercentage(float64(m.FailedDatasets), float64(total)),
		m.TotalRowsRead,
		m.TotalCleaningOps,
		m.TotalWarnings,
		m.throughput(),
		formatBytes(m.PeakMemoryUsage),
	)

	if len(m.DiscardsByReason) > 0 {
		sb.WriteString("\nDiscarded Values\n----------------\n")
		reasons := make([]string, 0, len(m.DiscardsByReason))
		for reason := range m.DiscardsByReason {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&sb, "- %s: %d\n", reason, m.DiscardsByReason[reason])
		}
	}

	if len(m.ErrorCounts) > 0 {
		sb.WriteString("\nError Distribution\n------------------\n")
		totalErrors := 0
		for _, count := range m.ErrorCounts {
			totalErrors += count
		}
		for category := ErrorCategorySource; category <= ErrorCategoryCancelled; category++ {
			if count, ok := m.ErrorCounts[category]; ok {
				fmt.Fprintf(&sb, "- %s: %d (%.1f%%)\n",
					category, count, getPercentage(float64(count), float64(totalErrors)))
			}
		}
	}

	sb.WriteString("\nWorker Efficiency\n-----------------\n")
	efficiency := m.workerEfficiency()
	workers := make([]int, 0, len(efficiency))
	for workerID := range efficiency {
		workers = append(workers, workerID)
	}
	sort.Ints(workers)
	for _, workerID := range workers {
		fmt.Fprintf(&sb, "- Worker %d: %.1f%% active time\n", workerID, efficiency[workerID]*100)
	}

	return sb.String()
}

// ToJSON serializes metrics to JSON
func (m *Metrics) ToJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return json.Marshal(struct {
		Duration           string                `json:"duration"`
		SuccessfulDatasets int                   `json:"successfulDatasets"`
		FailedDatasets     int                   `json:"failedDatasets"`
		TotalRowsRead      int                   `json:"totalRowsRead"`
		TotalCleaningOps   int                   `json:"totalCleaningOps"`
		Throughput         float64               `json:"throughput"`
		DiscardsByReason   map[string]int        `json:"discardsByReason"`
		ErrorCounts        map[ErrorCategory]int `json:"errorCounts"`
	}{
		Duration:           formatDuration(m.duration()),
		SuccessfulDatasets: m.SuccessfulDatasets,
		FailedDatasets:     m.FailedDatasets,
		TotalRowsRead:      m.TotalRowsRead,
		TotalCleaningOps:   m.TotalCleaningOps,
		Throughput:         m.throughput(),
		DiscardsByReason:   m.DiscardsByReason,
		ErrorCounts:        m.ErrorCounts,
	})
}
