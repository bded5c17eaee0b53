package ingest

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// StructureDiscrepancy represents a column problem in the cleaned frame
type StructureDiscrepancy struct {
	ColumnName   string
	ExpectedType model.Kind
	ActualType   model.Kind
	IsMissing    bool // Raw column absent from the output
	BadCells     int  // Cells whose kind differs from the declared type
}

// String describes the discrepancy
func (d StructureDiscrepancy) String() string {
	switch {
	case d.IsMissing:
		return fmt.Sprintf("raw column %q missing from output", d.ColumnName)
	case d.ActualType == model.KindMissing:
		return fmt.Sprintf("cleaned column %q has no declared type", d.ColumnName)
	default:
		return fmt.Sprintf("cleaned column %q declared %s has %d cells of another kind",
			d.ColumnName, d.ActualType, d.BadCells)
	}
}

// VerificationReport contains the results of checking one cleaned dataset
type VerificationReport struct {
	Dataset                string
	VerificationTime       time.Time
	RowCountMatches        bool
	InputRowCount          int
	OutputRowCount         int
	StructureMatches       bool
	StructureDiscrepancies []StructureDiscrepancy
	RenamedColumns         []string
	Duration               time.Duration
}

// Passed reports whether every check succeeded
func (r *VerificationReport) Passed() bool {
	return r.RowCountMatches && r.StructureMatches
}

// Err summarises a failed report as an error wrapping ErrVerification
func (r *VerificationReport) Err() error {
	if r.Passed() {
		return nil
	}
	var problems []string
	if !r.RowCountMatches {
		problems = append(problems, fmt.Sprintf("row count changed from %d to %d", r.InputRowCount, r.OutputRowCount))
	}
	for _, d := range r.StructureDiscrepancies {
		problems = append(problems, d.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrVerification, r.Dataset, strings.Join(problems, "; "))
}

// Verifier checks that a cleaning run kept the record set intact
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

// Verify compares a cleaned frame with its input. Cleaning must keep every
// row and every raw column (unless a rename was recorded for it), and every
// column it adds must be typed with cells of that type only.
func (v *Verifier) Verify(dataset string, input, output *model.Frame, ops []model.CleaningOperation) *VerificationReport {
	start := time.Now()
	report := &VerificationReport{
		Dataset:          dataset,
		VerificationTime: start,
		InputRowCount:    input.Len(),
		OutputRowCount:   output.Len(),
		StructureMatches: true,
	}
	report.RowCountMatches = report.InputRowCount == report.OutputRowCount

	renamed := make(map[string]bool)
	for _, op := range ops {
		if op.CleaningOperation == model.OpColumnRenamed {
			renamed[op.ColumnName] = true
			report.RenamedColumns = append(report.RenamedColumns, op.ColumnName)
		}
	}

	for _, name := range input.Names() {
		if !output.Has(name) && !renamed[name] {
			report.StructureDiscrepancies = append(report.StructureDiscrepancies,
				StructureDiscrepancy{ColumnName: name, IsMissing: true})
		}
	}

	for _, name := range output.Names() {
		if input.Has(name) {
			continue
		}
		col, _ := output.Column(name)
		if d, ok := checkTyped(col); !ok {
			report.StructureDiscrepancies = append(report.StructureDiscrepancies, d)
		}
	}

	report.StructureMatches = len(report.StructureDiscrepancies) == 0
	report.Duration = time.Since(start)

	if report.Passed() {
		v.logger.Debug("Verified cleaned dataset",
			zap.String("dataset", dataset),
			zap.Int("rows", report.OutputRowCount),
			zap.Int("columns", output.Width()))
	} else {
		v.logger.Warn("Cleaned dataset failed verification",
			zap.String("dataset", dataset),
			zap.Bool("rowCountMatches", report.RowCountMatches),
			zap.Int("discrepancies", len(report.StructureDiscrepancies)))
	}

	return report
}

// checkTyped verifies a derived column carries a declared type and only
// cells of that type
func checkTyped(col *model.Column) (StructureDiscrepancy, bool) {
	d := StructureDiscrepancy{ColumnName: col.Name, ActualType: col.Type}
	if col.Type == model.KindMissing {
		return d, false
	}
	d.ExpectedType = col.Type
	for _, cell := range col.Cells {
		if !cell.IsMissing() && cell.Kind() != col.Type {
			d.BadCells++
		}
	}
	return d, d.BadCells == 0
}
