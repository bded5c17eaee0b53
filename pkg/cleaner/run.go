// pkg/cleaner/run.go
package cleaner

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/category"
	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// Discard reasons recorded when a non-missing raw value resolves to missing
const (
	ReasonUnparseableNumeric = "unparseable_numeric"
	ReasonOutOfRange         = "out_of_range"
	ReasonUnparseableDate    = "unparseable_date"
	ReasonUnrecognisedFlag   = "unrecognised_flag"
	ReasonOutsideSchema      = "outside_schema"
	ReasonUnmappedResult     = "unmapped_result"
	ReasonUnmappedFiO2       = "unmapped_fio2"
)

// Run holds the state of one cleaning pass over one dataset. Its category
// maps are a private copy, so runs never see each other's map extensions.
type Run struct {
	ID      string
	Maps    *category.Maps
	RefYear int // Pivot for two-digit years

	logger *zap.Logger
	now    func() time.Time
	ops    []model.CleaningOperation
}

// NewRun creates a run with its own copy of maps
func NewRun(maps *category.Maps, logger *zap.Logger) *Run {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	return &Run{
		ID:      id,
		Maps:    maps.Clone(),
		RefYear: time.Now().Year(),
		logger:  logger.With(zap.String("run_id", id)),
		now:     time.Now,
	}
}

// Operations returns the audit trail recorded so far
func (r *Run) Operations() []model.CleaningOperation {
	return r.ops
}

// Logger returns the run-scoped logger
func (r *Run) Logger() *zap.Logger {
	return r.logger
}

// discard records a raw value that could not be cleaned
func (r *Run) discard(f *model.Frame, stage, column string, row int, original model.Value, reason string) {
	r.ops = append(r.ops, model.CleaningOperation{
		RunID:             r.ID,
		Stage:             stage,
		ColumnName:        column,
		OriginalValue:     original.Interface(),
		RowIdentifier:     rowIdentifier(f, row),
		CleaningOperation: model.OpValueDiscarded,
		CleaningReason:    reason,
		CleanedAt:         r.now(),
	})
}

// merge records a cell filled from a legacy column
func (r *Run) merge(f *model.Frame, stage, column string, row int, from string, filled model.Value) {
	r.ops = append(r.ops, model.CleaningOperation{
		RunID:             r.ID,
		Stage:             stage,
		ColumnName:        column,
		OriginalValue:     filled.Interface(),
		NewValue:          filled.Text(),
		RowIdentifier:     rowIdentifier(f, row),
		CleaningOperation: model.OpLegacyMerge,
		CleaningReason:    "filled_from:" + from,
		CleanedAt:         r.now(),
	})
}

// columnOp records an operation on a whole column
func (r *Run) columnOp(stage, column, operation, reason, newValue string) {
	r.ops = append(r.ops, model.CleaningOperation{
		RunID:             r.ID,
		Stage:             stage,
		ColumnName:        column,
		NewValue:          newValue,
		CleaningOperation: operation,
		CleaningReason:    reason,
		CleanedAt:         r.now(),
	})
}

// rowIdentifier is the subject pseudonym when known, else the row position
func rowIdentifier(f *model.Frame, row int) string {
	if v := f.Value(ColPseudonym, row); !v.IsMissing() {
		return v.Text()
	}
	return fmt.Sprintf("row-%d", row)
}
