// pkg/model/cleaning.go
package model

import (
	"fmt"
	"time"
)

// Cleaning operations recorded in the audit trail
const (
	OpValueDiscarded = "value_discarded"
	OpLegacyMerge    = "legacy_merge"
	OpColumnRenamed  = "column_renamed"
	OpMapExtended    = "category_map_extended"
)

// CleaningOperation represents a single data cleaning operation
type CleaningOperation struct {
	RunID             string      // Cleaning run that performed the operation
	Stage             string      // Pipeline stage name
	ColumnName        string      // Column that was cleaned
	OriginalValue     interface{} // Original value (may be nil)
	NewValue          string      // New value after cleaning, empty when discarded
	RowIdentifier     string      // Subject pseudonym or row position; empty for column-level ops
	CleaningOperation string      // Type of cleaning performed (e.g., "value_discarded")
	CleaningReason    string      // Reason for cleaning (e.g., "out_of_range")
	CleanedAt         time.Time
}

// String returns a one-line description for logs
func (op CleaningOperation) String() string {
	if op.RowIdentifier == "" {
		return fmt.Sprintf("%s %s: %s (%s)", op.Stage, op.ColumnName, op.CleaningOperation, op.CleaningReason)
	}
	return fmt.Sprintf("%s %s[%s]: %s %v (%s)",
		op.Stage, op.ColumnName, op.RowIdentifier, op.CleaningOperation, op.OriginalValue, op.CleaningReason)
}
