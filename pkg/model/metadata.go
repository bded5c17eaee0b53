// pkg/model/metadata.go
package model

import "strings"

// SourceMetadata describes the raw table a frame was read from
type SourceMetadata struct {
	Source  string       // Source name, e.g. file path or schema.table
	Columns []ColumnInfo // Column definitions in source order
	Rows    int          // Rows read
}

// ColumnInfo represents metadata about a source column
type ColumnInfo struct {
	Name     string // Column name as found in the source
	DataType string // Driver or file type name
	Kind     Kind   // Kind of cell the source produces, KindMissing when mixed
	Nullable bool   // Whether the source allows NULL values
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (m *SourceMetadata) GetColumnByName(name string) *ColumnInfo {
	for i, col := range m.Columns {
		if strings.EqualFold(col.Name, name) {
			return &m.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the source column names in order
func (m *SourceMetadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		names[i] = col.Name
	}
	return names
}
