// pkg/model/frame.go
package model

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when a column does not match the frame's row count
var ErrLengthMismatch = errors.New("column length does not match frame row count")

// Column is a named, type-tagged slice of cells
type Column struct {
	Name  string
	Type  Kind // Declared type; KindMissing means untyped raw input
	Cells []Value
}

// NewColumn creates an all-missing column of the given type
func NewColumn(name string, typ Kind, rows int) *Column {
	return &Column{
		Name:  name,
		Type:  typ,
		Cells: make([]Value, rows),
	}
}

// Empty reports whether every cell is missing
func (c *Column) Empty() bool {
	for _, v := range c.Cells {
		if !v.IsMissing() {
			return false
		}
	}
	return true
}

// Distinct returns the distinct non-missing cells in first-seen order
func (c *Column) Distinct() []Value {
	seen := make(map[string]bool)
	var out []Value
	for _, v := range c.Cells {
		if v.IsMissing() {
			continue
		}
		key := v.Kind().String() + ":" + v.Text()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// Clone returns a deep copy of the column
func (c *Column) Clone() *Column {
	cells := make([]Value, len(c.Cells))
	copy(cells, c.Cells)
	return &Column{Name: c.Name, Type: c.Type, Cells: cells}
}

// Record is one row keyed by column name
type Record map[string]Value

// Frame is an ordered, columnar record set
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewFrame creates an empty frame with a fixed row count
func NewFrame(rows int) *Frame {
	return &Frame{
		index: make(map[string]int),
		rows:  rows,
	}
}

// FromRecords builds a frame from row records. Columns follow order; names
// present in records but not in order are appended in first-seen order.
func FromRecords(order []string, records []Record) *Frame {
	f := NewFrame(len(records))
	names := append([]string(nil), order...)
	known := make(map[string]bool, len(order))
	for _, name := range order {
		known[name] = true
	}
	for _, rec := range records {
		for name := range rec {
			if !known[name] {
				known[name] = true
				names = append(names, name)
			}
		}
	}

	for _, name := range names {
		col := NewColumn(name, KindMissing, len(records))
		for i, rec := range records {
			col.Cells[i] = rec[name]
		}
		f.columns = append(f.columns, col)
		f.index[name] = len(f.columns) - 1
	}
	return f
}

// Len returns the number of rows
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns
func (f *Frame) Width() int { return len(f.columns) }

// Has reports whether a column exists
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a column by exact name
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Set adds a column, or replaces an existing one in place
func (f *Frame) Set(col *Column) error {
	if len(col.Cells) != f.rows {
		return fmt.Errorf("set %q (%d cells, %d rows): %w", col.Name, len(col.Cells), f.rows, ErrLengthMismatch)
	}
	if i, ok := f.index[col.Name]; ok {
		f.columns[i] = col
		return nil
	}
	f.columns = append(f.columns, col)
	f.index[col.Name] = len(f.columns) - 1
	return nil
}

// Rename changes a column's name keeping its position. A column already
// holding the new name is dropped. Returns false when from does not exist.
func (f *Frame) Rename(from, to string) bool {
	i, ok := f.index[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	if j, clash := f.index[to]; clash {
		f.columns = append(f.columns[:j], f.columns[j+1:]...)
		if j < i {
			i--
		}
	}
	f.columns[i].Name = to
	f.reindex()
	return true
}

// Drop removes a column if present
func (f *Frame) Drop(name string) {
	i, ok := f.index[name]
	if !ok {
		return
	}
	f.columns = append(f.columns[:i], f.columns[i+1:]...)
	f.reindex()
}

// Value returns one cell, missing when the column does not exist
func (f *Frame) Value(name string, row int) Value {
	col, ok := f.Column(name)
	if !ok || row < 0 || row >= f.rows {
		return Missing()
	}
	return col.Cells[row]
}

// Record returns one row keyed by column name
func (f *Frame) Record(row int) Record {
	rec := make(Record, len(f.columns))
	for _, c := range f.columns {
		rec[c.Name] = c.Cells[row]
	}
	return rec
}

// Records returns all rows
func (f *Frame) Records() []Record {
	out := make([]Record, f.rows)
	for i := range out {
		out[i] = f.Record(i)
	}
	return out
}

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.rows)
	for _, c := range f.columns {
		out.columns = append(out.columns, c.Clone())
	}
	out.reindex()
	return out
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.columns))
	for i, c := range f.columns {
		f.index[c.Name] = i
	}
}
