package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueText(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"missing", Missing(), "nan"},
		{"string", String("[170/70] - 2020-03-04"), "[170/70] - 2020-03-04"},
		{"int", Int(3), "3"},
		{"whole float", Float(3), "3.0"},
		{"fraction", Float(0.5), "0.5"},
		{"true", Bool(true), "True"},
		{"date", Date(time.Date(2020, 3, 4, 0, 0, 0, 0, time.UTC)), "2020-03-04 00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Text())
		})
	}
}

func TestFloatNaNIsMissing(t *testing.T) {
	var zero float64
	assert.True(t, Float(zero/zero).IsMissing())
	assert.True(t, Date(time.Time{}).IsMissing())
}

func TestFrameSetAndRename(t *testing.T) {
	f := FromRecords([]string{"a", "b"}, []Record{
		{"a": String("1"), "b": String("x")},
		{"a": String("2")},
	})
	require.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"a", "b"}, f.Names())
	assert.True(t, f.Value("b", 1).IsMissing())

	err := f.Set(NewColumn("c", KindFloat, 3))
	assert.ErrorIs(t, err, ErrLengthMismatch)

	c := NewColumn("c", KindFloat, 2)
	c.Cells[0] = Float(1.5)
	require.NoError(t, f.Set(c))
	assert.Equal(t, []string{"a", "b", "c"}, f.Names())

	require.True(t, f.Rename("a", "z"))
	assert.Equal(t, []string{"z", "b", "c"}, f.Names())
	assert.False(t, f.Rename("missing", "y"))

	// renaming onto an existing column replaces it
	require.True(t, f.Rename("c", "b"))
	assert.Equal(t, []string{"z", "b"}, f.Names())
	v, ok := f.Value("b", 0).FloatValue()
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestColumnEmptyAndDistinct(t *testing.T) {
	c := NewColumn("x", KindMissing, 4)
	assert.True(t, c.Empty())

	c.Cells[1] = String("White")
	c.Cells[2] = String("White")
	c.Cells[3] = Int(1)
	assert.False(t, c.Empty())
	assert.Len(t, c.Distinct(), 2)
}

func TestFrameCloneIsDeep(t *testing.T) {
	f := FromRecords([]string{"a"}, []Record{{"a": String("1")}})
	g := f.Clone()
	col, _ := g.Column("a")
	col.Cells[0] = String("2")

	assert.Equal(t, "1", f.Value("a", 0).Text())
	assert.Equal(t, "2", g.Value("a", 0).Text())
}

func TestSourceMetadataLookup(t *testing.T) {
	m := &SourceMetadata{Columns: []ColumnInfo{{Name: "Systolic BP", DataType: "text"}}}
	require.NotNil(t, m.GetColumnByName("systolic bp"))
	assert.Nil(t, m.GetColumnByName("Diastolic BP"))
	assert.Equal(t, []string{"Systolic BP"}, m.ColumnNames())
}
