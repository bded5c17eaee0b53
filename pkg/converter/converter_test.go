package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

func TestParseCellNullTokens(t *testing.T) {
	c := NewTypeConverter(zap.NewNop())

	for _, token := range []string{"", "NA", "N/A", "NULL", "nan", "NaN", "None", "#N/A", "<NA>"} {
		assert.True(t, c.ParseCell(token).IsMissing(), "%q", token)
	}
	for _, text := range []string{" ", ".", "Unknown", "0", "na"} {
		v := c.ParseCell(text)
		s, ok := v.Str()
		assert.True(t, ok, "%q", text)
		assert.Equal(t, text, s)
	}
}

func TestParseCellTrimSpace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrimSpace = true
	c := NewTypeConverterWithConfig(zap.NewNop(), cfg)

	assert.True(t, c.ParseCell("  ").IsMissing())
	assert.Equal(t, "98", c.ParseCell(" 98 ").Text())
}

func TestConvertValue(t *testing.T) {
	c := NewTypeConverter(nil)
	ts := time.Date(2020, 3, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   interface{}
		want model.Value
	}{
		{"nil", nil, model.Missing()},
		{"bytes", []byte("170/70"), model.String("170/70")},
		{"null bytes", []byte("NULL"), model.Missing()},
		{"int32", int32(7), model.Int(7)},
		{"uint64", uint64(9), model.Int(9)},
		{"float32", float32(0.5), model.Float(0.5)},
		{"bool", true, model.Bool(true)},
		{"time", ts, model.Date(ts)},
		{"array", []interface{}{"a", 1.0}, model.String(`["a",1]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ConvertValue(tt.in)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want.Text(), got.Text())
		})
	}
}

func TestKindForDatabaseType(t *testing.T) {
	c := NewTypeConverter(zap.NewNop())

	assert.Equal(t, model.KindString, c.KindForDatabaseType("VARCHAR(16777216)"))
	assert.Equal(t, model.KindInt, c.KindForDatabaseType("NUMBER(38,0)"))
	assert.Equal(t, model.KindString, c.KindForDatabaseType("NUMBER(10,2)"))
	assert.Equal(t, model.KindFloat, c.KindForDatabaseType("float8"))
	assert.Equal(t, model.KindDate, c.KindForDatabaseType("TIMESTAMP_NTZ"))
	assert.Equal(t, model.KindBool, c.KindForDatabaseType("bool"))
	assert.Equal(t, model.KindMissing, c.KindForDatabaseType(""))
}
