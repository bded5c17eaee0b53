// pkg/converter/converter.go
package converter

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// TypeConverter turns source values into typed cells
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for value conversion
type TypeConverterConfig struct {
	// Text values read as missing, compared exactly
	NullTokens []string
	// Timezone applied to database timestamps
	DefaultTimezone string
	// Whether to trim surrounding whitespace before the null check
	TrimSpace bool
}

// DefaultNullTokens are the spellings of "no value" found in exported
// spreadsheets; the empty string is one of them
var DefaultNullTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		NullTokens:      DefaultNullTokens,
		DefaultTimezone: "UTC",
		TrimSpace:       false,
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// Patterns for type extraction
var precisionScalePattern = regexp.MustCompile(`(?:NUMBER|NUMERIC|DECIMAL)\((\d+)(?:,\s*(\d+))?\)`)

// getBaseType extracts the base type from a complex type definition
func getBaseType(fullType string) string {
	parts := strings.Split(fullType, "(")
	return strings.TrimSpace(parts[0])
}

// KindForDatabaseType maps a Postgres or Snowflake column type to the kind of
// cell ConvertValue produces for it
func (c *TypeConverter) KindForDatabaseType(dbType string) model.Kind {
	if dbType == "" || strings.EqualFold(dbType, "NULL") {
		return model.KindMissing
	}

	dbType = strings.ToUpper(dbType)
	switch getBaseType(dbType) {
	case "VARCHAR", "TEXT", "CHAR", "BPCHAR", "STRING", "UUID", "ARRAY", "OBJECT", "VARIANT", "JSON", "JSONB":
		return model.KindString
	case "NUMBER", "NUMERIC", "DECIMAL":
		// Snowflake and pgx hand fixed-point values over as text unless
		// the scale is zero
		if c.hasZeroScale(dbType) {
			return model.KindInt
		}
		return model.KindString
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT":
		return model.KindInt
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION":
		return model.KindFloat
	case "BOOL", "BOOLEAN":
		return model.KindBool
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP_NTZ", "TIMESTAMP_TZ", "TIMESTAMP_LTZ", "DATETIME":
		return model.KindDate
	default:
		c.logger.Debug("Unknown database type, treating as text",
			zap.String("dbType", dbType))
		return model.KindString
	}
}

// hasZeroScale reports whether NUMBER(p,s) has s == 0
func (c *TypeConverter) hasZeroScale(fullType string) bool {
	matches := precisionScalePattern.FindStringSubmatch(fullType)
	if len(matches) < 2 {
		return false
	}
	if len(matches) < 3 || matches[2] == "" {
		return true
	}
	scale, err := strconv.Atoi(matches[2])
	return err == nil && scale == 0
}

// location returns the configured timezone, UTC when unknown
func (c *TypeConverter) location() *time.Location {
	loc, err := time.LoadLocation(c.config.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
