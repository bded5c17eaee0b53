// pkg/converter/values.go
package converter

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// ConvertValue converts a database driver value into a typed cell
func (c *TypeConverter) ConvertValue(value interface{}) model.Value {
	switch v := value.(type) {
	case nil:
		return model.Missing()
	case string:
		return c.ParseCell(v)
	case []byte:
		return c.ParseCell(string(v))
	case bool:
		return model.Bool(v)
	case int:
		return model.Int(int64(v))
	case int8:
		return model.Int(int64(v))
	case int16:
		return model.Int(int64(v))
	case int32:
		return model.Int(int64(v))
	case int64:
		return model.Int(v)
	case uint8:
		return model.Int(int64(v))
	case uint16:
		return model.Int(int64(v))
	case uint32:
		return model.Int(int64(v))
	case uint:
		return c.convertUnsigned(uint64(v))
	case uint64:
		return c.convertUnsigned(v)
	case float32:
		return model.Float(float64(v))
	case float64:
		return model.Float(v)
	case time.Time:
		if v.IsZero() {
			return model.Missing()
		}
		return model.Date(v.In(c.location()))
	default:
		return c.convertToText(v)
	}
}

// ParseCell converts one delimited-text field, keeping it as text unless it
// is a null token
func (c *TypeConverter) ParseCell(s string) model.Value {
	if c.config.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if c.IsNull(s) {
		return model.Missing()
	}
	return model.String(s)
}

// IsNull determines if a text value should be treated as missing
func (c *TypeConverter) IsNull(s string) bool {
	for _, null := range c.config.NullTokens {
		if s == null {
			return true
		}
	}
	return false
}

func (c *TypeConverter) convertUnsigned(v uint64) model.Value {
	if v > math.MaxInt64 {
		return model.String(fmt.Sprintf("%d", v))
	}
	return model.Int(int64(v))
}

// convertToText renders arrays, objects and other driver types as text.
// Snowflake VARIANT/ARRAY/OBJECT values become their JSON form.
func (c *TypeConverter) convertToText(value interface{}) model.Value {
	switch v := value.(type) {
	case fmt.Stringer:
		return c.ParseCell(v.String())
	case map[string]interface{}, []interface{}:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			c.logger.Warn("Failed to marshal structured value",
				zap.String("type", fmt.Sprintf("%T", value)),
				zap.Error(err))
			return model.String(fmt.Sprintf("%v", v))
		}
		return model.String(string(jsonBytes))
	default:
		return model.String(fmt.Sprintf("%v", v))
	}
}
