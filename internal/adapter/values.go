package adapter

import (
	"strconv"
	"strings"
	"time"
)

// NormalizeValue converts a driver-native scan value into the canonical
// forms QueryValues promises: int64, float64, string, bool, time.Time, or
// nil. Drivers that return text as []byte (notably go-sql-driver/mysql) get
// their bytes decoded, and numeric columns reported as bytes are parsed
// using the column's database type name.
func NormalizeValue(dbType string, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		s := string(val)
		if IsIntegerType(dbType) {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		if IsFloatType(dbType) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return s
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val
	default:
		return v
	}
}

// IsIntegerType reports whether the database type name denotes an integer
// column across the supported engines.
func IsIntegerType(dbType string) bool {
	switch strings.ToUpper(strings.TrimSpace(dbType)) {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL", "UNSIGNED BIGINT":
		return true
	}
	return false
}

// IsFloatType reports whether the database type name denotes a floating or
// fixed-point numeric column.
func IsFloatType(dbType string) bool {
	switch strings.ToUpper(strings.TrimSpace(dbType)) {
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC", "MONEY",
		"SMALLMONEY", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		return true
	}
	return false
}
