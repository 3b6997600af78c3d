package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// integralSuffix marks a float rendered from a whole number, e.g. an ID
// column read as 42.0 from a spreadsheet.
const integralSuffix = ".0"

// RawRow is one source row, index-aligned with the column list. A nil
// element is a missing cell.
type RawRow []any

// NormalizedRow maps column name to a non-empty string value. Missing and
// empty cells have no key.
type NormalizedRow map[string]string

// Normalize converts a raw row into its normalized form.
func Normalize(columns []string, row RawRow) NormalizedRow {
	normalized := make(NormalizedRow, len(columns))
	for i, column := range columns {
		if i >= len(row) {
			break
		}

		text, ok := CellText(row[i])
		if !ok {
			continue
		}

		text = strings.TrimSuffix(text, integralSuffix)
		if text == "" {
			continue
		}
		normalized[column] = text
	}
	return normalized
}

// CellText returns the textual form of a raw cell. The boolean is false for
// missing cells (nil or NaN).
func CellText(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		if math.IsNaN(v) {
			return "", false
		}
		return floatText(v, 64), true
	case float32:
		if math.IsNaN(float64(v)) {
			return "", false
		}
		return floatText(float64(v), 32), true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// floatText renders v with the shortest round-trip digits. Magnitudes below
// 1e-4 or from 1e16 up use exponent form, e.g. 1e+21.
func floatText(v float64, bitSize int) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, bitSize)
	}
	return strconv.FormatFloat(v, 'f', -1, bitSize)
}

// ValidateColumns checks that every column has a name and names are unique.
func ValidateColumns(columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for i, column := range columns {
		if strings.TrimSpace(column) == "" {
			return fmt.Errorf("%w: column %d has no name", ErrValidation, i+1)
		}
		if _, ok := seen[column]; ok {
			return fmt.Errorf("%w: duplicate column %q", ErrValidation, column)
		}
		seen[column] = struct{}{}
	}
	return nil
}

// ValidateRows checks that every row is exactly as wide as the column list.
func ValidateRows(columns []string, rows []RawRow) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrValidation, i+1, len(row), len(columns))
		}
	}
	return nil
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return fmt.Errorf("%w: endpoint is required", ErrValidation)
	}

	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return fmt.Errorf("%w: invalid endpoint: %v", ErrValidation, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: endpoint scheme must be http or https, got %q", ErrValidation, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: endpoint host is required", ErrValidation)
	}
	return nil
}
