package sheet

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kursadbilgin/rowhook/internal/domain"
)

// Table is a header row plus the raw data rows under it. Every row has
// exactly len(Columns) cells; a missing cell is nil.
type Table struct {
	Columns []string
	Rows    []domain.RawRow
}

// Read loads a table from an .xlsx or .csv file. sheetName selects an xlsx
// worksheet and defaults to the first one.
func Read(path string, sheetName string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheetName)
	case ".csv":
		if sheetName != "" {
			return nil, fmt.Errorf("%w: sheet selection is only supported for xlsx files", domain.ErrValidation)
		}
		return ReadCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrValidation, filepath.Ext(path))
	}
}

func newTable(header []string, records [][]any) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: file has no header row", domain.ErrValidation)
	}
	if err := domain.ValidateColumns(header); err != nil {
		return nil, err
	}

	width := len(header)
	rows := make([]domain.RawRow, 0, len(records))
	for i, record := range records {
		if isBlank(record) {
			continue
		}

		for j := width; j < len(record); j++ {
			if record[j] != nil {
				return nil, fmt.Errorf("%w: data row %d has a value outside the header (column %d)", domain.ErrValidation, i+1, j+1)
			}
		}

		row := make(domain.RawRow, width)
		copy(row, record)
		rows = append(rows, row)
	}

	return &Table{Columns: header, Rows: rows}, nil
}

func isBlank(record []any) bool {
	for _, cell := range record {
		if cell != nil {
			return false
		}
	}
	return true
}
