package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads a worksheet. Numeric cells come back as float64, boolean
// cells as bool, date and time cells as formatted text and everything else
// as its stored text.
func ReadXLSX(path string, sheetName string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	idx, err := f.GetSheetIndex(sheetName)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: sheet %q not found", domain.ErrValidation, sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no header row", domain.ErrValidation, sheetName)
	}

	dates, err := newDateFormats(f)
	if err != nil {
		return nil, err
	}

	records := make([][]any, 0, len(rows)-1)
	for r := 1; r < len(rows); r++ {
		record := make([]any, len(rows[r]))
		for c, value := range rows[r] {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheetName, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to read cell %s: %w", cell, err)
			}
			v := xlsxValue(cellType, value)
			if serial, ok := v.(float64); ok {
				if text, ok, err := dates.format(sheetName, cell, serial); err != nil {
					return nil, err
				} else if ok {
					v = text
				}
			}
			record[c] = v
		}
		records = append(records, record)
	}

	return newTable(rows[0], records)
}

func xlsxValue(cellType excelize.CellType, raw string) any {
	if raw == "" {
		return nil
	}

	switch cellType {
	case excelize.CellTypeBool:
		return raw == "1" || raw == "TRUE" || raw == "true"
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	timeLayout     = "15:04:05"
	secondsPerDay  = 24 * 60 * 60
)

// Built-in number formats that render dates or times.
var (
	builtinDateFormats = map[int]bool{
		14: true, 15: true, 16: true, 17: true, 22: true,
		27: true, 28: true, 29: true, 30: true, 31: true,
		36: true, 50: true, 51: true, 52: true, 53: true, 54: true,
		55: true, 56: true, 57: true, 58: true,
	}
	builtinTimeFormats = map[int]bool{
		18: true, 19: true, 20: true, 21: true,
		32: true, 33: true, 34: true, 35: true,
		45: true, 46: true, 47: true,
	}
)

type dateKind int

const (
	notDate dateKind = iota
	dateTime
	timeOnly
)

// dateFormats resolves cell styles to date kinds, caching per style index.
type dateFormats struct {
	f        *excelize.File
	date1904 bool
	kinds    map[int]dateKind
}

func newDateFormats(f *excelize.File) (*dateFormats, error) {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook properties: %w", err)
	}

	d := &dateFormats{f: f, kinds: make(map[int]dateKind)}
	if props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d, nil
}

// format returns the text of a date-formatted cell holding serial. ok is
// false for cells without a date or time number format.
func (d *dateFormats) format(sheet, cell string, serial float64) (string, bool, error) {
	styleID, err := d.f.GetCellStyle(sheet, cell)
	if err != nil {
		return "", false, fmt.Errorf("failed to read style of cell %s: %w", cell, err)
	}

	kind, err := d.kind(styleID)
	if err != nil {
		return "", false, fmt.Errorf("failed to read style of cell %s: %w", cell, err)
	}
	if kind == notDate || serial < 0 {
		return "", false, nil
	}

	if kind == timeOnly && serial < 1 {
		clock := time.Duration(math.Round(serial*secondsPerDay)) * time.Second
		return time.Time{}.Add(clock).Format(timeLayout), true, nil
	}

	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false, nil
	}
	return t.Round(time.Second).Format(dateTimeLayout), true, nil
}

func (d *dateFormats) kind(styleID int) (dateKind, error) {
	if kind, ok := d.kinds[styleID]; ok {
		return kind, nil
	}
	style, err := d.f.GetStyle(styleID)
	if err != nil {
		return notDate, err
	}

	kind := notDate
	switch {
	case style.CustomNumFmt != nil:
		kind = customDateKind(*style.CustomNumFmt)
	case builtinDateFormats[style.NumFmt]:
		kind = dateTime
	case builtinTimeFormats[style.NumFmt]:
		kind = timeOnly
	}

	d.kinds[styleID] = kind
	return kind, nil
}

// customDateKind classifies a custom number format code by its date and time
// tokens, ignoring quoted literals, escapes, colors and locale sections.
func customDateKind(code string) dateKind {
	var b, section strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			if ch != ']' {
				section.WriteByte(ch)
				continue
			}
			inBracket = false
			// Elapsed time sections such as [h] or [mm] are time tokens.
			if elapsed := strings.ToLower(section.String()); elapsed != "" && strings.Trim(elapsed, "hms") == "" {
				b.WriteString(elapsed)
			}
			section.Reset()
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		default:
			b.WriteByte(ch)
		}
	}

	tokens := strings.ToLower(b.String())
	if strings.Contains(tokens, "general") {
		return notDate
	}
	hasDate := strings.ContainsAny(tokens, "yd")
	hasTime := strings.ContainsAny(tokens, "hs")
	switch {
	case hasDate:
		return dateTime
	case hasTime:
		return timeOnly
	case strings.Contains(tokens, "m"):
		return dateTime
	}
	return notDate
}
