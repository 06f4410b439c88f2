package ports

import (
	"fmt"
	"strings"
)

// Range addresses a rectangular block: named sheet, column letter span and
// 1-based row span. ToRow 0 leaves the range open downwards; FromRow 0 means
// the whole column span.
type Range struct {
	Sheet   string
	FromCol string
	ToCol   string
	FromRow int
	ToRow   int
}

// Columns builds an open-ended range starting at fromRow.
func Columns(sheet, fromCol, toCol string, fromRow int) Range {
	return Range{Sheet: sheet, FromCol: fromCol, ToCol: toCol, FromRow: fromRow}
}

// Row builds a single-row range.
func Row(sheet, fromCol, toCol string, row int) Range {
	return Range{Sheet: sheet, FromCol: fromCol, ToCol: toCol, FromRow: row, ToRow: row}
}

// String renders A1 notation, e.g. Articles!A2:G or Articles!E5:G5.
func (r Range) String() string {
	from := r.FromCol
	to := r.ToCol
	if r.FromRow > 0 {
		from += fmt.Sprint(r.FromRow)
	}
	if r.ToRow > 0 {
		to += fmt.Sprint(r.ToRow)
	}
	if to == "" {
		return quoteSheet(r.Sheet) + "!" + from
	}
	return quoteSheet(r.Sheet) + "!" + from + ":" + to
}

// Width is the number of columns covered.
func (r Range) Width() int {
	return ColumnIndex(r.ToCol) - ColumnIndex(r.FromCol) + 1
}

func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

// ColumnIndex converts a column letter span to a 0-based index (A=0, AA=26).
// Invalid input yields -1.
func ColumnIndex(col string) int {
	col = strings.ToUpper(strings.TrimSpace(col))
	if col == "" {
		return -1
	}
	idx := 0
	for _, r := range col {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}

// ColumnLetter is the inverse of ColumnIndex.
func ColumnLetter(idx int) string {
	if idx < 0 {
		return ""
	}
	var out []byte
	for idx >= 0 {
		out = append([]byte{byte('A' + idx%26)}, out...)
		idx = idx/26 - 1
	}
	return string(out)
}
