// Package export renders report rows as CSV text or XLSX workbooks.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is one named cell of a row
type Field struct {
	Key   string
	Value interface{}
}

// Row is an ordered set of cells; the first row's keys become the header
type Row []Field

// Keys returns the column names in order
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// F builds a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// ToDelimitedText renders rows as comma-separated text. All rows must share
// the first row's columns. Cells containing a comma or a quote are quoted;
// rows are joined by newlines with no trailing newline.
func ToDelimitedText(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}

	lines := make([]string, 0, len(rows)+1)
	header := make([]string, 0, len(rows[0]))
	for _, key := range rows[0].Keys() {
		header = append(header, escapeCell(key))
	}
	lines = append(lines, strings.Join(header, ","))

	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, f := range row {
			cells = append(cells, escapeCell(FormatValue(f.Value)))
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

func escapeCell(s string) string {
	if strings.ContainsAny(s, `,"`) {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// FormatValue renders a scalar the way it appears in an export cell. Nil and
// nil pointers become the empty string.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case *float64:
		if x == nil {
			return ""
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case *int:
		if x == nil {
			return ""
		}
		return strconv.Itoa(*x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Filename builds "<subject>_<YYYY-MM-DD>.<ext>" from the export time
func Filename(subject string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", subject, at.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}
