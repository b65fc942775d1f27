package domain

import (
	"fmt"
	"strings"
)

// Row is one named-column record of an input document. Absent and blank
// cells carry no key.
type Row map[string]any

// Has reports whether the row carries a non-empty value for the column.
func (r Row) Has(column string) bool {
	if column == "" {
		return false
	}
	v, ok := r[column]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// Value returns the raw cell value, nil when absent or blank.
func (r Row) Value(column string) any {
	if !r.Has(column) {
		return nil
	}
	return r[column]
}

// String returns the cell rendered as a trimmed string, "" when absent.
func (r Row) String(column string) string {
	v := r.Value(column)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Table is an ordered sequence of rows with a stable column list, the shape
// every supported input format is normalized into before reconciliation.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table header carries the given column.
func (t *Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func (t *Table) Len() int { return len(t.Rows) }
