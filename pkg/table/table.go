// Package table provides the tabular result type returned by the trials
// fetcher: an ordered set of named columns over rows of scalar values.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Row maps column names to scalar values. Missing source fields are nil.
type Row map[string]any

// Table is an ordered sequence of rows sharing one column set. Rows keep
// insertion order; nothing is deduplicated or re-sorted.
type Table struct {
	columns []string
	rows    []Row
}

// New creates an empty table with the given column order.
func New(columns []string) *Table {
	return &Table{
		columns: append([]string(nil), columns...),
	}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Append adds a row to the end of the table.
func (t *Table) Append(r Row) {
	t.rows = append(t.rows, r)
}

// Rows returns the underlying rows in insertion order.
func (t *Table) Rows() []Row {
	return t.rows
}

// Row returns the i-th row.
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// Column returns every value of one column, row by row.
func (t *Table) Column(name string) []any {
	values := make([]any, len(t.rows))
	for i, row := range t.rows {
		values[i] = row[name]
	}
	return values
}

// MergeByKey merges other into a copy of t, matching rows on the key column
// with outer semantics: rows present in both tables keep t's values and take
// other's values only for columns that are nil in t; rows present in only
// one table are carried over as-is. Column order is t's columns followed by
// other's additional columns.
func (t *Table) MergeByKey(other *Table, key string) *Table {
	columns := append([]string(nil), t.columns...)
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}
	for _, c := range other.columns {
		if !seen[c] {
			columns = append(columns, c)
			seen[c] = true
		}
	}

	merged := New(columns)
	index := make(map[any]int, len(t.rows))
	for _, row := range t.rows {
		clone := make(Row, len(row))
		for k, v := range row {
			clone[k] = v
		}
		if k, ok := row[key]; ok && k != nil {
			index[k] = len(merged.rows)
		}
		merged.Append(clone)
	}

	for _, row := range other.rows {
		k, ok := row[key]
		if ok && k != nil {
			if i, exists := index[k]; exists {
				existing := merged.rows[i]
				for col, v := range row {
					if existing[col] == nil {
						existing[col] = v
					}
				}
				continue
			}
		}
		clone := make(Row, len(row))
		for col, v := range row {
			clone[col] = v
		}
		merged.Append(clone)
	}

	return merged
}

// WriteCSV writes the table with a header row. Nil values become empty
// fields and timestamps are written as dates.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, col := range t.columns {
			record[i] = formatValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatValue renders one cell for CSV output.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", val)
	}
}
