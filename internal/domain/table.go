package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrDuplicateReport is returned when a report_id appears twice in one table.
	ErrDuplicateReport = errors.New("duplicate report_id")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing column")
)

// TimeLayout is the timestamp layout used by header and observation tables.
const TimeLayout = "2006-01-02 15:04:05"

// Table is one CDM table of a partition: an ordered set of named string
// columns with one row per report. Cells are kept as text so that columns
// the engine does not know about survive a read/write cycle untouched.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string

	colIdx map[string]int
	rowIdx map[string]int
}

// NewTable indexes rows by report_id. Every row must have one cell per column.
func NewTable(name string, columns []string, rows [][]string) (*Table, error) {
	t := &Table{
		Name:    name,
		Columns: columns,
		Rows:    rows,
		colIdx:  make(map[string]int, len(columns)),
		rowIdx:  make(map[string]int, len(rows)),
	}
	for i, c := range columns {
		t.colIdx[c] = i
	}
	id, ok := t.colIdx[ColReportID]
	if !ok {
		return nil, fmt.Errorf("table %s: %w %s", name, ErrMissingColumn, ColReportID)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("table %s row %d: %d cells for %d columns", name, i, len(row), len(columns))
		}
		rid := row[id]
		if _, dup := t.rowIdx[rid]; dup {
			return nil, fmt.Errorf("table %s: %w %q", name, ErrDuplicateReport, rid)
		}
		t.rowIdx[rid] = i
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether the table carries column c.
func (t *Table) HasColumn(c string) bool {
	_, ok := t.colIdx[c]
	return ok
}

// Require returns an error naming every column in cols the table lacks.
func (t *Table) Require(cols ...string) error {
	var errs []error
	for _, c := range cols {
		if !t.HasColumn(c) {
			errs = append(errs, fmt.Errorf("table %s: %w %s", t.Name, ErrMissingColumn, c))
		}
	}
	return errors.Join(errs...)
}

// ReportID returns the report_id of row i.
func (t *Table) ReportID(i int) string {
	return t.Rows[i][t.colIdx[ColReportID]]
}

// Lookup returns the row index holding report id.
func (t *Table) Lookup(id string) (int, bool) {
	i, ok := t.rowIdx[id]
	return i, ok
}

// Cell returns the raw text of column c in row i, or "" when c is unknown.
func (t *Table) Cell(i int, c string) string {
	j, ok := t.colIdx[c]
	if !ok {
		return ""
	}
	return t.Rows[i][j]
}

// SetCell overwrites column c in row i. Unknown columns are ignored.
func (t *Table) SetCell(i int, c, v string) {
	if j, ok := t.colIdx[c]; ok {
		t.Rows[i][j] = v
	}
}

// Float parses column c of row i. Missing or unparsable cells yield NaN.
func (t *Table) Float(i int, c string) float64 {
	return ParseFloat(t.Cell(i, c))
}

// Int parses column c of row i as an integer code.
func (t *Table) Int(i int, c string) (int, bool) {
	s := strings.TrimSpace(t.Cell(i, c))
	if IsMissing(s) {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	// Codes written by float-typed tools, e.g. "2.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Time parses column c of row i as a UTC timestamp.
func (t *Table) Time(i int, c string) (time.Time, bool) {
	return ParseTime(t.Cell(i, c))
}

// Clone returns a deep copy so callers can mutate cells without aliasing.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	cols := append([]string(nil), t.Columns...)
	out, _ := NewTable(t.Name, cols, rows) // already validated
	return out
}

// IsMissing reports whether a cell denotes a missing value.
func IsMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "nan", "none", "nat":
		return true
	}
	return false
}

// ParseFloat converts a cell to float64, returning NaN when missing.
func ParseFloat(s string) float64 {
	if IsMissing(s) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ParseTime accepts the table layout and RFC 3339.
func ParseTime(s string) (time.Time, bool) {
	if IsMissing(s) {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if ts, err := time.ParseInLocation(TimeLayout, s, time.UTC); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), true
	}
	return time.Time{}, false
}

// FormatCode renders an integer quality code as a cell.
func FormatCode(code int) string {
	return strconv.Itoa(code)
}
