// Package psv reads and writes partitions stored as pipe-separated files.
//
// A partition directory holds one header-<id>.psv and one
// observations-<table>-<id>.psv per observation table. Every file starts
// with a line of column names.
package psv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

// Sep separates cells within a line.
const Sep = '|'

// ReadTable parses one psv table.
func ReadTable(r io.Reader, name string) (*domain.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = Sep
	cr.LazyQuotes = true

	cols, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("table %s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("table %s: read columns: %w", name, err)
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		rows = append(rows, rec)
	}
	return domain.NewTable(name, cols, rows)
}

// WriteTable writes t with its column line first.
func WriteTable(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = Sep
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("table %s: %w", t.Name, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("table %s: %w", t.Name, err)
	}
	return nil
}
