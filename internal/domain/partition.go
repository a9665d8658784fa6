package domain

import (
	"errors"
	"fmt"
)

// HeaderTable is the name of the table holding one row per report.
const HeaderTable = "header"

// ErrOrphanObservation is returned when an observation row's report_id has no
// header row.
var ErrOrphanObservation = errors.New("observation without header row")

// Partition is one monthly header+observations table set.
type Partition struct {
	ID           string
	Header       *Table
	Observations []*Table
}

// Table returns the header or the named observation table.
func (p *Partition) Table(name string) (*Table, bool) {
	if name == HeaderTable {
		return p.Header, p.Header != nil
	}
	for _, t := range p.Observations {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TableNames lists the observation table names in partition order.
func (p *Partition) TableNames() []string {
	names := make([]string, len(p.Observations))
	for i, t := range p.Observations {
		names[i] = t.Name
	}
	return names
}

// Validate checks the quality columns every stage writes to and that every
// observation report_id resolves to exactly one header row.
func (p *Partition) Validate() error {
	if p.Header == nil {
		return fmt.Errorf("partition %s: no header table", p.ID)
	}
	errs := []error{p.Header.Require(
		ColPrimaryStationID, ColReportQuality, ColLocationQuality, ColReportTimeQuality, ColHistory,
	)}
	for _, t := range p.Observations {
		if err := t.Require(ColQualityFlag); err != nil {
			errs = append(errs, err)
		}
		for i := range t.Rows {
			id := t.ReportID(i)
			if _, ok := p.Header.Lookup(id); !ok {
				errs = append(errs, fmt.Errorf("table %s: %w: %q", t.Name, ErrOrphanObservation, id))
			}
		}
	}
	return errors.Join(errs...)
}

// Clone deep-copies every table.
func (p *Partition) Clone() *Partition {
	out := &Partition{ID: p.ID, Header: p.Header.Clone()}
	for _, t := range p.Observations {
		out.Observations = append(out.Observations, t.Clone())
	}
	return out
}
