package pipeline

import (
	"cmp"
	"maps"
	"slices"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

// Stage identifies one pass of the engine.
type Stage int

const (
	StageBlacklist Stage = iota
	StageIndividual
	StageSequential
	StageGrouped
)

var stageNames = [...]string{
	StageBlacklist:  "blacklist",
	StageIndividual: "individual",
	StageSequential: "sequential",
	StageGrouped:    "grouped",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Cell addresses one quality column of one report in one table.
type Cell struct {
	Table    string
	ReportID string
	Column   string
}

// Change is a quality code written to a cell, with the stage and check that
// wrote it.
type Change struct {
	Cell
	Code  int
	Stage Stage
	Check string
}

// Snapshot is an immutable view of the quality codes of a partition after
// some number of stages. Cells not written by any stage read through to the
// partition as loaded.
type Snapshot struct {
	base    *domain.Partition
	changes map[Cell]Change
}

// NewSnapshot returns the snapshot of a partition before any stage ran.
func NewSnapshot(p *domain.Partition) *Snapshot {
	return &Snapshot{base: p, changes: map[Cell]Change{}}
}

// Code returns the current code of a cell. ok is false when the cell is
// missing or not an integer.
func (s *Snapshot) Code(c Cell) (int, bool) {
	if ch, ok := s.changes[c]; ok {
		return ch.Code, true
	}
	t, ok := s.base.Table(c.Table)
	if !ok {
		return 0, false
	}
	i, ok := t.Lookup(c.ReportID)
	if !ok {
		return 0, false
	}
	return t.Int(i, c.Column)
}

// CodeOr returns the code of a cell or def when it has none.
func (s *Snapshot) CodeOr(c Cell, def int) int {
	if v, ok := s.Code(c); ok {
		return v
	}
	return def
}

// Apply returns a new snapshot with every change of d written over s. Later
// stages overwrite earlier ones.
func (s *Snapshot) Apply(d *Delta) *Snapshot {
	out := &Snapshot{base: s.base, changes: maps.Clone(s.changes)}
	for c, ch := range d.changes {
		out.changes[c] = ch
	}
	return out
}

// Changes lists every written cell in table, report and column order.
func (s *Snapshot) Changes() []Change {
	return sortedChanges(s.changes)
}

// Delta collects the codes written by the checks of one stage. When two
// checks write the same cell the more severe code wins, so the result does
// not depend on check order.
type Delta struct {
	stage   Stage
	changes map[Cell]Change
}

// NewDelta returns an empty delta for stage.
func NewDelta(stage Stage) *Delta {
	return &Delta{stage: stage, changes: map[Cell]Change{}}
}

// Set records code for a cell unless a more severe one is already there.
func (d *Delta) Set(c Cell, code int, check string) {
	if prev, ok := d.changes[c]; ok && severity(c.Column, prev.Code) >= severity(c.Column, code) {
		return
	}
	d.changes[c] = Change{Cell: c, Code: code, Stage: d.stage, Check: check}
}

// Get returns the code recorded for a cell in this delta.
func (d *Delta) Get(c Cell) (int, bool) {
	ch, ok := d.changes[c]
	return ch.Code, ok
}

// Len returns the number of cells written.
func (d *Delta) Len() int { return len(d.changes) }

// Changes lists the recorded cells in table, report and column order.
func (d *Delta) Changes() []Change {
	return sortedChanges(d.changes)
}

// severity ranks the codes of a quality column; higher is more severe.
// Unknown codes rank lowest.
func severity(column string, code int) int {
	var order []int
	switch column {
	case domain.ColLocationQuality:
		order = []int{domain.LocationQualityPassed, domain.LocationQualityUntestable, domain.LocationQualityFailed}
	case domain.ColReportTimeQuality:
		order = []int{domain.TimeQualityPassed, domain.TimeQualityUntestable, domain.TimeQualityFailed}
	case domain.ColReportQuality:
		order = []int{domain.ReportQualityPassed, domain.ReportQualityFailed, domain.ReportQualityBlacklisted}
	default:
		order = []int{
			domain.FlagCode(domain.Passed), domain.QualityFlagMissing, domain.FlagCode(domain.Untestable),
			domain.FlagCode(domain.Failed), domain.QualityFlagBlacklisted,
		}
	}
	return slices.Index(order, code) + 1
}

func sortedChanges(m map[Cell]Change) []Change {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b Change) int {
		return cmp.Or(
			cmp.Compare(a.Table, b.Table),
			cmp.Compare(a.ReportID, b.ReportID),
			cmp.Compare(a.Column, b.Column),
		)
	})
	return out
}
