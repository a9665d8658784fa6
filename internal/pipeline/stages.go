package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/qc"
)

const (
	checkBlacklist = "blacklist"
	checkGeneric   = "generic_id"
	checkMissing   = "missing_values"
	checkDerived   = "report_quality"
)

func hdr(id, column string) Cell {
	return Cell{Table: domain.HeaderTable, ReportID: id, Column: column}
}

func flagCell(table, id string) Cell {
	return Cell{Table: table, ReportID: id, Column: domain.ColQualityFlag}
}

// current reads a cell as written so far in this stage, falling back to the
// snapshot of earlier stages.
func (r *run) current(d *Delta, c Cell, def int) int {
	if v, ok := d.Get(c); ok {
		return v
	}
	return r.snap.CodeOr(c, def)
}

func (r *run) headerFailed(d *Delta, id string) bool {
	return r.current(d, hdr(id, domain.ColReportQuality), 0) == domain.ReportQualityFailed
}

// blacklist stamps the observations of blacklisted reports and resets the
// generic marker so the report is checked like any other.
func (r *run) blacklist() (*Delta, error) {
	d := NewDelta(StageBlacklist)
	h := r.p.Header
	for i := range h.Rows {
		id := h.ReportID(i)
		rq, _ := h.Int(i, domain.ColReportQuality)
		switch {
		case rq == domain.ReportQualityBlacklisted:
			r.blacklisted[id] = true
			for _, t := range r.p.Observations {
				if _, ok := t.Lookup(id); ok {
					d.Set(flagCell(t.Name, id), domain.QualityFlagBlacklisted, checkBlacklist)
				}
			}
		case rq == domain.ReportQualityGeneric:
			r.generic[id] = true
			d.Set(hdr(id, domain.ColReportQuality), domain.ReportQualityPassed, checkGeneric)
		case r.e.plan.markGeneric:
			year := 0
			if ts, ok := h.Time(i, domain.ColReportTimestamp); ok {
				year = ts.Year()
			}
			if qc.IDIsGeneric(h.Cell(i, domain.ColPrimaryStationID), year) {
				r.generic[id] = true
			}
		}
	}
	r.e.metrics.RowsRemoved.Add(float64(len(r.blacklisted)))
	return d, nil
}

// individual runs the header row checks, derives report_quality, then runs
// the per-table and combined observation checks.
func (r *run) individual() (*Delta, error) {
	d := NewDelta(StageIndividual)
	if err := r.headerRows(d); err != nil {
		return nil, err
	}
	h := r.p.Header
	for i := range h.Rows {
		id := h.ReportID(i)
		if r.blacklisted[id] {
			continue
		}
		rq := r.current(d, hdr(id, domain.ColReportQuality), domain.ReportQualityPassed)
		loc := r.current(d, hdr(id, domain.ColLocationQuality), domain.LocationQualityPassed)
		tm := r.current(d, hdr(id, domain.ColReportTimeQuality), domain.TimeQualityPassed)
		if derived := domain.DeriveReportQuality(rq, loc, tm); derived != rq {
			d.Set(hdr(id, domain.ColReportQuality), derived, checkDerived)
		}
	}

	missing := map[Cell]bool{}
	for _, t := range r.p.Observations {
		if err := r.observationRows(d, t, missing); err != nil {
			return nil, err
		}
	}
	for _, bc := range r.bound.combined {
		if err := r.combinedRows(d, bc, missing); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (r *run) headerRows(d *Delta) error {
	h := r.p.Header
	for _, bc := range r.bound.header {
		column, code := domain.ColLocationQuality, domain.LocationCode
		skip := domain.LocationQualityFailed
		if bc.target == TargetTime {
			column, code = domain.ColReportTimeQuality, domain.TimeCode
			skip = domain.TimeQualityFailed
		}
		var rows []Row
		for i := range h.Rows {
			id := h.ReportID(i)
			if r.blacklisted[id] || r.snap.CodeOr(hdr(id, column), 0) == skip {
				continue
			}
			if row, ok := bc.b.row(id); ok {
				rows = append(rows, row)
			}
		}
		outs, err := r.evalRows(bc.check, rows)
		if err != nil {
			err = r.failed(domain.HeaderTable, bc.check, err, func() {
				for _, row := range rows {
					d.Set(hdr(row.ID, column), code(domain.Untestable), bc.name)
				}
			})
			if err != nil {
				return err
			}
			continue
		}
		for k, o := range outs {
			r.count(domain.HeaderTable, bc.check, o)
			d.Set(hdr(rows[k].ID, column), code(o), bc.name)
		}
	}
	return nil
}

// evalRows applies a row check to every row, recovering a panic.
func (r *run) evalRows(ch *check, rows []Row) ([]domain.Outcome, error) {
	outs := make([]domain.Outcome, len(rows))
	err := guard(func() error {
		for k, row := range rows {
			outs[k] = ch.row(row)
		}
		return nil
	})
	return outs, err
}

func (r *run) observationEligible(d *Delta, table, id string) bool {
	return !r.blacklisted[id] &&
		r.current(d, flagCell(table, id), 0) != domain.FlagCode(domain.Failed) &&
		!r.headerFailed(d, id)
}

func (r *run) observationRows(d *Delta, t *domain.Table, missing map[Cell]bool) error {
	var checks []boundCheck
	for _, bt := range r.bound.tables {
		if bt.table == t.Name {
			checks = bt.checks
		}
	}
	var ids []string
	for i := range t.Rows {
		id := t.ReportID(i)
		if !r.observationEligible(d, t.Name, id) {
			continue
		}
		if r.e.plan.missingValues && t.HasColumn(domain.ColObservationValue) &&
			domain.IsMissing(t.Cell(i, domain.ColObservationValue)) {
			c := flagCell(t.Name, id)
			missing[c] = true
			d.Set(c, domain.QualityFlagMissing, checkMissing)
			continue
		}
		ids = append(ids, id)
	}
	if len(checks) == 0 {
		return nil
	}

	results := make(map[string][]domain.Outcome, len(ids))
	first := make(map[string]map[domain.Outcome]string, len(ids))
	for _, bc := range checks {
		var rows []Row
		for _, id := range ids {
			if row, ok := bc.b.row(id); ok {
				rows = append(rows, row)
			}
		}
		outs, err := r.evalRows(bc.check, rows)
		if err != nil {
			err = r.failed(t.Name, bc.check, err, func() {
				for _, row := range rows {
					d.Set(flagCell(t.Name, row.ID), domain.FlagCode(domain.Untestable), bc.name)
				}
			})
			if err != nil {
				return err
			}
			continue
		}
		for k, o := range outs {
			id := rows[k].ID
			r.count(t.Name, bc.check, o)
			results[id] = append(results[id], o)
			if first[id] == nil {
				first[id] = map[domain.Outcome]string{}
			}
			if _, ok := first[id][o]; !ok {
				first[id][o] = bc.name
			}
		}
	}
	for _, id := range ids {
		outs, ok := results[id]
		if !ok {
			continue
		}
		o := domain.CombineOutcomes(outs...)
		d.Set(flagCell(t.Name, id), domain.FlagCode(o), first[id][o])
	}
	return nil
}

// combinedRows runs a check reading several observation tables on the reports
// eligible in all of them. A failure is written to every table involved.
func (r *run) combinedRows(d *Delta, bc boundCheck, missing map[Cell]bool) error {
	tables := bc.b.tableNames()
	if len(tables) == 0 {
		return nil
	}
	lead, _ := r.p.Table(tables[0])
	var rows []Row
	for i := range lead.Rows {
		id := lead.ReportID(i)
		ok := true
		for _, name := range tables {
			if missing[flagCell(name, id)] || !r.observationEligible(d, name, id) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if row, found := bc.b.row(id); found {
			rows = append(rows, row)
		}
	}
	label := "combined"
	outs, err := r.evalRows(bc.check, rows)
	if err != nil {
		return r.failed(label, bc.check, err, func() {
			for _, row := range rows {
				for _, name := range tables {
					d.Set(flagCell(name, row.ID), domain.FlagCode(domain.Untestable), bc.name)
				}
			}
		})
	}
	for k, o := range outs {
		r.count(label, bc.check, o)
		if o != domain.Failed {
			continue
		}
		for _, name := range tables {
			d.Set(flagCell(name, rows[k].ID), domain.FlagCode(domain.Failed), bc.name)
		}
	}
	return nil
}

// tracks groups ids by the header's platform id. Groups come back in
// platform order and each keeps table order.
func (r *run) tracks(ids []string) [][]string {
	h := r.p.Header
	groups := map[string][]string{}
	for _, id := range ids {
		i, _ := h.Lookup(id)
		psid := h.Cell(i, domain.ColPrimaryStationID)
		groups[psid] = append(groups[psid], id)
	}
	out := make([][]string, 0, len(groups))
	for _, k := range slices.Sorted(maps.Keys(groups)) {
		out = append(out, groups[k])
	}
	return out
}

// byTime sorts rows on their date input. Rows without one go last, where the
// track checks see them as incomplete.
func byTime(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		ta, oka := a.Time(inDate)
		tb, okb := b.Time(inDate)
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return 1
		case !okb:
			return -1
		}
		return ta.Compare(tb)
	})
}

// evalTrack runs a track check, recovering a panic and checking the result
// length.
func evalTrack(ch *check, rows []Row) ([]domain.Outcome, error) {
	var outs []domain.Outcome
	err := guard(func() error {
		var err error
		outs, err = ch.track(rows)
		return err
	})
	if err == nil && len(outs) != len(rows) {
		err = errLength(len(outs), len(rows))
	}
	return outs, err
}

// sequential runs the track checks: first on the header, where a failure
// marks the position bad, then per observation table grouped by the
// header's platform id.
func (r *run) sequential() (*Delta, error) {
	d := NewDelta(StageSequential)
	h := r.p.Header
	var ids []string
	for i := range h.Rows {
		id := h.ReportID(i)
		if r.blacklisted[id] || r.generic[id] || r.headerFailed(d, id) {
			continue
		}
		ids = append(ids, id)
	}
	groups := r.tracks(ids)
	for _, bc := range r.bound.seqHeader {
		for _, g := range groups {
			rows := rowsFor(bc.b, g)
			byTime(rows)
			outs, err := evalTrack(bc.check, rows)
			if err != nil {
				err = r.failed(domain.HeaderTable, bc.check, err, func() {
					for _, row := range rows {
						d.Set(hdr(row.ID, domain.ColLocationQuality), domain.LocationQualityUntestable, bc.name)
					}
				})
				if err != nil {
					return nil, err
				}
				continue
			}
			for k, o := range outs {
				r.count(domain.HeaderTable, bc.check, o)
				if o == domain.Failed {
					d.Set(hdr(rows[k].ID, domain.ColLocationQuality), domain.LocationQualityFailed, bc.name)
					d.Set(hdr(rows[k].ID, domain.ColReportQuality), domain.ReportQualityFailed, bc.name)
				}
			}
		}
	}

	for _, bt := range r.bound.seqTables {
		t, _ := r.p.Table(bt.table)
		var ids []string
		for i := range t.Rows {
			id := t.ReportID(i)
			flag := r.current(d, flagCell(t.Name, id), 0)
			if r.blacklisted[id] || r.generic[id] || r.headerFailed(d, id) ||
				flag == domain.FlagCode(domain.Failed) || flag == domain.QualityFlagMissing {
				continue
			}
			ids = append(ids, id)
		}
		groups := r.tracks(ids)
		for _, bc := range bt.checks {
			for _, g := range groups {
				if err := r.trackRows(d, t.Name, bc, rowsFor(bc.b, g)); err != nil {
					return nil, err
				}
			}
		}
	}
	return d, nil
}

func (r *run) trackRows(d *Delta, table string, bc boundCheck, rows []Row) error {
	byTime(rows)
	outs, err := evalTrack(bc.check, rows)
	if err != nil {
		return r.failed(table, bc.check, err, func() {
			for _, row := range rows {
				d.Set(flagCell(table, row.ID), domain.FlagCode(domain.Untestable), bc.name)
			}
		})
	}
	for k, o := range outs {
		r.count(table, bc.check, o)
		if o == domain.Failed {
			d.Set(flagCell(table, rows[k].ID), domain.FlagCode(domain.Failed), bc.name)
		}
	}
	return nil
}

func rowsFor(b *binding, ids []string) []Row {
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		if row, ok := b.row(id); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// grouped runs the buddy checks per observation table over rows that have
// passed so far. Reference rows are neighbours only.
func (r *run) grouped() (*Delta, error) {
	d := NewDelta(StageGrouped)
	for _, bt := range r.bound.grouped {
		t, _ := r.p.Table(bt.table)
		var ids []string
		for i := range t.Rows {
			id := t.ReportID(i)
			if r.blacklisted[id] || r.headerFailed(d, id) || r.current(d, flagCell(t.Name, id), 0) != 0 {
				continue
			}
			ids = append(ids, id)
		}
		for _, bc := range bt.checks {
			rows := rowsFor(bc.b, ids)
			var reference []Row
			if bc.ref != nil {
				reference = referenceRows(bc.ref, bt.table)
			}
			var outs []domain.Outcome
			err := guard(func() error {
				var err error
				outs, err = bc.group(rows, reference)
				return err
			})
			if err == nil && len(outs) != len(rows) {
				err = errLength(len(outs), len(rows))
			}
			if err != nil {
				err = r.failed(t.Name, bc.check, err, func() {
					for _, row := range rows {
						d.Set(flagCell(t.Name, row.ID), domain.FlagCode(domain.Untestable), bc.name)
					}
				})
				if err != nil {
					return nil, err
				}
				continue
			}
			for k, o := range outs {
				r.count(t.Name, bc.check, o)
				if o == domain.Failed || o == domain.Untestable {
					d.Set(flagCell(t.Name, rows[k].ID), domain.FlagCode(o), bc.name)
				}
			}
		}
	}
	return d, nil
}

// referenceRows returns the rows of the reference table that have not been
// flagged.
func referenceRows(b *binding, table string) []Row {
	var t *domain.Table
	for _, bt := range b.tables {
		if bt.Name == table {
			t = bt
		}
	}
	if t == nil {
		return nil
	}
	var rows []Row
	for i := range t.Rows {
		if flag, ok := t.Int(i, domain.ColQualityFlag); ok && flag != 0 {
			continue
		}
		if row, ok := b.row(t.ReportID(i)); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func errLength(got, want int) error {
	return fmt.Errorf("check returned %d outcomes for %d rows", got, want)
}
