package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

// errTableAbsent marks a check whose table the partition does not carry.
// Such checks are skipped, not reported.
var errTableAbsent = errors.New("table not in partition")

// boundCheck is a compiled check resolved against one partition.
type boundCheck struct {
	*check
	b   *binding
	ref *binding // reference rows for grouped checks
}

type boundTable struct {
	table  string
	checks []boundCheck
}

// bound holds every check of a plan resolved against one partition.
type bound struct {
	header    []boundCheck
	tables    []boundTable
	combined  []boundCheck
	seqHeader []boundCheck
	seqTables []boundTable
	grouped   []boundTable
}

// bind resolves a check's input names to columns of p. Bare column names
// belong to table. Every unknown column is reported.
func bind(p *domain.Partition, table string, ch *check, ops map[string]map[string]Op) (*binding, error) {
	b := &binding{cols: make(map[string]column, len(ch.names))}
	index := map[string]int{}
	var errs []error
	for _, in := range slices.Sorted(maps.Keys(ch.names)) {
		t, col := splitColumn(ch.names[in], table)
		tbl, ok := p.Table(t)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errTableAbsent, t)
		}
		if !tbl.HasColumn(col) {
			errs = append(errs, fmt.Errorf("check %s input %q: %w %s.%s", ch.name, in, ErrUnknownColumn, t, col))
			continue
		}
		k, seen := index[t]
		if !seen {
			k = len(b.tables)
			index[t] = k
			b.tables = append(b.tables, tbl)
		}
		c := column{table: k, name: col}
		if op, ok := ops[t][col]; ok {
			c.op = &op
		}
		b.cols[in] = c
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return b, nil
}

// tableNames lists the non-header tables a binding reads.
func (b *binding) tableNames() []string {
	var names []string
	for _, t := range b.tables {
		if t.Name != domain.HeaderTable {
			names = append(names, t.Name)
		}
	}
	return names
}

// binder resolves a whole plan against one partition, collecting errors.
type binder struct {
	p, ref *domain.Partition
	plan   *Plan
	logger *slog.Logger
	errs   []error
}

func (bd *binder) one(stage Stage, table string, ch *check) (boundCheck, bool) {
	b, err := bind(bd.p, table, ch, bd.plan.prep[stage])
	if errors.Is(err, errTableAbsent) {
		bd.logger.Debug("check skipped, table not in partition", "check", ch.name, "error", err)
		return boundCheck{}, false
	}
	if err != nil {
		bd.errs = append(bd.errs, err)
		return boundCheck{}, false
	}
	return boundCheck{check: ch, b: b}, true
}

func (bd *binder) list(stage Stage, table string, checks []*check) []boundCheck {
	var out []boundCheck
	for _, ch := range checks {
		if bc, ok := bd.one(stage, table, ch); ok {
			out = append(out, bc)
		}
	}
	return out
}

func (bd *binder) tables(stage Stage, plans []tablePlan) []boundTable {
	var out []boundTable
	for _, tp := range plans {
		if _, ok := bd.p.Table(tp.table); !ok {
			bd.logger.Debug("table not in partition", "table", tp.table, "stage", stage.String())
			continue
		}
		out = append(out, boundTable{table: tp.table, checks: bd.list(stage, tp.table, tp.checks)})
	}
	return out
}

// reference binds a grouped check to the reference partition, when one is
// configured for its table.
func (bd *binder) reference(table string, bc *boundCheck) {
	r := bd.plan.reference
	if bd.ref == nil || r == nil || r.Table != table {
		return
	}
	b, err := bind(bd.ref, table, bc.check, bd.plan.prep[StageGrouped])
	if errors.Is(err, errTableAbsent) {
		bd.logger.Warn("reference data lacks table, running without it", "table", table, "check", bc.name)
		return
	}
	if err != nil {
		bd.errs = append(bd.errs, fmt.Errorf("reference: %w", err))
		return
	}
	bc.ref = b
}

// bindPlan resolves every check of plan against p before any row is read.
func bindPlan(plan *Plan, p, ref *domain.Partition, logger *slog.Logger) (*bound, error) {
	bd := &binder{p: p, ref: ref, plan: plan, logger: logger}
	out := &bound{
		header:    bd.list(StageIndividual, domain.HeaderTable, plan.header),
		tables:    bd.tables(StageIndividual, plan.tables),
		combined:  bd.list(StageIndividual, "", plan.combined),
		seqHeader: bd.list(StageSequential, domain.HeaderTable, plan.seqHeader),
		seqTables: bd.tables(StageSequential, plan.seqTables),
		grouped:   bd.tables(StageGrouped, plan.grouped),
	}
	for _, bt := range out.grouped {
		for i := range bt.checks {
			bd.reference(bt.table, &bt.checks[i])
		}
	}
	if err := errors.Join(bd.errs...); err != nil {
		return nil, fmt.Errorf("partition %s: %w", p.ID, err)
	}
	return out, nil
}
