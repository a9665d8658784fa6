package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/config"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

// DefaultHistory is the history explanation used when none is configured.
const DefaultHistory = "Marine QC"

// FieldSource loads climatology fields. climatology.Store implements it.
type FieldSource interface {
	Field(ref climatology.Ref) (*climatology.Field, error)
}

// env resolves configured climatology names through a FieldSource.
type env struct {
	refs map[string]climatology.Ref
	src  FieldSource
}

func (e env) Climatology(name string) (*climatology.Field, error) {
	ref, ok := e.refs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownClimatology, name)
	}
	return e.src.Field(ref)
}

// check is one compiled check.
type check struct {
	name   string // configured name
	fn     string // registry name
	names  map[string]string
	target Target

	row   RowCheck
	track TrackCheck
	group GroupCheck
}

// tablePlan is the checks of one table in one stage.
type tablePlan struct {
	table  string
	checks []*check
}

// Plan is a validated check configuration ready to run against partitions.
type Plan struct {
	history       string
	missingValues bool
	markGeneric   bool

	header    []*check
	tables    []tablePlan
	combined  []*check
	seqHeader []*check
	seqTables []tablePlan
	grouped   []tablePlan
	reference *config.Reference

	prep map[Stage]map[string]map[string]Op
}

// Reference returns the configured reference dataset, if any.
func (p *Plan) Reference() *config.Reference { return p.reference }

// compiler accumulates every configuration error so all are reported at once.
type compiler struct {
	reg      *Registry
	env      Env
	declared map[string]bool // nil accepts any table
	errs     []error
}

func (c *compiler) fail(where string, err error) {
	c.errs = append(c.errs, fmt.Errorf("%s: %w", where, err))
}

// Compile validates cfg against reg and builds every check. Unknown
// functions, arguments or input names, bad argument values, references to
// undeclared tables and unknown climatologies are reported together.
func Compile(cfg *config.Checks, reg *Registry, fields FieldSource) (*Plan, error) {
	c := &compiler{reg: reg, env: env{refs: cfg.Climatologies, src: fields}}
	if len(cfg.Tables) > 0 {
		c.declared = map[string]bool{domain.HeaderTable: true}
		for _, t := range cfg.Tables {
			c.declared[t] = true
		}
	}
	p := &Plan{
		history:       cfg.History,
		missingValues: cfg.Individual.MissingValues,
		markGeneric:   cfg.GenericIDs,
		reference:     cfg.Grouped.Reference,
		prep:          make(map[Stage]map[string]map[string]Op),
	}
	if p.history == "" {
		p.history = DefaultHistory
	}

	p.header = c.checks("individual.header", domain.HeaderTable, cfg.Individual.Header, stageHeaderRow)
	p.tables = c.tables("individual.observations", cfg.Individual.Observations, stageRow)
	p.combined = c.checks("individual.combined", "", cfg.Individual.Combined, stageCombined)
	p.seqHeader = c.checks("sequential.header", domain.HeaderTable, cfg.Sequential.Header, stageTrack)
	p.seqTables = c.tables("sequential.observations", cfg.Sequential.Observations, stageTrack)
	p.grouped = c.tables("grouped.observations", cfg.Grouped.Observations, stageGroup)

	p.prep[StageIndividual] = c.preprocessing("individual.preprocessing", cfg.Individual.Preprocessing)
	p.prep[StageSequential] = c.preprocessing("sequential.preprocessing", cfg.Sequential.Preprocessing)
	p.prep[StageGrouped] = c.preprocessing("grouped.preprocessing", cfg.Grouped.Preprocessing)

	if ref := cfg.Grouped.Reference; ref != nil {
		if !slices.ContainsFunc(p.grouped, func(t tablePlan) bool { return t.table == ref.Table }) {
			c.fail("grouped.reference", fmt.Errorf("%w %q has no grouped checks", ErrUnknownTable, ref.Table))
		}
	}

	if err := errors.Join(c.errs...); err != nil {
		return nil, err
	}
	return p, nil
}

// checkKind says what a configuration section accepts.
type checkKind int

const (
	stageHeaderRow checkKind = iota
	stageRow
	stageCombined
	stageTrack
	stageGroup
)

func (c *compiler) tables(section string, tcs config.TableChecks, kind checkKind) []tablePlan {
	var out []tablePlan
	for _, tc := range tcs {
		where := section + "." + tc.Table
		if tc.Table == domain.HeaderTable {
			c.fail(where, fmt.Errorf("%w: header checks belong in the header section", ErrUnknownTable))
			continue
		}
		c.declare(where, tc.Table)
		out = append(out, tablePlan{table: tc.Table, checks: c.checks(where, tc.Table, tc.Checks, kind)})
	}
	return out
}

func (c *compiler) declare(where, table string) {
	if c.declared != nil && !c.declared[table] {
		c.fail(where, fmt.Errorf("%w %q", ErrUnknownTable, table))
	}
}

func (c *compiler) checks(section, table string, list config.CheckList, kind checkKind) []*check {
	var out []*check
	for _, nc := range list {
		if ch := c.compile(section+"."+nc.Name, table, nc, kind); ch != nil {
			out = append(out, ch)
		}
	}
	return out
}

func (c *compiler) compile(where, table string, nc config.NamedCheck, kind checkKind) *check {
	def, ok := c.reg.Lookup(nc.Func)
	if !ok {
		c.fail(where, fmt.Errorf("%w %q", ErrUnknownCheck, nc.Func))
		return nil
	}
	ch := &check{name: nc.Name, fn: nc.Func, names: nc.Names, target: def.Target}
	before := len(c.errs)

	for _, in := range def.Inputs {
		if _, ok := nc.Names[in]; !ok {
			c.fail(where, fmt.Errorf("%w %q", ErrMissingInput, in))
		}
	}
	tables := map[string]bool{}
	for in, col := range nc.Names {
		if !def.takes(in) {
			c.fail(where, fmt.Errorf("%w %q", ErrUnknownInput, in))
		}
		t, _ := splitColumn(col, table)
		if t == "" {
			c.fail(where, fmt.Errorf("input %q: column %q needs a table", in, col))
			continue
		}
		c.declare(where, t)
		tables[t] = true
	}

	switch kind {
	case stageHeaderRow, stageRow, stageCombined:
		if def.Row == nil {
			c.fail(where, fmt.Errorf("%w: %s is not a single-report check", ErrWrongStage, nc.Func))
			break
		}
		if kind == stageHeaderRow {
			if nc.Target != "" {
				t, ok := parseTarget(nc.Target)
				if !ok {
					c.fail(where, fmt.Errorf("%w: target %q", ErrInvalidArguments, nc.Target))
				}
				ch.target = t
			}
			if ch.target == TargetNone {
				c.fail(where, fmt.Errorf("%w: header check %s needs a target", ErrInvalidArguments, nc.Func))
			}
		}
		if kind == stageCombined && len(tables) < 2 {
			c.fail(where, fmt.Errorf("%w: combined check reads one table", ErrWrongStage))
		}
		row, err := def.Row(Args{node: &nc.Arguments}, c.env)
		if err != nil {
			c.fail(where, err)
		}
		ch.row = row
	case stageTrack:
		if def.Track == nil {
			c.fail(where, fmt.Errorf("%w: %s is not a track check", ErrWrongStage, nc.Func))
			break
		}
		if len(tables) > 1 {
			c.fail(where, ErrCombinedSequential)
		}
		tr, err := def.Track(Args{node: &nc.Arguments}, c.env)
		if err != nil {
			c.fail(where, err)
		}
		ch.track = tr
	case stageGroup:
		if def.Group == nil {
			c.fail(where, fmt.Errorf("%w: %s is not a buddy check", ErrWrongStage, nc.Func))
			break
		}
		if len(tables) > 1 {
			c.fail(where, fmt.Errorf("%w: buddy checks read one table", ErrWrongStage))
		}
		g, err := def.Group(Args{node: &nc.Arguments}, c.env)
		if err != nil {
			c.fail(where, err)
		}
		ch.group = g
	}
	if len(c.errs) > before {
		return nil
	}
	return ch
}

func (c *compiler) preprocessing(section string, pp config.Preprocessing) map[string]map[string]Op {
	out := make(map[string]map[string]Op, len(pp))
	for table, cols := range pp {
		c.declare(section+"."+table, table)
		out[table] = make(map[string]Op, len(cols))
		for col, spec := range cols {
			op, err := ParseOp(spec)
			if err != nil {
				c.fail(section+"."+table+"."+col, err)
				continue
			}
			out[table][col] = op
		}
	}
	return out
}

// splitColumn splits "table.column"; a bare column belongs to def.
func splitColumn(ref, def string) (table, column string) {
	if t, col, ok := strings.Cut(ref, "."); ok {
		return t, col
	}
	return def, ref
}
