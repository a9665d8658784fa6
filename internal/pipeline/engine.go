package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/couchcryptid/marine-qc/internal/domain"
	"github.com/couchcryptid/marine-qc/internal/observability"
)

// FailurePolicy decides what an error raised by a single check does to the
// partition being processed.
type FailurePolicy int

const (
	// FailFast aborts the partition on the first check error.
	FailFast FailurePolicy = iota
	// Isolate marks the rows of the failing check untestable, records the
	// error in the summary and carries on.
	Isolate
)

// ParseFailurePolicy accepts "fail_fast" and "isolate".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "fail_fast", "":
		return FailFast, nil
	case "isolate":
		return Isolate, nil
	}
	return FailFast, fmt.Errorf("unknown failure policy %q", s)
}

func (p FailurePolicy) String() string {
	if p == Isolate {
		return "isolate"
	}
	return "fail_fast"
}

// Engine runs a compiled plan over partitions. It holds no per-partition
// state and may be shared by concurrent callers.
type Engine struct {
	plan    *Plan
	policy  FailurePolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFailurePolicy sets how check errors are handled. The default is FailFast.
func WithFailurePolicy(p FailurePolicy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

// NewEngine creates an Engine for plan.
func NewEngine(plan *Plan, logger *slog.Logger, metrics *observability.Metrics, opts ...EngineOption) *Engine {
	e := &Engine{plan: plan, logger: logger, metrics: metrics}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Plan returns the plan the engine runs.
func (e *Engine) Plan() *Plan { return e.plan }

// Result is the outcome of one partition.
type Result struct {
	// Partition is a copy of the input with quality columns and history updated.
	Partition *domain.Partition
	Snapshot  *Snapshot
	Changes   []domain.FlagChange
	Summary   domain.Summary
}

// run carries the state of one Process call.
type run struct {
	e     *Engine
	p     *domain.Partition
	bound *bound
	snap  *Snapshot

	blacklisted map[string]bool
	generic     map[string]bool
	checkErrors []string
}

// Process runs stages 0 to 3 over p. p itself is not modified. ref holds
// optional reference rows for grouped checks. Configuration errors against
// the partition's columns are returned before any row is checked.
func (e *Engine) Process(ctx context.Context, p, ref *domain.Partition) (*Result, error) {
	started := domain.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := bindPlan(e.plan, p, ref, e.logger)
	if err != nil {
		return nil, err
	}
	r := &run{
		e:           e,
		p:           p,
		bound:       b,
		snap:        NewSnapshot(p),
		blacklisted: map[string]bool{},
		generic:     map[string]bool{},
	}

	stages := []struct {
		stage Stage
		fn    func() (*Delta, error)
	}{
		{StageBlacklist, r.blacklist},
		{StageIndividual, r.individual},
		{StageSequential, r.sequential},
		{StageGrouped, r.grouped},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t0 := time.Now()
		d, err := s.fn()
		if err != nil {
			return nil, fmt.Errorf("partition %s stage %s: %w", p.ID, s.stage, err)
		}
		r.snap = r.snap.Apply(d)
		e.metrics.StageDuration.WithLabelValues(s.stage.String()).Observe(time.Since(t0).Seconds())
		e.logger.Debug("stage complete", "partition", p.ID, "stage", s.stage.String(), "changes", d.Len())
	}

	res := r.finish(started)
	e.logger.Info("partition checked",
		"partition", p.ID,
		"reports", res.Summary.Reports,
		"blacklisted", res.Summary.Blacklisted,
		"changes", res.Summary.Changes,
	)
	return res, nil
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("check panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return fn()
}

// failed applies the failure policy to an error from check ch. Under Isolate
// mark is called to flag the affected rows and nil is returned.
func (r *run) failed(table string, ch *check, err error, mark func()) error {
	if r.e.policy == FailFast {
		return fmt.Errorf("check %s on %s: %w", ch.name, table, err)
	}
	r.e.logger.Error("check failed, rows marked untestable",
		"partition", r.p.ID, "table", table, "check", ch.name, "error", err)
	r.e.metrics.CheckErrors.WithLabelValues(ch.name).Inc()
	r.checkErrors = append(r.checkErrors, fmt.Sprintf("%s.%s: %v", table, ch.name, err))
	mark()
	return nil
}

func (r *run) count(table string, ch *check, o domain.Outcome) {
	r.e.metrics.Outcomes.WithLabelValues(table, ch.name, o.String()).Inc()
}

// finish writes the final snapshot and history into a copy of the partition.
func (r *run) finish(started time.Time) *Result {
	out := r.p.Clone()
	var changes []domain.FlagChange
	for _, ch := range r.snap.Changes() {
		t, _ := out.Table(ch.Table)
		i, ok := t.Lookup(ch.ReportID)
		if !ok {
			continue
		}
		from := t.Cell(i, ch.Column)
		if old, ok := t.Int(i, ch.Column); ok && old == ch.Code {
			continue
		}
		t.SetCell(i, ch.Column, domain.FormatCode(ch.Code))
		changes = append(changes, domain.FlagChange{
			Partition: r.p.ID,
			Table:     ch.Table,
			ReportID:  ch.ReportID,
			Column:    ch.Column,
			Stage:     ch.Stage.String(),
			Check:     ch.Check,
			From:      from,
			To:        ch.Code,
		})
	}

	entry := domain.HistoryEntry(r.e.plan.history)
	for i := range out.Header.Rows {
		if r.blacklisted[out.Header.ReportID(i)] {
			continue
		}
		out.Header.SetCell(i, domain.ColHistory, out.Header.Cell(i, domain.ColHistory)+entry)
	}

	sum := domain.Summary{
		Partition:   r.p.ID,
		StartedAt:   started,
		Duration:    domain.Now().Sub(started).Seconds(),
		Reports:     out.Header.Len(),
		Blacklisted: len(r.blacklisted),
		Generic:     len(r.generic),
		Changes:     len(changes),
		Tables:      map[string]domain.TableSummary{domain.HeaderTable: summarize(out.Header, domain.ColReportQuality)},
		CheckErrors: r.checkErrors,
	}
	for _, t := range out.Observations {
		sum.Tables[t.Name] = summarize(t, domain.ColQualityFlag)
	}
	return &Result{Partition: out, Snapshot: r.snap, Changes: changes, Summary: sum}
}

func summarize(t *domain.Table, column string) domain.TableSummary {
	s := domain.TableSummary{Rows: t.Len(), Codes: map[int]int{}}
	for i := range t.Rows {
		if code, ok := t.Int(i, column); ok {
			s.Codes[code]++
		}
	}
	return s
}
