// Command validate checks partitions written by marineqc against their
// inputs: row and column parity, untouched data columns, quality code
// domains, blacklist propagation and, when present, the flag audit CSV.
//
// Usage:
//
//	go run ./cmd/validate --input data/ --output checked/
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alexflint/go-arg"

	"github.com/couchcryptid/marine-qc/internal/adapter/psv"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

type args struct {
	Input      string   `arg:"--input,required" help:"directory holding the unchecked partitions"`
	Output     string   `arg:"--output,required" help:"directory holding the checked partitions"`
	Partitions []string `arg:"-p,--partition,separate" help:"partition id to validate; repeatable (default: all in output)"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	var a args
	arg.MustParse(&a)
	os.Exit(run(a, os.Stdout))
}

func run(a args, w io.Writer) int {
	ids := a.Partitions
	if len(ids) == 0 {
		var err error
		ids, err = psv.PartitionIDs(a.Output, "")
		if err != nil {
			fmt.Fprintf(w, "FATAL: list partitions: %v\n", err)
			return 1
		}
	}
	if len(ids) == 0 {
		fmt.Fprintf(w, "FATAL: no partitions in %s\n", a.Output)
		return 1
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	in := psv.NewReader(a.Input, nil, quiet)
	out := psv.NewReader(a.Output, nil, quiet)

	fmt.Fprintln(w, "=== Marine QC Output Validation ===")
	allPassed := true
	for _, id := range ids {
		src, err := in.Extract(context.Background(), id)
		if err != nil {
			fmt.Fprintf(w, "FATAL: %s input: %v\n", id, err)
			return 1
		}
		dst, err := out.Extract(context.Background(), id)
		if err != nil {
			fmt.Fprintf(w, "FATAL: %s output: %v\n", id, err)
			return 1
		}
		phases := []*phase{
			validateParity(src, dst),
			validateDataColumns(src, dst),
			validateCodes(dst),
			validateBlacklist(dst),
		}
		if audit := filepath.Join(a.Output, psv.AuditFile(id)); fileExists(audit) {
			phases = append(phases, validateAudit(audit, src, dst))
		}
		if !report(w, id, phases) {
			allPassed = false
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func report(w io.Writer, id string, phases []*phase) bool {
	fmt.Fprintf(w, "\nPartition %s\n", id)
	ok := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			ok = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}
	return ok
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func tables(p *domain.Partition) []*domain.Table {
	return append([]*domain.Table{p.Header}, p.Observations...)
}

// qualityColumns are the only columns a run may change, besides history.
var qualityColumns = []string{
	domain.ColReportQuality, domain.ColLocationQuality, domain.ColReportTimeQuality, domain.ColQualityFlag,
}

// ── Phases ──

func validateParity(src, dst *domain.Partition) *phase {
	p := &phase{name: "Row and column parity"}
	if !slices.Equal(src.TableNames(), dst.TableNames()) {
		p.errorf("tables: input %v, output %v", src.TableNames(), dst.TableNames())
	}
	for _, s := range tables(src) {
		d, ok := dst.Table(s.Name)
		if !ok {
			continue
		}
		if !slices.Equal(s.Columns, d.Columns) {
			p.errorf("%s: columns differ: %s vs %s", s.Name, strings.Join(s.Columns, "|"), strings.Join(d.Columns, "|"))
		}
		if s.Len() != d.Len() {
			p.errorf("%s: %d input rows, %d output rows", s.Name, s.Len(), d.Len())
		}
		for i := range s.Rows {
			if _, ok := d.Lookup(s.ReportID(i)); !ok {
				p.errorf("%s: report %s missing from output", s.Name, s.ReportID(i))
			}
		}
	}
	return p
}

func validateDataColumns(src, dst *domain.Partition) *phase {
	p := &phase{name: "Data columns untouched"}
	for _, s := range tables(src) {
		d, ok := dst.Table(s.Name)
		if !ok {
			continue
		}
		for i := range s.Rows {
			id := s.ReportID(i)
			j, ok := d.Lookup(id)
			if !ok {
				continue
			}
			for _, c := range s.Columns {
				if slices.Contains(qualityColumns, c) {
					continue
				}
				before, after := s.Cell(i, c), d.Cell(j, c)
				if c == domain.ColHistory {
					if !strings.HasPrefix(after, before) {
						p.errorf("%s %s: history %q does not extend %q", s.Name, id, after, before)
					}
					continue
				}
				if before != after {
					p.errorf("%s %s: %s changed from %q to %q", s.Name, id, c, before, after)
				}
			}
		}
	}
	return p
}

var allowedCodes = map[string][]int{
	domain.ColReportQuality:     {domain.ReportQualityPassed, domain.ReportQualityFailed, domain.ReportQualityBlacklisted},
	domain.ColLocationQuality:   {domain.LocationQualityPassed, domain.LocationQualityFailed, domain.LocationQualityUntestable},
	domain.ColReportTimeQuality: {domain.TimeQualityPassed, domain.TimeQualityUntestable, domain.TimeQualityFailed},
	domain.ColQualityFlag:       {0, 1, 2, domain.QualityFlagMissing, domain.QualityFlagBlacklisted},
}

func validateCodes(dst *domain.Partition) *phase {
	p := &phase{name: "Quality code domains"}
	for _, t := range tables(dst) {
		for _, c := range qualityColumns {
			if !t.HasColumn(c) {
				continue
			}
			for i := range t.Rows {
				if domain.IsMissing(t.Cell(i, c)) {
					continue
				}
				code, ok := t.Int(i, c)
				if !ok {
					p.errorf("%s %s: %s %q is not a code", t.Name, t.ReportID(i), c, t.Cell(i, c))
					continue
				}
				if !slices.Contains(allowedCodes[c], code) {
					p.errorf("%s %s: %s %d outside %v", t.Name, t.ReportID(i), c, code, allowedCodes[c])
				}
			}
		}
	}
	return p
}

func validateBlacklist(dst *domain.Partition) *phase {
	p := &phase{name: "Blacklist propagation"}
	for _, t := range dst.Observations {
		for i := range t.Rows {
			id := t.ReportID(i)
			h, ok := dst.Header.Lookup(id)
			if !ok {
				p.errorf("%s %s: no header row", t.Name, id)
				continue
			}
			rq, _ := dst.Header.Int(h, domain.ColReportQuality)
			flag, _ := t.Int(i, domain.ColQualityFlag)
			if (rq == domain.ReportQualityBlacklisted) != (flag == domain.QualityFlagBlacklisted) {
				p.errorf("%s %s: quality_flag %d with report_quality %d", t.Name, id, flag, rq)
			}
		}
	}
	return p
}

func validateAudit(path string, src, dst *domain.Partition) *phase {
	p := &phase{name: "Flag audit"}
	changes, err := psv.ReadAudit(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	for _, c := range changes {
		s, okS := src.Table(c.Table)
		d, okD := dst.Table(c.Table)
		if !okS || !okD {
			p.errorf("change on unknown table %s", c.Table)
			continue
		}
		i, okI := s.Lookup(c.ReportID)
		j, okJ := d.Lookup(c.ReportID)
		if !okI || !okJ {
			p.errorf("%s: change on unknown report %s", c.Table, c.ReportID)
			continue
		}
		if got := s.Cell(i, c.Column); got != c.From {
			p.errorf("%s %s: %s audit from %q, input %q", c.Table, c.ReportID, c.Column, c.From, got)
		}
		if got, _ := d.Int(j, c.Column); got != c.To {
			p.errorf("%s %s: %s audit to %d, output %d", c.Table, c.ReportID, c.Column, c.To, got)
		}
	}
	return p
}
