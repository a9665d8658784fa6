package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/marine-qc/internal/config"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

// Op is a preprocessing operation applied to an input before checking.
type Op struct {
	symbol  string
	operand float64
}

// ParseOp validates a configured operation.
func ParseOp(p config.Preprocess) (Op, error) {
	switch p.Op {
	case "+", "-", "*", "**":
	case "/", "//", "%":
		if p.Operand == 0 {
			return Op{}, fmt.Errorf("%w: %s by zero", ErrInvalidArguments, p.Op)
		}
	default:
		return Op{}, fmt.Errorf("%w: unknown preprocessing op %q", ErrInvalidArguments, p.Op)
	}
	return Op{symbol: p.Op, operand: p.Operand}, nil
}

// Apply returns v op operand. Modulo takes the sign of the operand and
// floor division rounds towards negative infinity.
func (o Op) Apply(v float64) float64 {
	x := o.operand
	switch o.symbol {
	case "+":
		return v + x
	case "-":
		return v - x
	case "*":
		return v * x
	case "/":
		return v / x
	case "//":
		return math.Floor(v / x)
	case "%":
		r := math.Mod(v, x)
		if r != 0 && (r < 0) != (x < 0) {
			r += x
		}
		return r
	case "**":
		return math.Pow(v, x)
	}
	return v
}

// column is one bound input.
type column struct {
	table int
	name  string
	op    *Op
}

// binding resolves a check's input names against the tables of one
// partition.
type binding struct {
	tables []*domain.Table
	cols   map[string]column
}

// row returns the inputs of report id, or false when a bound table lacks it.
func (b *binding) row(id string) (Row, bool) {
	idx := make([]int, len(b.tables))
	for k, t := range b.tables {
		i, ok := t.Lookup(id)
		if !ok {
			return Row{}, false
		}
		idx[k] = i
	}
	return Row{ID: id, b: b, idx: idx}, true
}

// Row gives a check the named inputs of one report.
type Row struct {
	ID  string
	b   *binding
	idx []int
}

func (r Row) cell(name string) (column, string, bool) {
	c, ok := r.b.cols[name]
	if !ok {
		return column{}, "", false
	}
	return c, r.b.tables[c.table].Cell(r.idx[c.table], c.name), true
}

// Float returns a numeric input with any preprocessing applied. Unbound or
// missing inputs are NaN.
func (r Row) Float(name string) float64 {
	c, s, ok := r.cell(name)
	if !ok {
		return math.NaN()
	}
	v := domain.ParseFloat(s)
	if c.op != nil {
		v = c.op.Apply(v)
	}
	return v
}

// Time returns a timestamp input.
func (r Row) Time(name string) (time.Time, bool) {
	_, s, ok := r.cell(name)
	if !ok {
		return time.Time{}, false
	}
	return domain.ParseTime(s)
}

// Text returns the raw text of an input.
func (r Row) Text(name string) string {
	_, s, _ := r.cell(name)
	return strings.TrimSpace(s)
}

// Has reports whether an input is bound.
func (r Row) Has(name string) bool {
	_, ok := r.b.cols[name]
	return ok
}
