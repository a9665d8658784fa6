package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/marine-qc/internal/climatology"
	"github.com/couchcryptid/marine-qc/internal/config"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

var (
	// ErrUnknownCheck is returned for a func name missing from the registry.
	ErrUnknownCheck = errors.New("unknown check function")
	// ErrUnknownColumn is returned when a check input names a column the
	// partition does not carry.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnknownInput is returned for an input name the check does not take.
	ErrUnknownInput = errors.New("unknown input name")
	// ErrMissingInput is returned when a required input has no column.
	ErrMissingInput = errors.New("missing input name")
	// ErrUnknownTable is returned for a reference to an undeclared table.
	ErrUnknownTable = errors.New("undeclared table")
	// ErrUnknownClimatology is returned for a climatology name missing from
	// the climatologies section.
	ErrUnknownClimatology = errors.New("unknown climatology")
	// ErrWrongStage is returned when a check is configured in a stage it
	// cannot run in.
	ErrWrongStage = errors.New("check not valid in this stage")
	// ErrCombinedSequential is returned for a track check reading columns of
	// more than one table. Combined track semantics are undefined.
	ErrCombinedSequential = errors.New("combined sequential checks are not supported")
	// ErrInvalidArguments is returned for keyword arguments a check rejects.
	ErrInvalidArguments = errors.New("invalid check arguments")
)

// RowCheck evaluates one report.
type RowCheck func(r Row) domain.Outcome

// TrackCheck evaluates the time-ordered reports of one platform and returns
// one outcome per row.
type TrackCheck func(rows []Row) ([]domain.Outcome, error)

// GroupCheck evaluates rows against their neighbours. Reference rows serve
// only as neighbours; one outcome is returned per row.
type GroupCheck func(rows, reference []Row) ([]domain.Outcome, error)

// Target is the header column a header row check writes.
type Target int

const (
	TargetNone Target = iota
	TargetLocation
	TargetTime
)

func parseTarget(s string) (Target, bool) {
	switch s {
	case "location":
		return TargetLocation, true
	case "time":
		return TargetTime, true
	}
	return TargetNone, false
}

// Env resolves the climatologies checks refer to by name.
type Env interface {
	Climatology(name string) (*climatology.Field, error)
}

// Args holds the keyword arguments of one configured check.
type Args struct {
	node *yaml.Node
}

// Decode decodes the arguments into v, which should hold the defaults.
// Unknown keys are an error.
func (a Args) Decode(v any) error {
	if a.node == nil || a.node.Kind == 0 {
		return nil
	}
	raw, err := yaml.Marshal(a.node)
	if err != nil {
		return err
	}
	if err := config.DecodeYAML(bytes.NewReader(raw), v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

// Definition describes one registered check. Exactly one of Row, Track and
// Group is set; it builds the check from its arguments at compile time.
type Definition struct {
	Inputs   []string
	Optional []string
	// Target is the header column a row check writes by default.
	Target Target

	Row   func(Args, Env) (RowCheck, error)
	Track func(Args, Env) (TrackCheck, error)
	Group func(Args, Env) (GroupCheck, error)
}

func (d Definition) takes(input string) bool {
	return slices.Contains(d.Inputs, input) || slices.Contains(d.Optional, input)
}

// Registry maps func names to check definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry returns a registry holding every built-in check.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, defs := range []map[string]Definition{rowChecks(), trackChecks(), groupChecks()} {
		for name, d := range defs {
			if err := r.Register(name, d); err != nil {
				panic(err)
			}
		}
	}
	return r
}

// Register adds a definition. Names are unique.
func (r *Registry) Register(name string, d Definition) error {
	set := 0
	for _, f := range []bool{d.Row != nil, d.Track != nil, d.Group != nil} {
		if f {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("register %s: exactly one of Row, Track or Group must be set", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[name]; dup {
		return fmt.Errorf("register %s: already registered", name)
	}
	r.defs[name] = d
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Names lists the registered checks in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
