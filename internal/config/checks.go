package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/marine-qc/internal/climatology"
)

// Checks is the QC check configuration read from YAML.
type Checks struct {
	// Climatologies names the gridded fields checks refer to.
	Climatologies map[string]climatology.Ref `yaml:"climatologies"`
	// History is the explanation appended to every header's history.
	History string `yaml:"history"`
	// Tables, when set, lists the observation tables checks may refer to.
	Tables []string `yaml:"tables"`
	// GenericIDs marks reports with a placeholder call sign as generic so
	// they stay out of track checks.
	GenericIDs bool       `yaml:"generic_ids"`
	Individual Individual `yaml:"individual"`
	Sequential Sequential `yaml:"sequential"`
	Grouped    Grouped    `yaml:"grouped"`
}

// Individual configures the per-report checks.
type Individual struct {
	Header        CheckList     `yaml:"header"`
	MissingValues bool          `yaml:"missing_values"`
	Observations  TableChecks   `yaml:"observations"`
	Combined      CheckList     `yaml:"combined"`
	Preprocessing Preprocessing `yaml:"preprocessing"`
}

// Sequential configures the per-platform track checks.
type Sequential struct {
	Header        CheckList     `yaml:"header"`
	Observations  TableChecks   `yaml:"observations"`
	Preprocessing Preprocessing `yaml:"preprocessing"`
}

// Grouped configures the buddy checks.
type Grouped struct {
	Observations  TableChecks   `yaml:"observations"`
	Preprocessing Preprocessing `yaml:"preprocessing"`
	Reference     *Reference    `yaml:"reference"`
}

// Reference points at external neighbour data for one table's buddy checks.
type Reference struct {
	Table string `yaml:"table"`
	Path  string `yaml:"path"`
}

// Preprocess is an arithmetic operation applied to a column before checking.
type Preprocess struct {
	Op      string  `yaml:"op"`
	Operand float64 `yaml:"operand"`
}

// Preprocessing maps table -> column -> operation.
type Preprocessing map[string]map[string]Preprocess

// CheckSpec configures one check: the registered function, which column
// feeds each of its inputs, and its keyword arguments. A column may be
// qualified with its table as "table.column".
type CheckSpec struct {
	Func      string            `yaml:"func"`
	Names     map[string]string `yaml:"names"`
	Arguments yaml.Node         `yaml:"arguments"`
	// Target picks the header column a header check writes: "location" or
	// "time". Position and time checks default to their own column.
	Target string `yaml:"target"`
}

// NamedCheck is a CheckSpec under its configured name.
type NamedCheck struct {
	Name string
	CheckSpec
}

// CheckList keeps checks in file order.
type CheckList []NamedCheck

// UnmarshalYAML decodes a mapping of check name to CheckSpec.
func (l *CheckList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: checks must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		var spec CheckSpec
		if err := decodeStrict(n.Content[i+1], &spec); err != nil {
			return fmt.Errorf("check %s: %w", name, err)
		}
		*l = append(*l, NamedCheck{Name: name, CheckSpec: spec})
	}
	return nil
}

// TableCheckList is the checks configured for one table.
type TableCheckList struct {
	Table  string
	Checks CheckList
}

// TableChecks keeps tables in file order.
type TableChecks []TableCheckList

// UnmarshalYAML decodes a mapping of table name to CheckList.
func (t *TableChecks) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tables must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var checks CheckList
		if err := checks.UnmarshalYAML(n.Content[i+1]); err != nil {
			return fmt.Errorf("table %s: %w", n.Content[i].Value, err)
		}
		*t = append(*t, TableCheckList{Table: n.Content[i].Value, Checks: checks})
	}
	return nil
}

// decodeStrict decodes n rejecting unknown fields. Node.Decode does not
// honour KnownFields, so the node goes through an encode/decode cycle.
func decodeStrict(n *yaml.Node, v any) error {
	raw, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	return DecodeYAML(bytes.NewReader(raw), v)
}

// DecodeYAML decodes one document from r rejecting unknown fields. An empty
// document leaves v untouched.
func DecodeYAML(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadChecks reads the check configuration at path.
func LoadChecks(path string) (*Checks, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checks: %w", err)
	}
	defer f.Close()
	return ParseChecks(f)
}

// ParseChecks decodes a check configuration.
func ParseChecks(r io.Reader) (*Checks, error) {
	var c Checks
	if err := DecodeYAML(r, &c); err != nil {
		return nil, fmt.Errorf("decode checks: %w", err)
	}
	if c.Grouped.Reference != nil && c.Grouped.Reference.Table == "" {
		return nil, errors.New("decode checks: grouped.reference needs a table")
	}
	return &c, nil
}
