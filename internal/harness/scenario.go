package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a catalog scenario: a schema, the steps applied to one
// adapter and the assertions checked afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE file or package directory to compile.
	// LoadScenario resolves it relative to the scenario file.
	Schema string `yaml:"schema"`

	// Adapter is the adapter id the steps run on. Zero means 1.
	Adapter int64 `yaml:"adapter,omitempty"`

	// Native lists models the adapter scans natively.
	Native []string `yaml:"native,omitempty"`

	// Codec selects the document payload encoding (json or bson).
	Codec string `yaml:"codec,omitempty"`

	// Token is an optional fixed activation token.
	Token string `yaml:"token,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation applied to the adapter.
type Step struct {
	// Op is one of the Op constants.
	Op string `yaml:"op"`

	// Allocation is the allocation the operation concerns.
	Allocation int64 `yaml:"allocation,omitempty"`

	// Table is the physical table id of column operations.
	Table int64 `yaml:"table,omitempty"`

	// Column is the logical column of add_column and update_column_type.
	Column *ColumnSpec `yaml:"column,omitempty"`

	// Documents are written by document insert, update and delete.
	Documents []map[string]any `yaml:"documents,omitempty"`

	// Nodes and Edges are written by graph insert, update and delete.
	Nodes []NodeSpec `yaml:"nodes,omitempty"`
	Edges []EdgeSpec `yaml:"edges,omitempty"`

	// Expect overrides the default expectation that the step succeeds.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ColumnSpec is a logical column declared inline.
type ColumnSpec struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Length   int    `yaml:"length,omitempty"`
	Scale    int    `yaml:"scale,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Position int    `yaml:"position,omitempty"`
}

// NodeSpec is a literal graph node.
type NodeSpec struct {
	ID         string         `yaml:"id"`
	Label      string         `yaml:"label,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// EdgeSpec is a literal graph edge.
type EdgeSpec struct {
	ID         string         `yaml:"id"`
	Label      string         `yaml:"label,omitempty"`
	Source     string         `yaml:"source"`
	Target     string         `yaml:"target"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Expect specifies how a step must end.
type Expect struct {
	// Error is the catalog error code the step must fail with
	// (NOT_FOUND, UNSUPPORTED_CAPABILITY or INVARIANT_VIOLATION).
	Error string `yaml:"error"`
}

// Assertion validates the state after all steps ran.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Names are the expected physical table names (tables).
	Names []string `yaml:"names,omitempty"`

	// Table is the physical table name (columns, row_count).
	Table string `yaml:"table,omitempty"`

	// Columns are the expected column names (columns).
	Columns []string `yaml:"columns,omitempty"`

	// Step is the index of the lower step (statements).
	Step int `yaml:"step,omitempty"`

	// Count is the expected row count (row_count) or statement count
	// (statements).
	Count int `yaml:"count"`

	// Contains are SQL fragments that must appear in some statement
	// (statements).
	Contains []string `yaml:"contains,omitempty"`
}

// Step operations.
const (
	OpPlace            = "place"
	OpDrop             = "drop"
	OpAddColumn        = "add_column"
	OpUpdateColumnType = "update_column_type"
	OpInsert           = "insert"
	OpUpdate           = "update"
	OpDelete           = "delete"
	OpLower            = "lower"
	OpPersist          = "persist"
)

// Assertion type constants.
const (
	AssertTables     = "tables"
	AssertColumns    = "columns"
	AssertRowCount   = "row_count"
	AssertStatements = "statements"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the schema path relative to the scenario BEFORE validation
	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema not found: %s", s.Schema)
	}

	if s.Adapter < 0 {
		return fmt.Errorf("adapter must be positive, got %d", s.Adapter)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpPlace, OpDrop, OpLower:
		if st.Allocation == 0 {
			return fmt.Errorf("steps[%d]: allocation is required for %s", index, st.Op)
		}
	case OpAddColumn, OpUpdateColumnType:
		if st.Table == 0 {
			return fmt.Errorf("steps[%d]: table is required for %s", index, st.Op)
		}
		if st.Column == nil {
			return fmt.Errorf("steps[%d]: column is required for %s", index, st.Op)
		}
	case OpInsert, OpUpdate, OpDelete:
		if st.Allocation == 0 {
			return fmt.Errorf("steps[%d]: allocation is required for %s", index, st.Op)
		}
		if len(st.Documents) == 0 && len(st.Nodes) == 0 && len(st.Edges) == 0 {
			return fmt.Errorf("steps[%d]: documents, nodes or edges are required for %s", index, st.Op)
		}
		if len(st.Documents) > 0 && len(st.Nodes)+len(st.Edges) > 0 {
			return fmt.Errorf("steps[%d]: documents cannot be mixed with nodes or edges", index)
		}
	case OpPersist:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if st.Expect != nil && st.Expect.Error == "" {
		return fmt.Errorf("steps[%d].expect: error is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTables:
	case AssertColumns:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for columns", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertStatements:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d is out of range", index, a.Step)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
