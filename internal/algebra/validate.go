package algebra

import (
	"fmt"
	"strings"

	"github.com/roach88/polycat/internal/ir"
)

// ValidationError lists every structural problem found in a tree.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid algebra tree: " + strings.Join(e.Problems, "; ")
}

// Validate checks a tree for structural problems: missing inputs, column
// references that do not resolve, negative or non-integer offsets and
// limits, malformed patterns and empty collections.
//
// Validate is pure. It returns nil or a *ValidationError.
func Validate(n Node) error {
	v := &validator{}
	v.visit(n)
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) visit(n Node) {
	if n == nil {
		v.addProblem("nil node")
		return
	}

	switch node := n.(type) {
	case *RelScan:
		if node.Entity.RowType == nil {
			v.addProblem("rel_scan of %q has no row type", node.Entity.Name)
		}
	case *RelFilter:
		v.requireInput(node, node.Input)
		v.checkPredicate(node.Input, node.Condition)
	case *RelProject:
		v.requireInput(node, node.Input)
		if len(node.Items) == 0 {
			v.addProblem("rel_project selects no columns")
		}
		for _, item := range node.Items {
			v.checkColumn(node.Input, item.Column)
		}
	case *RelJoin:
		v.requireInput(node, node.Left)
		v.requireInput(node, node.Right)
		if node.Left != nil && node.Right != nil {
			v.checkPredicate(node, node.Condition)
		}
	case *RelSort:
		v.checkSort(node, &node.SortCore, true)
	case *DocSort:
		v.checkSort(node, &node.SortCore, false)
	case *GraphSort:
		v.checkSort(node, &node.SortCore, true)
	case *RelValues:
		if node.Type == nil {
			v.addProblem("rel_values has no row type")
			break
		}
		for i, row := range node.Rows {
			if len(row) != node.Type.FieldCount() {
				v.addProblem("rel_values row %d has %d values, want %d", i, len(row), node.Type.FieldCount())
			}
		}
	case *RelModify:
		v.checkModify(node, node.Op, node.Input)
		if node.Op == OpUpdate {
			if _, isValues := node.Input.(*RelValues); !isValues && len(node.Updates) == 0 {
				v.addProblem("rel_modify update of %q has no assignments", node.Entity.Name)
			}
		}
	case *RelCollect:
		if len(node.Parts) == 0 {
			v.addProblem("rel_collect has no parts")
		}
	case *DocScan, *GraphScan, *DocValues, *GraphValues:
	case *DocFilter:
		v.requireInput(node, node.Input)
		if node.Condition == nil {
			v.addProblem("doc_filter has no condition")
		}
	case *DocModify:
		v.checkModify(node, node.Op, node.Input)
	case *GraphModify:
		v.checkModify(node, node.Op, node.Input)
		if node.Input != nil {
			if _, isValues := node.Input.(*GraphValues); !isValues {
				v.addProblem("graph_modify input must be graph_values, got %s", node.Input.Kind())
			}
		}
	case *GraphMatch:
		v.requireInput(node, node.Input)
		v.checkPattern(node.Pattern)
	case *Transformer:
		if !node.Out.Valid() {
			v.addProblem("transformer has unknown output model %q", node.Out)
		}
		if len(node.In) == 0 {
			v.addProblem("transformer has no inputs")
		}
	default:
		v.addProblem("unknown node type %T", n)
		return
	}

	for _, in := range n.Inputs() {
		if in != nil {
			v.visit(in)
		}
	}
}

func (v *validator) requireInput(n Node, in Node) {
	if in == nil {
		v.addProblem("%s has nil input", n.Kind())
	}
}

func (v *validator) checkColumn(scope Node, ref ColumnRef) {
	if scope == nil {
		return
	}
	if _, ok := Lookup(scope, ref); !ok {
		v.addProblem("column %q does not resolve", ref.String())
	}
}

func (v *validator) checkPredicate(scope Node, p Predicate) {
	for _, c := range Conjuncts(p) {
		switch pred := c.(type) {
		case *Equals:
			v.checkColumn(scope, pred.Column)
		case *ColumnEquals:
			v.checkColumn(scope, pred.Left)
			v.checkColumn(scope, pred.Right)
		case *BoundEquals:
			v.checkColumn(scope, pred.Column)
		case *In:
			v.checkColumn(scope, pred.Column)
			if len(pred.Values) == 0 {
				v.addProblem("IN on %q has no values", pred.Column.String())
			}
		case *PayloadEquals:
			v.checkColumn(scope, pred.Column)
			if len(pred.Path) == 0 {
				v.addProblem("payload comparison on %q has empty path", pred.Column.String())
			}
		case *FieldEquals:
			v.addProblem("document predicate in relational filter")
		default:
			v.addProblem("unknown predicate type %T", c)
		}
	}
}

func (v *validator) checkSort(n Node, s *SortCore, resolve bool) {
	v.requireInput(n, s.Input)
	if resolve && s.Input != nil {
		for _, c := range s.Collation {
			v.checkColumn(s.Input, c.Column)
		}
	}
	v.checkCount(n, "offset", s.Offset)
	v.checkCount(n, "limit", s.Limit)
}

func (v *validator) checkCount(n Node, name string, e Expr) {
	if e == nil {
		return
	}
	lit, ok := e.(Literal)
	if !ok {
		v.addProblem("%s %s must be a literal", n.Kind(), name)
		return
	}
	i, ok := lit.Value.(ir.IRInt)
	if !ok {
		v.addProblem("%s %s must be an integer, got %T", n.Kind(), name, lit.Value)
		return
	}
	if i < 0 {
		v.addProblem("%s %s is negative: %d", n.Kind(), name, i)
	}
}

func (v *validator) checkModify(n Node, op Operation, in Node) {
	if !op.Valid() {
		v.addProblem("%s has unknown operation %q", n.Kind(), op)
	}
	v.requireInput(n, in)
}

func (v *validator) checkPattern(p PathPattern) {
	if (p.Edge == nil) != (p.Target == nil) {
		v.addProblem("graph_match path needs both an edge and a target node")
	}
	if p.Edge != nil && p.Edge.Variable != "" {
		if p.Edge.Variable == p.Source.Variable || (p.Target != nil && p.Edge.Variable == p.Target.Variable) {
			v.addProblem("graph_match variable %q binds both a node and an edge", p.Edge.Variable)
		}
	}
}
