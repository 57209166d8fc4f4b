package algebra

import (
	"fmt"
	"strings"

	"github.com/roach88/polycat/internal/ir"
)

// Explain renders a tree as indented text, one node per line.
// Output is deterministic: map-valued attributes render in canonical order.
func Explain(n Node) string {
	var b strings.Builder
	explain(&b, n, 0)
	return b.String()
}

func explain(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	if n == nil {
		b.WriteString("<nil>\n")
		return
	}
	b.WriteString(string(n.Kind()))
	if attrs := describe(n); attrs != "" {
		b.WriteString("[" + attrs + "]")
	}
	b.WriteByte('\n')
	for _, in := range n.Inputs() {
		explain(b, in, depth+1)
	}
}

func describe(n Node) string {
	switch node := n.(type) {
	case *RelScan:
		s := fmt.Sprintf("table=%s id=%d alloc=%d", qualified(node.Entity), node.Entity.TableID, node.Entity.AllocationID)
		if node.As != "" {
			s += " as=" + node.As
		}
		return s
	case *RelFilter:
		return "condition=" + FormatPredicate(node.Condition)
	case *DocFilter:
		return "condition=" + FormatPredicate(node.Condition)
	case *RelProject:
		items := make([]string, len(node.Items))
		for i, item := range node.Items {
			items[i] = item.Column.String()
			if item.As != "" && item.As != item.Column.Name {
				items[i] += " AS " + item.As
			}
		}
		return "columns=" + strings.Join(items, ", ")
	case *RelJoin:
		return "condition=" + FormatPredicate(node.Condition)
	case *RelSort:
		return describeSort(&node.SortCore)
	case *DocSort:
		return describeSort(&node.SortCore)
	case *GraphSort:
		return describeSort(&node.SortCore)
	case *RelValues:
		var cols []string
		if node.Type != nil {
			cols = node.Type.FieldNames()
		}
		return fmt.Sprintf("columns=%s rows=%d", strings.Join(cols, ", "), len(node.Rows))
	case *RelModify:
		s := fmt.Sprintf("op=%s table=%s", node.Op, qualified(node.Entity))
		if len(node.Updates) > 0 {
			sets := make([]string, len(node.Updates))
			for i, a := range node.Updates {
				sets[i] = a.Column + "=" + FormatExpr(a.Value)
			}
			s += " set=" + strings.Join(sets, ", ")
		}
		return s
	case *RelCollect:
		return fmt.Sprintf("parts=%d", len(node.Parts))
	case *DocScan:
		return fmt.Sprintf("collection=%s alloc=%d", qualified(node.Entity), node.Entity.AllocationID)
	case *DocValues:
		return fmt.Sprintf("documents=%d", len(node.Documents))
	case *DocModify:
		return fmt.Sprintf("op=%s collection=%s", node.Op, qualified(node.Entity))
	case *GraphScan:
		return fmt.Sprintf("graph=%s alloc=%d", qualified(node.Entity), node.Entity.AllocationID)
	case *GraphMatch:
		return "pattern=" + FormatPattern(node.Pattern)
	case *GraphValues:
		return fmt.Sprintf("nodes=%d edges=%d", len(node.Nodes), len(node.Edges))
	case *GraphModify:
		return fmt.Sprintf("op=%s graph=%s", node.Op, qualified(node.Entity))
	case *Transformer:
		return "out=" + string(node.Out)
	default:
		return ""
	}
}

func qualified(e EntityRef) string {
	if e.Namespace == "" {
		return e.Name
	}
	return e.Namespace + "." + e.Name
}

func describeSort(s *SortCore) string {
	var parts []string
	if len(s.Collation) > 0 {
		keys := make([]string, len(s.Collation))
		for i, c := range s.Collation {
			keys[i] = formatCollation(c)
		}
		parts = append(parts, "collation="+strings.Join(keys, ", "))
	}
	if s.Offset != nil {
		parts = append(parts, "offset="+FormatExpr(s.Offset))
	}
	if s.Limit != nil {
		parts = append(parts, "limit="+FormatExpr(s.Limit))
	}
	return strings.Join(parts, " ")
}

func formatCollation(c FieldCollation) string {
	dir := c.Direction
	if dir == "" {
		dir = Ascending
	}
	key := c.Column.String()
	if len(c.Path) > 0 {
		key += "->" + strings.Join(c.Path, ".")
	}
	return key + " " + string(dir)
}

// FormatExpr renders an expression. Literals use canonical JSON.
func FormatExpr(e Expr) string {
	switch expr := e.(type) {
	case nil:
		return "<nil>"
	case Literal:
		return formatValue(expr.Value)
	case ColumnRef:
		return expr.String()
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

// FormatPredicate renders a predicate. A nil predicate renders as "true".
func FormatPredicate(p Predicate) string {
	switch pred := p.(type) {
	case nil:
		return "true"
	case *Equals:
		return pred.Column.String() + " = " + formatValue(pred.Value)
	case *ColumnEquals:
		return pred.Left.String() + " = " + pred.Right.String()
	case *BoundEquals:
		return pred.Column.String() + " = :" + pred.Param
	case *In:
		vals := make([]string, len(pred.Values))
		for i, v := range pred.Values {
			vals[i] = formatValue(v)
		}
		return pred.Column.String() + " IN (" + strings.Join(vals, ", ") + ")"
	case *PayloadEquals:
		return pred.Column.String() + "->" + strings.Join(pred.Path, ".") + " = " + formatValue(pred.Value)
	case *FieldEquals:
		return strings.Join(pred.Path, ".") + " = " + formatValue(pred.Value)
	case *And:
		parts := make([]string, len(pred.Predicates))
		for i, sub := range pred.Predicates {
			parts[i] = FormatPredicate(sub)
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	default:
		return fmt.Sprintf("<%T>", p)
	}
}

// FormatPattern renders a path pattern in arrow notation.
func FormatPattern(p PathPattern) string {
	s := formatElement("(", ")", p.Source.Variable, p.Source.Label, p.Source.Properties)
	if p.Edge != nil && p.Target != nil {
		s += "-" + formatElement("[", "]", p.Edge.Variable, p.Edge.Label, p.Edge.Properties) + "->"
		s += formatElement("(", ")", p.Target.Variable, p.Target.Label, p.Target.Properties)
	}
	return s
}

func formatElement(open, end, variable, label string, props ir.IRObject) string {
	s := open + variable
	if label != "" {
		s += ":" + label
	}
	if len(props) > 0 {
		s += " " + formatValue(props)
	}
	return s + end
}

func formatValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
