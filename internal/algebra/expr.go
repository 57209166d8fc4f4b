package algebra

import "github.com/roach88/polycat/internal/ir"

// Expr is a scalar expression.
type Expr interface {
	expr()
}

// Literal is a constant value.
type Literal struct {
	Value ir.IRValue
}

func (Literal) expr() {}

// Int is shorthand for an integer literal.
func Int(n int64) Literal {
	return Literal{Value: ir.IRInt(n)}
}

// ColumnRef names a column. Qualifier, when set, names the scan alias the
// column belongs to.
type ColumnRef struct {
	Qualifier string
	Name      string
}

func (ColumnRef) expr() {}

// Col is shorthand for an unqualified column reference.
func Col(name string) ColumnRef {
	return ColumnRef{Name: name}
}

// QCol is shorthand for a qualified column reference.
func QCol(qualifier, name string) ColumnRef {
	return ColumnRef{Qualifier: qualifier, Name: name}
}

func (c ColumnRef) String() string {
	if c.Qualifier == "" {
		return c.Name
	}
	return c.Qualifier + "." + c.Name
}

// Predicate is a filter or join condition.
//
// Predicate types:
//   - Equals: column = literal
//   - ColumnEquals: column = column
//   - BoundEquals: column = named parameter supplied at compile time
//   - In: column IN (literals)
//   - PayloadEquals: value at path inside an encoded payload column = literal
//   - FieldEquals: document field at path = literal
//   - And: conjunction
type Predicate interface {
	predicate()
}

type Equals struct {
	Column ColumnRef
	Value  ir.IRValue
}

func (*Equals) predicate() {}

type ColumnEquals struct {
	Left  ColumnRef
	Right ColumnRef
}

func (*ColumnEquals) predicate() {}

type BoundEquals struct {
	Column ColumnRef
	Param  string
}

func (*BoundEquals) predicate() {}

type In struct {
	Column ColumnRef
	Values []ir.IRValue
}

func (*In) predicate() {}

// PayloadEquals compares a value nested inside an encoded document payload.
type PayloadEquals struct {
	Column ColumnRef
	Path   []string
	Value  ir.IRValue
}

func (*PayloadEquals) predicate() {}

// FieldEquals compares a document field. A single-element path of "_id"
// addresses the document identifier.
type FieldEquals struct {
	Path  []string
	Value ir.IRValue
}

func (*FieldEquals) predicate() {}

type And struct {
	Predicates []Predicate
}

func (*And) predicate() {}

// Conjuncts flattens nested And predicates. A nil predicate yields none.
func Conjuncts(p Predicate) []Predicate {
	switch pred := p.(type) {
	case nil:
		return nil
	case *And:
		var out []Predicate
		for _, sub := range pred.Predicates {
			out = append(out, Conjuncts(sub)...)
		}
		return out
	default:
		return []Predicate{p}
	}
}

// AndOf joins predicates, dropping nils. It returns nil for no predicates
// and the predicate itself for one.
func AndOf(preds ...Predicate) Predicate {
	var out []Predicate
	for _, p := range preds {
		out = append(out, Conjuncts(p)...)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return &And{Predicates: out}
	}
}
