package transform

import (
	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/document"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

type docLowering struct {
	coll  *catalog.PhysicalCollection
	table algebra.EntityRef
	opts  *options
}

func (l *docLowering) lower(n algebra.Node) (algebra.Node, error) {
	switch node := n.(type) {
	case *algebra.DocScan:
		if err := l.checkEntity(node.Entity); err != nil {
			return nil, err
		}
		return l.scan(), nil
	case *algebra.Transformer:
		if node.Out != ir.ModelDocument {
			return nil, catalog.NewUnsupportedError("transformer to %s inside a document tree", node.Out)
		}
		return l.scan(), nil
	case *algebra.DocFilter:
		input, err := l.lower(node.Input)
		if err != nil {
			return nil, err
		}
		cond, err := l.predicate(node.Condition)
		if err != nil {
			return nil, err
		}
		return &algebra.RelFilter{Input: input, Condition: cond}, nil
	case *algebra.DocSort:
		input, err := l.lower(node.Input)
		if err != nil {
			return nil, err
		}
		collation := make([]algebra.FieldCollation, len(node.Collation))
		for i, fc := range node.Collation {
			if fc.Column.Name == typesys.DocumentIDField && len(fc.Path) == 0 {
				collation[i] = algebra.FieldCollation{Column: algebra.Col(typesys.DocumentIDField), Direction: fc.Direction}
				continue
			}
			if !l.opts.codec.Textual() {
				return nil, catalog.NewUnsupportedError("sorting by document field %q with %s payloads", fc.Column.Name, l.opts.codec.Name())
			}
			path := append([]string{fc.Column.Name}, fc.Path...)
			collation[i] = algebra.FieldCollation{Column: algebra.Col(typesys.DocumentDataField), Path: path, Direction: fc.Direction}
		}
		return &algebra.RelSort{SortCore: sortCore(node.SortCore, input, collation)}, nil
	case *algebra.DocValues:
		return l.values(node)
	case *algebra.DocModify:
		return l.modify(node)
	case nil:
		return nil, catalog.NewInvariantError("document tree has a nil input")
	default:
		return nil, catalog.NewUnsupportedError("%s node inside a document tree", n.Kind())
	}
}

func (l *docLowering) scan() *algebra.RelScan {
	return &algebra.RelScan{Entity: l.table}
}

func (l *docLowering) checkEntity(ref algebra.EntityRef) error {
	if ref.AllocationID != l.table.AllocationID {
		return catalog.NewInvariantError("document node reads allocation %d, target is %d", ref.AllocationID, l.table.AllocationID)
	}
	return nil
}

// predicate maps _id comparisons to the id column and every other field
// to a comparison inside the payload.
func (l *docLowering) predicate(p algebra.Predicate) (algebra.Predicate, error) {
	switch pred := p.(type) {
	case nil:
		return nil, nil
	case *algebra.FieldEquals:
		if len(pred.Path) == 0 {
			return nil, catalog.NewInvariantError("document filter has an empty field path")
		}
		if len(pred.Path) == 1 && pred.Path[0] == typesys.DocumentIDField {
			return &algebra.Equals{Column: algebra.Col(typesys.DocumentIDField), Value: pred.Value}, nil
		}
		if !l.opts.codec.Textual() {
			return nil, catalog.NewUnsupportedError("filtering document field %v with %s payloads", pred.Path, l.opts.codec.Name())
		}
		return &algebra.PayloadEquals{
			Column: algebra.Col(typesys.DocumentDataField),
			Path:   append([]string(nil), pred.Path...),
			Value:  pred.Value,
		}, nil
	case *algebra.And:
		out := make([]algebra.Predicate, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			lp, err := l.predicate(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, lp)
		}
		return algebra.AndOf(out...), nil
	default:
		return nil, catalog.NewUnsupportedError("predicate %T in a document filter", p)
	}
}

// values encodes each document as one (_id, payload) row.
func (l *docLowering) values(v *algebra.DocValues) (*algebra.RelValues, error) {
	rows := make([][]ir.IRValue, 0, len(v.Documents))
	for i, doc := range v.Documents {
		withID, id := l.withID(doc)
		data, err := l.opts.codec.Encode(withID)
		if err != nil {
			return nil, catalog.NewInvariantError("encode document %d: %v", i, err)
		}
		var payload ir.IRValue = ir.IRBytes(data)
		if l.opts.codec.Textual() {
			payload = ir.IRString(data)
		}
		rows = append(rows, []ir.IRValue{ir.IRString(id), payload})
	}
	return &algebra.RelValues{Type: l.coll.Table.RowType(), Rows: rows}, nil
}

func (l *docLowering) withID(doc ir.IRObject) (ir.IRObject, string) {
	if id, ok := document.IDOf(doc); ok {
		return doc, id
	}
	out := doc.Clone()
	if out == nil {
		out = ir.IRObject{}
	}
	id := l.opts.docIDs()
	out[document.IDField] = ir.IRString(id)
	return out, id
}

func (l *docLowering) modify(m *algebra.DocModify) (algebra.Node, error) {
	if err := l.checkEntity(m.Entity); err != nil {
		return nil, err
	}
	switch m.Op {
	case algebra.OpInsert, algebra.OpUpdate:
		docs, ok := m.Input.(*algebra.DocValues)
		if !ok {
			return nil, catalog.NewUnsupportedError("document %s from %T, want literal documents", m.Op, m.Input)
		}
		if m.Op == algebra.OpUpdate {
			for i, doc := range docs.Documents {
				if _, ok := document.IDOf(doc); !ok {
					return nil, catalog.NewInvariantError("document %d of update has no %s", i, document.IDField)
				}
			}
		}
		rows, err := l.values(docs)
		if err != nil {
			return nil, err
		}
		return &algebra.RelModify{Entity: l.table, Input: rows, Op: m.Op}, nil
	case algebra.OpDelete:
		if docs, ok := m.Input.(*algebra.DocValues); ok {
			ids := make([]ir.IRValue, 0, len(docs.Documents))
			for i, doc := range docs.Documents {
				id, ok := document.IDOf(doc)
				if !ok {
					return nil, catalog.NewInvariantError("document %d of delete has no %s", i, document.IDField)
				}
				ids = append(ids, ir.IRString(id))
			}
			filter := &algebra.RelFilter{
				Input:     l.scan(),
				Condition: &algebra.In{Column: algebra.Col(typesys.DocumentIDField), Values: ids},
			}
			return &algebra.RelModify{Entity: l.table, Input: filter, Op: m.Op}, nil
		}
		input, err := l.lower(m.Input)
		if err != nil {
			return nil, err
		}
		return &algebra.RelModify{Entity: l.table, Input: input, Op: m.Op}, nil
	default:
		return nil, catalog.NewUnsupportedError("document operation %q", m.Op)
	}
}
