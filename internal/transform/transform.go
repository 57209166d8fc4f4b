package transform

import (
	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/ir"
)

// RelationalEquivalent lowers each input to relational algebra over the
// physical tables of the target at the same index.
//
// Relational inputs are returned unchanged. When snap is not nil, the
// logical entity behind each target allocation must have the model of its
// input. The result has one node per input.
func RelationalEquivalent(inputs []algebra.Node, targets []catalog.PhysicalEntity, snap *ir.Snapshot, opts ...Option) ([]algebra.Node, error) {
	if len(inputs) != len(targets) {
		return nil, catalog.NewInvariantError("%d inputs for %d targets", len(inputs), len(targets))
	}
	o := newOptions(opts)
	out := make([]algebra.Node, len(inputs))
	for i, in := range inputs {
		if in == nil || targets[i] == nil {
			return nil, catalog.NewInvariantError("input %d: missing node or target", i)
		}
		if snap != nil {
			if err := checkModel(in, targets[i], snap); err != nil {
				return nil, err
			}
		}
		lowered, err := lower(in, targets[i], o)
		if err != nil {
			return nil, err
		}
		o.logger.Debugw("lowered to relational",
			"model", in.Model(), "kind", in.Kind(), "allocation", targets[i].Ref().AllocationID)
		out[i] = lowered
	}
	return out, nil
}

// BuildModify asks entity for its modifier and builds the modify node.
// Entities without a modifier are an unsupported capability.
func BuildModify(entity catalog.PhysicalEntity, input algebra.Node, op algebra.Operation) (algebra.Node, error) {
	m, ok := entity.Modifier()
	if !ok {
		ref := entity.Ref()
		return nil, catalog.NewUnsupportedError("%s entity %s.%s is not modifiable", ref.Model, ref.Namespace, ref.Name)
	}
	return m.BuildModify(input, op)
}

func checkModel(in algebra.Node, target catalog.PhysicalEntity, snap *ir.Snapshot) error {
	allocID := target.Ref().AllocationID
	alloc, ok := snap.Allocation(allocID)
	if !ok {
		return catalog.NewNotFoundError("allocation", allocID)
	}
	entity, ok := snap.Entity(alloc.LogicalID)
	if !ok {
		return catalog.NewNotFoundError("entity", alloc.LogicalID)
	}
	if entity.Model != in.Model() {
		return catalog.NewInvariantError("allocation %d belongs to %s entity %q, input is %s",
			allocID, entity.Model, entity.Name, in.Model())
	}
	return nil
}

func lower(in algebra.Node, target catalog.PhysicalEntity, o *options) (algebra.Node, error) {
	switch in.Model() {
	case ir.ModelRelational:
		return in, nil
	case ir.ModelDocument:
		coll, ok := target.(*catalog.PhysicalCollection)
		if !ok {
			return nil, catalog.NewInvariantError("document input needs a collection target, got %s", target.Ref().Model)
		}
		l := &docLowering{coll: coll, table: coll.Table.Ref(), opts: o}
		return l.lower(in)
	case ir.ModelGraph:
		g, ok := target.(*catalog.PhysicalGraph)
		if !ok {
			return nil, catalog.NewInvariantError("graph input needs a graph target, got %s", target.Ref().Model)
		}
		l := &graphLowering{graph: g, opts: o}
		return l.lower(in)
	default:
		return nil, catalog.NewInvariantError("unknown data model %q", in.Model())
	}
}

// sortCore rebuilds s over a lowered input.
func sortCore(s algebra.SortCore, input algebra.Node, collation []algebra.FieldCollation) algebra.SortCore {
	return algebra.SortCore{Input: input, Collation: collation, Offset: s.Offset, Limit: s.Limit}
}
