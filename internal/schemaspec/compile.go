package schemaspec

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/polycat/internal/ir"
)

// CompileString compiles CUE source text.
func CompileString(src string) (*ir.Snapshot, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src, cue.Filename("schema.cue")))
}

// CompileFile compiles a single CUE file.
func CompileFile(path string) (*ir.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	ctx := cuecontext.New()
	return Compile(ctx.CompileBytes(data, cue.Filename(path)))
}

// CompileDir loads the CUE package in dir and compiles it.
func CompileDir(dir string) (*ir.Snapshot, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	ctx := cuecontext.New()
	return Compile(ctx.BuildInstance(inst))
}

// Compile converts a CUE value holding namespace and allocation
// declarations into a snapshot. The result is validated; a schema with
// problems returns ValidationErrors.
func Compile(v cue.Value) (*ir.Snapshot, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &compiler{entities: map[string]entityRef{}}
	if err := c.namespaces(v.LookupPath(cue.ParsePath("namespace"))); err != nil {
		return nil, err
	}
	if err := c.allocations(v.LookupPath(cue.ParsePath("allocation"))); err != nil {
		return nil, err
	}

	if errs := Validate(c.data); len(errs) > 0 {
		return nil, errs
	}
	return ir.NewSnapshot(c.data), nil
}

type entityRef struct {
	entity  ir.LogicalEntity
	columns []ir.LogicalColumn
}

type compiler struct {
	data     ir.SnapshotData
	entities map[string]entityRef // "namespace.entity"
}

func (c *compiler) namespaces(v cue.Value) error {
	if !v.Exists() {
		return newCompileError("namespace", v.Pos(), "at least one namespace is required")
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		nv := iter.Value()
		field := "namespace." + name

		id, err := requiredInt(nv, field, "id")
		if err != nil {
			return err
		}
		model, err := requiredString(nv, field, "model")
		if err != nil {
			return err
		}
		caseSensitive, err := optionalBool(nv, field, "case_sensitive")
		if err != nil {
			return err
		}
		ns := ir.Namespace{ID: id, Name: name, Model: ir.DataModel(model), CaseSensitive: caseSensitive}
		c.data.Namespaces = append(c.data.Namespaces, ns)

		if err := c.entitiesOf(nv.LookupPath(cue.ParsePath("entity")), ns, field); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) entitiesOf(v cue.Value, ns ir.Namespace, parent string) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		ev := iter.Value()
		field := parent + ".entity." + name

		id, err := requiredInt(ev, field, "id")
		if err != nil {
			return err
		}
		model, ok, err := optionalString(ev, field, "model")
		if err != nil {
			return err
		}
		if !ok {
			model = string(ns.Model)
		}
		entity := ir.LogicalEntity{ID: id, NamespaceID: ns.ID, Name: name, Model: ir.DataModel(model)}
		c.data.Entities = append(c.data.Entities, entity)

		cols, err := c.columnsOf(ev.LookupPath(cue.ParsePath("column")), entity, field)
		if err != nil {
			return err
		}
		c.entities[ns.Name+"."+name] = entityRef{entity: entity, columns: cols}
	}
	return nil
}

func (c *compiler) columnsOf(v cue.Value, entity ir.LogicalEntity, parent string) ([]ir.LogicalColumn, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var cols []ir.LogicalColumn
	for iter.Next() {
		name := iter.Label()
		cv := iter.Value()
		field := parent + ".column." + name

		col := ir.LogicalColumn{
			EntityID:    entity.ID,
			NamespaceID: entity.NamespaceID,
			Name:        name,
			Position:    len(cols) + 1,
		}
		if col.ID, err = requiredInt(cv, field, "id"); err != nil {
			return nil, err
		}
		typ, err := requiredString(cv, field, "type")
		if err != nil {
			return nil, err
		}
		col.Type = ir.PolyType(strings.ToUpper(typ))
		if pos, ok, err := optionalInt(cv, field, "position"); err != nil {
			return nil, err
		} else if ok {
			col.Position = int(pos)
		}
		length, _, err := optionalInt(cv, field, "length")
		if err != nil {
			return nil, err
		}
		scale, _, err := optionalInt(cv, field, "scale")
		if err != nil {
			return nil, err
		}
		col.Length, col.Scale = int(length), int(scale)
		if col.Nullable, err = optionalBool(cv, field, "nullable"); err != nil {
			return nil, err
		}

		cols = append(cols, col)
		c.data.Columns = append(c.data.Columns, col)
	}
	return cols, nil
}

func (c *compiler) allocations(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		av := iter.Value()
		field := fmt.Sprintf("allocation[%d]", i)

		id, err := requiredInt(av, field, "id")
		if err != nil {
			return err
		}
		adapterID, err := requiredInt(av, field, "adapter")
		if err != nil {
			return err
		}
		entityName, err := requiredString(av, field, "entity")
		if err != nil {
			return err
		}
		ref, ok := c.entities[entityName]
		if !ok {
			return newCompileError(field+".entity", av.LookupPath(cue.ParsePath("entity")).Pos(),
				"unknown entity %q, want namespace.entity", entityName)
		}
		partition, _, err := optionalInt(av, field, "partition")
		if err != nil {
			return err
		}

		alloc := ir.AllocationEntity{
			ID:          id,
			LogicalID:   ref.entity.ID,
			AdapterID:   adapterID,
			NamespaceID: ref.entity.NamespaceID,
			PartitionID: partition,
			Model:       ref.entity.Model,
		}
		if sv := av.LookupPath(cue.ParsePath("substitutes")); sv.Exists() {
			subs, err := substitutes(sv, field+".substitutes")
			if err != nil {
				return err
			}
			alloc.Substitutes = subs
		}
		c.data.Allocations = append(c.data.Allocations, alloc)

		placed, err := c.placements(av, field, alloc, ref)
		if err != nil {
			return err
		}
		c.data.AllocationColumns = append(c.data.AllocationColumns, placed...)
	}
	return nil
}

// placements resolves the columns an allocation stores. Without an explicit
// list every column of the entity is placed at its logical position.
func (c *compiler) placements(av cue.Value, field string, alloc ir.AllocationEntity, ref entityRef) ([]ir.AllocationColumn, error) {
	lv := av.LookupPath(cue.ParsePath("columns"))
	if !lv.Exists() {
		out := make([]ir.AllocationColumn, len(ref.columns))
		for i, col := range ref.columns {
			out[i] = ir.AllocationColumn{AllocationID: alloc.ID, ColumnID: col.ID, Position: col.Position}
		}
		return out, nil
	}

	byName := make(map[string]ir.LogicalColumn, len(ref.columns))
	for _, col := range ref.columns {
		byName[col.Name] = col
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.AllocationColumn
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		col, ok := byName[name]
		if !ok {
			return nil, newCompileError(field+".columns", iter.Value().Pos(),
				"entity %q has no column %q", ref.entity.Name, name)
		}
		out = append(out, ir.AllocationColumn{AllocationID: alloc.ID, ColumnID: col.ID, Position: len(out) + 1})
	}
	return out, nil
}

func substitutes(v cue.Value, field string) (*ir.GraphSubstitutes, error) {
	var subs ir.GraphSubstitutes
	targets := []struct {
		name string
		dst  *int64
	}{
		{"nodes", &subs.Nodes},
		{"node_properties", &subs.NodeProperties},
		{"edges", &subs.Edges},
		{"edge_properties", &subs.EdgeProperties},
	}
	for _, t := range targets {
		id, err := requiredInt(v, field, t.name)
		if err != nil {
			return nil, err
		}
		*t.dst = id
	}
	return &subs, nil
}

func requiredInt(v cue.Value, parent, name string) (int64, error) {
	i, ok, err := optionalInt(v, parent, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, newCompileError(parent+"."+name, v.Pos(), "%s is required", name)
	}
	return i, nil
}

func optionalInt(v cue.Value, parent, name string) (int64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, false, nil
	}
	switch fv.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, false, newCompileError(parent+"."+name, fv.Pos(), "float values are forbidden, use an integer")
	default:
		return 0, false, newCompileError(parent+"."+name, fv.Pos(), "must be an integer, got %v", fv.IncompleteKind())
	}
	i, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return i, true, nil
}

func requiredString(v cue.Value, parent, name string) (string, error) {
	s, ok, err := optionalString(v, parent, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newCompileError(parent+"."+name, v.Pos(), "%s is required", name)
	}
	return s, nil
}

func optionalString(v cue.Value, parent, name string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, newCompileError(parent+"."+name, fv.Pos(), "must be a string")
	}
	return s, true, nil
}

func optionalBool(v cue.Value, parent, name string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, newCompileError(parent+"."+name, fv.Pos(), "must be a bool")
	}
	return b, nil
}
