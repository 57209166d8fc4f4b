package schemaspec

import (
	"fmt"
	"strings"

	"github.com/roach88/polycat/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrDuplicateID        = "E201" // id used twice within one kind
	ErrDuplicateName      = "E202" // name used twice within one scope
	ErrUnknownModel       = "E203" // model is not relational, document or graph
	ErrUnknownType        = "E204" // column type is not a PolyType
	ErrInvalidParameter   = "E205" // negative length or scale, or parameter on a fixed type
	ErrModelMismatch      = "E206" // entity and namespace or allocation models differ
	ErrColumnsOnNonTable  = "E207" // columns declared on a document or graph entity
	ErrDanglingReference  = "E208" // id points at nothing
	ErrInvalidSubstitutes = "E209" // substitutes on a non-graph allocation or reused ids
	ErrInvalidPlacement   = "E210" // placement of another entity's column, or placed twice
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one schema.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

var parameterized = map[ir.PolyType]bool{
	ir.TypeVarchar:   true,
	ir.TypeVarbinary: true,
	ir.TypeDecimal:   true,
}

var knownTypes = map[ir.PolyType]bool{
	ir.TypeBoolean:   true,
	ir.TypeInteger:   true,
	ir.TypeBigint:    true,
	ir.TypeDecimal:   true,
	ir.TypeVarchar:   true,
	ir.TypeText:      true,
	ir.TypeVarbinary: true,
	ir.TypeDocument:  true,
	ir.TypeGraph:     true,
}

// Validate checks snapshot content for referential and type problems.
// Returns all errors found (does not fail-fast).
func Validate(data ir.SnapshotData) ValidationErrors {
	v := &validator{}

	namespaces := map[int64]ir.Namespace{}
	nsNames := map[string]bool{}
	for _, ns := range data.Namespaces {
		field := "namespace." + ns.Name
		if _, dup := namespaces[ns.ID]; dup {
			v.add(field, ErrDuplicateID, "namespace id %d is used twice", ns.ID)
		}
		if nsNames[ns.Name] {
			v.add(field, ErrDuplicateName, "namespace %q is declared twice", ns.Name)
		}
		if !ns.Model.Valid() {
			v.add(field, ErrUnknownModel, "unknown model %q", ns.Model)
		}
		namespaces[ns.ID] = ns
		nsNames[ns.Name] = true
	}

	entities := map[int64]ir.LogicalEntity{}
	for _, e := range data.Entities {
		field := fmt.Sprintf("entity.%s", e.Name)
		if _, dup := entities[e.ID]; dup {
			v.add(field, ErrDuplicateID, "entity id %d is used twice", e.ID)
		}
		entities[e.ID] = e
		if !e.Model.Valid() {
			v.add(field, ErrUnknownModel, "unknown model %q", e.Model)
		}
		ns, ok := namespaces[e.NamespaceID]
		if !ok {
			v.add(field, ErrDanglingReference, "namespace %d does not exist", e.NamespaceID)
			continue
		}
		if ns.Model != e.Model {
			v.add(field, ErrModelMismatch, "%s entity in %s namespace %q", e.Model, ns.Model, ns.Name)
		}
	}

	columns := map[int64]ir.LogicalColumn{}
	colNames := map[string]bool{}
	for _, col := range data.Columns {
		field := fmt.Sprintf("column.%s", col.Name)
		if _, dup := columns[col.ID]; dup {
			v.add(field, ErrDuplicateID, "column id %d is used twice", col.ID)
		}
		columns[col.ID] = col
		key := fmt.Sprintf("%d.%s", col.EntityID, col.Name)
		if colNames[key] {
			v.add(field, ErrDuplicateName, "column %q is declared twice on entity %d", col.Name, col.EntityID)
		}
		colNames[key] = true

		switch {
		case !knownTypes[col.Type]:
			v.add(field, ErrUnknownType, "unknown type %q", col.Type)
		case col.Length < 0 || col.Scale < 0:
			v.add(field, ErrInvalidParameter, "length and scale must not be negative")
		case !parameterized[col.Type] && (col.Length != 0 || col.Scale != 0):
			v.add(field, ErrInvalidParameter, "%s takes no length or scale", col.Type)
		case col.Scale != 0 && col.Type != ir.TypeDecimal:
			v.add(field, ErrInvalidParameter, "%s takes no scale", col.Type)
		}

		e, ok := entities[col.EntityID]
		if !ok {
			v.add(field, ErrDanglingReference, "entity %d does not exist", col.EntityID)
			continue
		}
		if e.Model != ir.ModelRelational {
			v.add(field, ErrColumnsOnNonTable, "%s entity %q cannot declare columns", e.Model, e.Name)
		}
	}

	allocations := map[int64]ir.AllocationEntity{}
	substituteIDs := map[int64]int64{}
	for _, a := range data.Allocations {
		field := fmt.Sprintf("allocation.%d", a.ID)
		if _, dup := allocations[a.ID]; dup {
			v.add(field, ErrDuplicateID, "allocation id %d is used twice", a.ID)
		}
		allocations[a.ID] = a

		e, ok := entities[a.LogicalID]
		if !ok {
			v.add(field, ErrDanglingReference, "entity %d does not exist", a.LogicalID)
		} else if e.Model != a.Model {
			v.add(field, ErrModelMismatch, "%s allocation of %s entity %q", a.Model, e.Model, e.Name)
		}
		if a.Substitutes == nil {
			continue
		}
		if a.Model != ir.ModelGraph {
			v.add(field, ErrInvalidSubstitutes, "substitutes on a %s allocation", a.Model)
			continue
		}
		for _, id := range a.Substitutes.IDs() {
			if owner, used := substituteIDs[id]; used {
				v.add(field, ErrInvalidSubstitutes, "substitute table %d is already used by allocation %d", id, owner)
				continue
			}
			substituteIDs[id] = a.ID
		}
	}
	for _, a := range data.Allocations {
		if a.Substitutes == nil || a.Model != ir.ModelGraph {
			continue
		}
		for _, id := range a.Substitutes.IDs() {
			if _, clash := allocations[id]; clash {
				v.add(fmt.Sprintf("allocation.%d", a.ID), ErrInvalidSubstitutes, "substitute table %d collides with allocation %d", id, id)
			}
		}
	}

	placed := map[[2]int64]bool{}
	for _, p := range data.AllocationColumns {
		field := fmt.Sprintf("allocation.%d.column.%d", p.AllocationID, p.ColumnID)
		a, ok := allocations[p.AllocationID]
		if !ok {
			v.add(field, ErrDanglingReference, "allocation %d does not exist", p.AllocationID)
			continue
		}
		col, ok := columns[p.ColumnID]
		if !ok {
			v.add(field, ErrDanglingReference, "column %d does not exist", p.ColumnID)
			continue
		}
		if col.EntityID != a.LogicalID {
			v.add(field, ErrInvalidPlacement, "column %q belongs to entity %d, not %d", col.Name, col.EntityID, a.LogicalID)
		}
		key := [2]int64{p.AllocationID, p.ColumnID}
		if placed[key] {
			v.add(field, ErrInvalidPlacement, "column %q is placed twice", col.Name)
		}
		placed[key] = true
	}

	return v.errs
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}
