package typesys

import (
	"fmt"

	"github.com/roach88/polycat/internal/ir"
)

// FromPolyType maps a catalog column type to a structural type.
// A zero length or scale means the parameter is not specified.
func FromPolyType(pt ir.PolyType, length, scale int, nullable bool) (Type, error) {
	precision, sc := NotSpecified, NotSpecified
	if length > 0 {
		precision = length
	}
	if scale > 0 {
		sc = scale
	}
	switch pt {
	case ir.TypeBoolean:
		return NewScalar(KindBoolean, NotSpecified, NotSpecified, nullable), nil
	case ir.TypeInteger:
		return NewScalar(KindInteger, NotSpecified, NotSpecified, nullable), nil
	case ir.TypeBigint:
		return NewScalar(KindBigint, NotSpecified, NotSpecified, nullable), nil
	case ir.TypeDecimal:
		return NewScalar(KindDecimal, precision, sc, nullable), nil
	case ir.TypeVarchar:
		return NewScalar(KindVarchar, precision, NotSpecified, nullable), nil
	case ir.TypeText:
		return NewScalar(KindText, NotSpecified, NotSpecified, nullable), nil
	case ir.TypeVarbinary:
		return NewScalar(KindVarbinary, precision, NotSpecified, nullable), nil
	case ir.TypeDocument:
		return NewDocumentType(), nil
	case ir.TypeGraph:
		return GraphValue().WithNullable(nullable), nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", pt)
	}
}

// FromColumn returns the structural type of a logical column.
func FromColumn(col ir.LogicalColumn) (Type, error) {
	return FromPolyType(col.Type, col.Length, col.Scale, col.Nullable)
}
