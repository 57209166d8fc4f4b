package algebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

func TestSorts_ShareCore(t *testing.T) {
	core := SortCore{
		Input:     &RelScan{Entity: empsRef()},
		Collation: []FieldCollation{{Column: Col("id")}},
		Offset:    Int(1),
		Limit:     Int(3),
	}

	sorts := []struct {
		node  Node
		kind  NodeKind
		model ir.DataModel
	}{
		{&RelSort{core}, KindRelSort, ir.ModelRelational},
		{&DocSort{core}, KindDocSort, ir.ModelDocument},
		{&GraphSort{core}, KindGraphSort, ir.ModelGraph},
	}
	for _, s := range sorts {
		t.Run(string(s.kind), func(t *testing.T) {
			assert.Equal(t, s.kind, s.node.Kind())
			assert.Equal(t, s.model, s.node.Model())
			assert.Equal(t, core.Inputs(), s.node.Inputs())
			assert.Equal(t, core.RowType().Digest(), s.node.RowType().Digest())
		})
	}
}

func TestNodeKinds(t *testing.T) {
	tests := []struct {
		node  Node
		kind  NodeKind
		model ir.DataModel
	}{
		{&RelScan{}, KindRelScan, ir.ModelRelational},
		{&RelFilter{}, KindRelFilter, ir.ModelRelational},
		{&RelProject{}, KindRelProject, ir.ModelRelational},
		{&RelJoin{}, KindRelJoin, ir.ModelRelational},
		{&RelValues{}, KindRelValues, ir.ModelRelational},
		{&RelModify{}, KindRelModify, ir.ModelRelational},
		{&RelCollect{}, KindRelCollect, ir.ModelRelational},
		{&DocScan{}, KindDocScan, ir.ModelDocument},
		{&DocFilter{}, KindDocFilter, ir.ModelDocument},
		{&DocValues{}, KindDocValues, ir.ModelDocument},
		{&DocModify{}, KindDocModify, ir.ModelDocument},
		{&GraphScan{}, KindGraphScan, ir.ModelGraph},
		{&GraphMatch{}, KindGraphMatch, ir.ModelGraph},
		{&GraphValues{}, KindGraphValues, ir.ModelGraph},
		{&GraphModify{}, KindGraphModify, ir.ModelGraph},
		{&Transformer{Out: ir.ModelGraph}, KindTransformer, ir.ModelGraph},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.node.Kind())
			assert.Equal(t, tt.model, tt.node.Model())
		})
	}
}

func TestLookup_Qualified(t *testing.T) {
	left := &RelScan{Entity: empsRef(), As: "a"}
	right := &RelScan{Entity: empsRef(), As: "b"}
	join := &RelJoin{Left: left, Right: right, Condition: &ColumnEquals{Left: QCol("a", "id"), Right: QCol("b", "id")}}

	f, ok := Lookup(join, QCol("b", "name"))
	require.True(t, ok)
	assert.Equal(t, "name", f.Name)

	_, ok = Lookup(join, QCol("c", "name"))
	assert.False(t, ok)

	// projection closes the scope
	proj := &RelProject{Input: join, Items: []ProjectItem{{Column: QCol("a", "id"), As: "a"}}}
	_, ok = Lookup(proj, QCol("a", "id"))
	assert.False(t, ok)
	_, ok = Lookup(proj, Col("a"))
	assert.True(t, ok)
}

func TestRelProject_RowType(t *testing.T) {
	proj := &RelProject{
		Input: &RelScan{Entity: empsRef()},
		Items: []ProjectItem{{Column: Col("name"), As: "who"}, {Column: Col("id")}},
	}
	assert.Equal(t, []string{"who", "id"}, proj.RowType().FieldNames())
}

func TestRelJoin_RowType(t *testing.T) {
	join := &RelJoin{Left: &RelScan{Entity: empsRef()}, Right: &RelScan{Entity: empsRef()}}
	assert.Equal(t, 4, join.RowType().FieldCount())
}

func TestGraphMatch_RowType(t *testing.T) {
	m := &GraphMatch{Pattern: PathPattern{
		Source: NodePattern{Variable: "a"},
		Edge:   &EdgePattern{},
		Target: &NodePattern{Variable: "b"},
	}}
	assert.Equal(t, []string{"a", "b"}, m.RowType().FieldNames())
}

func TestDocValues_RowTypeGrows(t *testing.T) {
	v := &DocValues{Documents: []ir.IRObject{
		{"_id": ir.IRString("1"), "b": ir.IRInt(1)},
		{"a": ir.IRInt(2)},
	}}
	assert.Equal(t, []string{"_id", "b", "a"}, v.RowType().FieldNames())
	assert.Equal(t, typesys.KindDocument, v.RowType().Kind())
}

func TestAndOf(t *testing.T) {
	a := &Equals{Column: Col("a"), Value: ir.IRInt(1)}
	b := &Equals{Column: Col("b"), Value: ir.IRInt(2)}

	assert.Nil(t, AndOf())
	assert.Same(t, a, AndOf(nil, a))

	and, ok := AndOf(a, AndOf(b, nil)).(*And)
	require.True(t, ok)
	assert.Len(t, and.Predicates, 2)
	assert.Len(t, Conjuncts(and), 2)
}

func TestWalk_SkipsChildren(t *testing.T) {
	tree := &RelFilter{Input: &RelScan{Entity: empsRef()}}

	var kinds []NodeKind
	Walk(tree, func(n Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	assert.Equal(t, []NodeKind{KindRelFilter, KindRelScan}, kinds)

	kinds = nil
	Walk(tree, func(n Node) bool {
		kinds = append(kinds, n.Kind())
		return false
	})
	assert.Equal(t, []NodeKind{KindRelFilter}, kinds)
}
