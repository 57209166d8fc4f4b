package schemaspec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/testutil"
)

func TestCompileFile_MatchesFixture(t *testing.T) {
	snap, err := CompileFile(filepath.Join("testdata", "fixture.cue"))
	require.NoError(t, err)
	assert.Equal(t, testutil.SnapshotData(), snap.Data())
	assert.Equal(t, ir.MustSchemaDigest(testutil.SnapshotData()), ir.MustSchemaDigest(snap.Data()))
}

func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join("testdata", "fixture.cue"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), src, 0o644))

	snap, err := CompileDir(dir)
	require.NoError(t, err)
	assert.Len(t, snap.AllocationsOn(1), 3)
}

func TestCompileString_Defaults(t *testing.T) {
	snap, err := CompileString(`
		namespace: crm: {
			id: 4
			model: "relational"
			case_sensitive: true
			entity: accounts: {
				id: 40
				column: {
					code:    {id: 401, type: "varchar", length: 8}
					balance: {id: 402, type: "DECIMAL", length: 12, scale: 2, position: 5}
					active:  {id: 403, type: "BOOLEAN"}
				}
			}
		}
		allocation: [
			{id: 41, entity: "crm.accounts", adapter: 2, columns: ["active", "code"]},
			{id: 42, entity: "crm.accounts", adapter: 3, partition: 1},
		]
	`)
	require.NoError(t, err)

	ns, ok := snap.Namespace(4)
	require.True(t, ok)
	assert.True(t, ns.CaseSensitive)

	e, ok := snap.Entity(40)
	require.True(t, ok)
	assert.Equal(t, ir.ModelRelational, e.Model)

	code, ok := snap.Column(401)
	require.True(t, ok)
	assert.Equal(t, ir.TypeVarchar, code.Type)
	assert.Equal(t, 1, code.Position)

	balance, ok := snap.Column(402)
	require.True(t, ok)
	assert.Equal(t, 5, balance.Position)
	assert.Equal(t, 12, balance.Length)
	assert.Equal(t, 2, balance.Scale)

	assert.Equal(t, []ir.AllocationColumn{
		{AllocationID: 41, ColumnID: 403, Position: 1},
		{AllocationID: 41, ColumnID: 401, Position: 2},
	}, snap.AllocationColumns(41))

	full := snap.AllocationColumns(42)
	assert.Len(t, full, 3)
	a, ok := snap.Allocation(42)
	require.True(t, ok)
	assert.Equal(t, int64(1), a.PartitionID)
	assert.Equal(t, int64(3), a.AdapterID)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "no namespaces",
			src:   `allocation: []`,
			field: "namespace",
		},
		{
			name:  "missing id",
			src:   `namespace: a: model: "relational"`,
			field: "namespace.a.id",
		},
		{
			name:  "float id",
			src:   `namespace: a: {id: 1.5, model: "relational"}`,
			field: "namespace.a.id",
		},
		{
			name:  "missing column type",
			src:   `namespace: a: {id: 1, model: "relational", entity: t: {id: 2, column: c: id: 3}}`,
			field: "namespace.a.entity.t.column.c.type",
		},
		{
			name: "unknown entity",
			src: `
				namespace: a: {id: 1, model: "relational"}
				allocation: [{id: 5, entity: "a.missing", adapter: 1}]
			`,
			field: "allocation[0].entity",
		},
		{
			name: "unknown placed column",
			src: `
				namespace: a: {id: 1, model: "relational", entity: t: {id: 2, column: c: {id: 3, type: "TEXT"}}}
				allocation: [{id: 5, entity: "a.t", adapter: 1, columns: ["d"]}]
			`,
			field: "allocation[0].columns",
		},
		{
			name: "incomplete substitutes",
			src: `
				namespace: g: {id: 1, model: "graph", entity: p: id: 2}
				allocation: [{id: 5, entity: "g.p", adapter: 1, substitutes: {nodes: 6}}]
			`,
			field: "allocation[0].substitutes.node_properties",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src)
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "want *CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompile_ErrorPosition(t *testing.T) {
	_, err := CompileString("namespace: a: {\n\tid: 1\n\tmodel: \"relational\"\n\tentity: t: {\n\t\tid: 2.5\n\t}\n}\n")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 5, ce.Pos.Line())
	assert.Contains(t, err.Error(), "schema.cue:5:")
}

func TestCompile_CUESyntaxError(t *testing.T) {
	_, err := CompileString(`namespace: {`)
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
}

func TestCompile_ValidationErrors(t *testing.T) {
	_, err := CompileString(`
		namespace: a: {id: 1, model: "relational", entity: t: {id: 2, column: c: {id: 3, type: "FLOATY"}}}
		namespace: b: {id: 1, model: "document"}
	`)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	codes := make([]string, len(verrs))
	for i, e := range verrs {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{ErrDuplicateID, ErrUnknownType}, codes)
}
