package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/store"
	"github.com/roach88/polycat/internal/testutil"
)

var schemaPath = filepath.Join("testdata", "schema.cue")

// execute runs the root command with args and returns what it wrote to
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// data decodes the payload of a successful JSON response into v.
func data(t *testing.T, output string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	require.Equal(t, "ok", resp.Status, output)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func errorCode(t *testing.T, output string) string {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func placedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "polycat.db")
	_, err := execute(t, "--db", db, "place", "--schema", schemaPath)
	require.NoError(t, err)
	return db
}

func TestValidate(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "validate", schemaPath)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ Schema valid")
		assert.Contains(t, out, "3 namespace(s), 3 entities, 3 columns, 3 allocation(s)")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "validate", schemaPath)
		require.NoError(t, err)

		var res ValidationResult
		data(t, out, &res)
		assert.True(t, res.Valid)
		assert.Equal(t, ir.MustSchemaDigest(testutil.SnapshotData()), res.Digest)
		assert.Equal(t, 3, res.Allocations)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := execute(t, "validate", "testdata")
		require.NoError(t, err)
	})
}

func TestValidateInvalidSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	src := `namespace: public: {
	id:    1
	model: "relational"
	entity: emps: {
		id: 10
		column: a: {id: 101, type: "MONEY"}
		column: b: {id: 101, type: "TEXT"}
	}
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	out, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeSchema, errorCode(t, out))

	var resp struct {
		Error struct {
			Details []struct {
				Code string `json:"code"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	var codes []string
	for _, d := range resp.Error.Details {
		codes = append(codes, d.Code)
	}
	assert.ElementsMatch(t, []string{"E204", "E201"}, codes)
}

func TestValidateMissingSchema(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestPlaceAll(t *testing.T) {
	db := filepath.Join(t.TempDir(), "polycat.db")

	out, err := execute(t, "--db", db, "--format", "json", "place", "--schema", schemaPath)
	require.NoError(t, err)

	var res PlaceResult
	data(t, out, &res)
	assert.Equal(t, int64(1), res.Adapter)
	assert.NotEmpty(t, res.Token)
	require.Len(t, res.Placed, 3)
	assert.Equal(t, PlacedAllocation{
		AllocationID: 5,
		Model:        ir.ModelRelational,
		Entity:       "public.emps",
		Tables:       []string{"tab5"},
	}, res.Placed[0])
	assert.Equal(t, []string{"coll7"}, res.Placed[1].Tables)
	assert.Len(t, res.Placed[2].Tables, 4)
	assert.Empty(t, res.Skipped)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	var tables []string
	rows, err := st.DB().Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'catalog_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())
	assert.Contains(t, tables, "tab5")
	assert.Contains(t, tables, "coll7")
	assert.Contains(t, tables, "graph9_edges")
}

func TestPlaceSkipsPlaced(t *testing.T) {
	db := filepath.Join(t.TempDir(), "polycat.db")
	_, err := execute(t, "--db", db, "place", "--schema", schemaPath, "5")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "--format", "json", "place", "--schema", schemaPath)
	require.NoError(t, err)

	var res PlaceResult
	data(t, out, &res)
	assert.Equal(t, []int64{5}, res.Skipped)
	assert.Len(t, res.Placed, 2)
}

func TestPlaceErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "polycat.db")

	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantCode string
	}{
		{"unknown allocation", []string{"place", "--schema", schemaPath, "42"}, ExitFailure, ErrCodeNotFound},
		{"bad id", []string{"place", "--schema", schemaPath, "five"}, ExitCommandError, ErrCodeGeneric},
		{"other adapter", []string{"--adapter", "2", "place", "--schema", schemaPath, "5"}, ExitFailure, ErrCodeInvariant},
		{"no schema", []string{"place"}, ExitFailure, ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, "--format", "json"}, tt.args...)
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Equal(t, tt.wantCode, errorCode(t, out))
		})
	}
}

func TestInspect(t *testing.T) {
	db := placedDB(t)

	out, err := execute(t, "--db", db, "--format", "json", "inspect")
	require.NoError(t, err)

	var res InspectResult
	data(t, out, &res)
	assert.Equal(t, int64(1), res.Adapter)
	assert.Equal(t, int64(1), res.Generation)
	assert.NotEmpty(t, res.Digest)
	require.Len(t, res.Tables, 6)
	assert.Equal(t, store.TableRow{TableID: 5, AllocationID: 5, NamespaceName: "public", Name: "tab5", ColumnCount: 3}, res.Tables[0])

	text, err := execute(t, "--db", db, "inspect")
	require.NoError(t, err)
	assert.Contains(t, text, "Adapter 1, generation 1")
	assert.Contains(t, text, "graph9_nodes")
}

func TestInspectWithoutSnapshot(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, "--db", db, "--format", "json", "inspect")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, errorCode(t, out))
}

func TestDrop(t *testing.T) {
	db := placedDB(t)

	_, err := execute(t, "--db", db, "drop", "7")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "--format", "json", "inspect")
	require.NoError(t, err)
	var res InspectResult
	data(t, out, &res)
	assert.Equal(t, int64(2), res.Generation)
	for _, table := range res.Tables {
		assert.NotEqual(t, "coll7", table.Name)
	}
	assert.Len(t, res.Tables, 5)

	out, err = execute(t, "--db", db, "--format", "json", "drop", "7")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, errorCode(t, out))
}

func TestScan(t *testing.T) {
	db := placedDB(t)

	t.Run("relational", func(t *testing.T) {
		out, err := execute(t, "--db", db, "--format", "json", "scan", "5")
		require.NoError(t, err)
		var res ScanResult
		data(t, out, &res)
		assert.Equal(t, ir.ModelRelational, res.Model)
		assert.Contains(t, res.Plan, "rel_scan")
		assert.Contains(t, res.Plan, "tab5")
	})

	t.Run("re-encoded document", func(t *testing.T) {
		out, err := execute(t, "--db", db, "scan", "7")
		require.NoError(t, err)
		assert.Contains(t, out, "transformer[out=document]")
		assert.Contains(t, out, "coll7")
	})

	t.Run("native document", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "polycat.yaml")
		cfg := "database: " + db + "\nadapter:\n  id: 1\n  native: [document]\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

		out, err := execute(t, "--config", cfgPath, "scan", "7")
		require.NoError(t, err)
		assert.Contains(t, out, "doc_scan")
		assert.NotContains(t, out, "transformer")
	})

	t.Run("unknown allocation", func(t *testing.T) {
		out, err := execute(t, "--db", db, "--format", "json", "scan", "42")
		require.Error(t, err)
		assert.Equal(t, ErrCodeNotFound, errorCode(t, out))
	})

	t.Run("read-only scan does not persist", func(t *testing.T) {
		out, err := execute(t, "--db", db, "--format", "json", "inspect")
		require.NoError(t, err)
		var res InspectResult
		data(t, out, &res)
		assert.Equal(t, int64(1), res.Generation)
	})
}

func TestLower(t *testing.T) {
	db := placedDB(t)

	tests := []struct {
		name      string
		id        string
		codec     string
		model     ir.DataModel
		wantStmts int
		wantTable string
	}{
		{"relational", "5", "", ir.ModelRelational, 1, `"tab5"`},
		{"document json", "7", "json", ir.ModelDocument, 1, `"coll7"`},
		{"document bson", "7", "bson", ir.ModelDocument, 1, `"coll7"`},
		{"graph", "9", "", ir.ModelGraph, 4, `"graph9_nodes"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"--db", db, "--format", "json", "lower", "--schema", schemaPath, tt.id}
			if tt.codec != "" {
				args = append(args, "--codec", tt.codec)
			}
			out, err := execute(t, args...)
			require.NoError(t, err)

			var res LowerResult
			data(t, out, &res)
			assert.Equal(t, tt.model, res.Model)
			require.Len(t, res.Statements, tt.wantStmts)
			assert.Contains(t, res.Statements[0].SQL, tt.wantTable)
			assert.NotContains(t, res.Lowered, "doc_scan")
			assert.NotContains(t, res.Lowered, "graph_scan")
			if tt.codec != "" {
				assert.Equal(t, tt.codec, res.Codec)
			}
		})
	}
}

func TestLowerText(t *testing.T) {
	db := placedDB(t)

	out, err := execute(t, "--db", db, "lower", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Allocation 7 (document, codec json)")
	assert.Contains(t, out, "Native:\n  doc_scan")
	assert.Contains(t, out, "SQL:\n  SELECT")
}

func TestLowerUnknownCodec(t *testing.T) {
	db := placedDB(t)

	out, err := execute(t, "--db", db, "--format", "json", "lower", "--codec", "xml", "7")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeConfig, errorCode(t, out))
}
