package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/polycat/internal/adapter"
	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/document"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/querysql"
	"github.com/roach88/polycat/internal/schemaspec"
	"github.com/roach88/polycat/internal/store"
	"github.com/roach88/polycat/internal/testutil"
	"github.com/roach88/polycat/internal/transform"
)

// OutcomeError is the outcome of a step that failed with an error that is
// not a catalog error.
const OutcomeError = "ERROR"

// Harness is the scenario execution engine.
type Harness struct {
	store   *store.Store
	adapter *adapter.Adapter
	snap    *ir.Snapshot
	seq     testutil.Sequence
	ids     testutil.Sequence
	lower   []transform.Option
	logger  *zap.SugaredLogger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. A returned error means
// the scenario could not be set up or executed; failed expectations and
// assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	snap, err := compileSchema(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	native, err := nativeModels(scenario.Native)
	if err != nil {
		return nil, err
	}
	codec, err := document.ByName(scenario.Codec)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	adapterID := scenario.Adapter
	if adapterID == 0 {
		adapterID = testutil.AdapterID
	}
	logger := zap.NewNop().Sugar()
	ctx := context.Background()
	a, err := adapter.Activate(ctx, adapter.Options{
		AdapterID: adapterID,
		Store:     st,
		DB:        st.DB(),
		Native:    native,
		Logger:    logger,
		Tokens:    testutil.NewFixedTokenGenerator(scenario.Token),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to activate adapter: %w", err)
	}
	loop := make(chan error, 1)
	go func() { loop <- a.Run(ctx) }()

	h := &Harness{store: st, adapter: a, snap: snap, logger: logger}
	h.lower = []transform.Option{
		transform.WithCodec(codec),
		transform.WithLogger(logger),
		transform.WithIDGenerator(h.ids.IDs("gen")),
	}

	result := NewResult()
	var runErr error
	for i, step := range scenario.Steps {
		if runErr = h.execute(ctx, i, step, result); runErr != nil {
			runErr = fmt.Errorf("steps[%d]: %w", i, runErr)
			break
		}
	}
	if runErr == nil {
		actx := &AssertionContext{Catalog: a.Catalog(), Store: st, Ctx: ctx}
		for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
			result.AddError(msg)
		}
	}

	if err := a.Deactivate(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to deactivate adapter: %w", err)
	}
	<-loop
	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

// execute applies one step and checks its outcome. The returned error is
// reserved for steps the harness cannot express.
func (h *Harness) execute(ctx context.Context, index int, step Step, result *Result) error {
	ev := TraceEvent{Seq: h.seq.Next(), Op: step.Op, Allocation: step.Allocation, Table: step.Table}

	var err error
	switch step.Op {
	case OpPlace:
		var e catalog.PhysicalEntity
		if e, err = h.adapter.Place(ctx, h.snap, step.Allocation); err == nil {
			ev.Tables = tableNames(e)
		}
	case OpDrop:
		err = h.adapter.Drop(ctx, step.Allocation)
	case OpAddColumn:
		col, position := h.logicalColumn(step)
		_, err = h.adapter.AddColumn(ctx, step.Table, position, col)
	case OpUpdateColumnType:
		col, _ := h.logicalColumn(step)
		_, err = h.adapter.UpdateColumnType(ctx, step.Table, col)
	case OpInsert, OpUpdate, OpDelete:
		var n int
		n, err = h.write(ctx, step)
		ev.Statements = n
	case OpLower:
		var stmts []querysql.Statement
		if stmts, err = h.lowerScan(step.Allocation); err == nil {
			sqls := make([]string, len(stmts))
			for i, s := range stmts {
				sqls[i] = s.SQL
			}
			result.SQL[index] = sqls
			ev.Statements = len(stmts)
		}
	case OpPersist:
		_, err = h.adapter.Persist(ctx)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if errors.Is(err, adapter.ErrStopped) {
		return err
	}

	ev.Outcome = outcome(err)
	result.Trace = append(result.Trace, ev)

	want := OutcomeOK
	if step.Expect != nil {
		want = step.Expect.Error
	}
	if ev.Outcome != want {
		msg := fmt.Sprintf("steps[%d] %s: expected %s, got %s", index, step.Op, want, ev.Outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	}
	h.logger.Debugw("step completed", "step", index, "op", step.Op, "outcome", ev.Outcome)
	return nil
}

// logicalColumn builds the logical column of a column step. Entity and
// namespace come from the table so the catalog can place the column.
func (h *Harness) logicalColumn(step Step) (ir.LogicalColumn, int) {
	spec := step.Column
	col := ir.LogicalColumn{
		ID:       spec.ID,
		Name:     spec.Name,
		Type:     ir.PolyType(strings.ToUpper(spec.Type)),
		Length:   spec.Length,
		Scale:    spec.Scale,
		Nullable: spec.Nullable,
		Position: spec.Position,
	}
	position := spec.Position
	if t, err := h.adapter.Catalog().GetTable(step.Table); err == nil {
		col.EntityID = t.LogicalID
		col.NamespaceID = t.NamespaceID
		if position == 0 {
			position = len(t.Columns) + 1
		}
	}
	if col.Position == 0 {
		col.Position = position
	}
	return col, position
}

// write lowers a document or graph modification, compiles it and executes
// the statements. Returns the number of statements executed.
func (h *Harness) write(ctx context.Context, step Step) (int, error) {
	e, err := h.adapter.Catalog().Entity(step.Allocation)
	if err != nil {
		return 0, err
	}
	var input algebra.Node
	switch model := e.Ref().Model; model {
	case ir.ModelDocument:
		if input, err = documentValues(step.Documents); err != nil {
			return 0, err
		}
	case ir.ModelGraph:
		if input, err = graphValues(step.Nodes, step.Edges); err != nil {
			return 0, err
		}
	default:
		return 0, catalog.NewUnsupportedError("%s allocation %d: writes take documents or graph elements", model, step.Allocation)
	}

	mod, err := transform.BuildModify(e, input, algebra.Operation(step.Op))
	if err != nil {
		return 0, err
	}
	lowered, err := transform.RelationalEquivalent([]algebra.Node{mod}, []catalog.PhysicalEntity{e}, h.snap, h.lower...)
	if err != nil {
		return 0, err
	}
	stmts, err := querysql.NewSQLCompiler().CompileAll(lowered[0])
	if err != nil {
		return 0, err
	}
	for _, s := range stmts {
		if _, err := h.store.Exec(ctx, s.SQL, s.Params...); err != nil {
			return 0, fmt.Errorf("exec %q: %w", s.SQL, err)
		}
	}
	return len(stmts), nil
}

// lowerScan lowers the native scan of an allocation and compiles it.
func (h *Harness) lowerScan(allocationID int64) ([]querysql.Statement, error) {
	c := h.adapter.Catalog()
	rel, err := c.GetAllocation(allocationID)
	if err != nil {
		return nil, err
	}
	var native algebra.Node
	switch rel.Allocation.Model {
	case ir.ModelDocument:
		native, err = catalog.NativeDocumentScan(c, rel)
	case ir.ModelGraph:
		native, err = catalog.NativeGraphScan(c, rel)
	default:
		native, err = catalog.RelationalScan(c, rel)
	}
	if err != nil {
		return nil, err
	}
	e, err := c.Entity(allocationID)
	if err != nil {
		return nil, err
	}
	lowered, err := transform.RelationalEquivalent([]algebra.Node{native}, []catalog.PhysicalEntity{e}, h.snap, h.lower...)
	if err != nil {
		return nil, err
	}
	return querysql.NewSQLCompiler().CompileAll(lowered[0])
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var cerr *catalog.Error
	if errors.As(err, &cerr) {
		return string(cerr.Code)
	}
	return OutcomeError
}

func tableNames(e catalog.PhysicalEntity) []string {
	tables := e.PhysicalTables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

func compileSchema(path string) (*ir.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return schemaspec.CompileDir(path)
	}
	return schemaspec.CompileFile(path)
}

func nativeModels(names []string) ([]ir.DataModel, error) {
	models := make([]ir.DataModel, 0, len(names))
	for _, name := range names {
		m := ir.DataModel(strings.ToLower(name))
		if !m.Valid() {
			return nil, fmt.Errorf("native model %q is not relational, document or graph", name)
		}
		models = append(models, m)
	}
	return models, nil
}

func documentValues(docs []map[string]any) (*algebra.DocValues, error) {
	out := make([]ir.IRObject, len(docs))
	for i, doc := range docs {
		obj, err := convertArgsToIRObject(doc)
		if err != nil {
			return nil, fmt.Errorf("documents[%d]: %w", i, err)
		}
		out[i] = obj
	}
	return &algebra.DocValues{Documents: out}, nil
}

func graphValues(nodes []NodeSpec, edges []EdgeSpec) (*algebra.GraphValues, error) {
	v := &algebra.GraphValues{}
	for i, n := range nodes {
		props, err := convertArgsToIRObject(n.Properties)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		v.Nodes = append(v.Nodes, algebra.GraphNode{ID: n.ID, Label: n.Label, Properties: props})
	}
	for i, e := range edges {
		props, err := convertArgsToIRObject(e.Properties)
		if err != nil {
			return nil, fmt.Errorf("edges[%d]: %w", i, err)
		}
		v.Edges = append(v.Edges, algebra.GraphEdge{ID: e.ID, Label: e.Label, Source: e.Source, Target: e.Target, Properties: props})
	}
	return v, nil
}

// convertArgsToIRObject converts a YAML-parsed map to ir.IRObject.
func convertArgsToIRObject(args map[string]any) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(ir.IRObject, len(args))
	for _, key := range keys {
		irVal, err := convertToIRValue(args[key])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
// Nulls and non-integral numbers are rejected; documents carry neither.
func convertToIRValue(val any) (ir.IRValue, error) {
	if val == nil {
		return nil, fmt.Errorf("null values are not allowed in documents")
	}

	switch v := val.(type) {
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(int64(v)), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		// Check if it's actually an integer
		if v == float64(int64(v)) {
			return ir.IRInt(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are not allowed in documents: %v", v)
	case bool:
		return ir.IRBool(v), nil
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		return convertArgsToIRObject(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
