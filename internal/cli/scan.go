package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/document"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/querysql"
	"github.com/roach88/polycat/internal/transform"
)

// ScanResult is the scan tree the catalog builds for an allocation.
type ScanResult struct {
	AllocationID int64        `json:"allocation_id"`
	Model        ir.DataModel `json:"model"`
	Plan         string       `json:"plan"`
}

func (r ScanResult) String() string {
	return fmt.Sprintf("Allocation %d (%s)\n%s", r.AllocationID, r.Model, r.Plan)
}

// LoweredStatement is one SQL statement of a lowered scan.
type LoweredStatement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// LowerResult is a native scan lowered to relational algebra and SQL.
type LowerResult struct {
	AllocationID int64              `json:"allocation_id"`
	Model        ir.DataModel       `json:"model"`
	Codec        string             `json:"codec"`
	Native       string             `json:"native"`
	Lowered      string             `json:"lowered"`
	Statements   []LoweredStatement `json:"statements"`
}

func (r LowerResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Allocation %d (%s, codec %s)\n", r.AllocationID, r.Model, r.Codec)
	b.WriteString("Native:\n")
	writeIndented(&b, r.Native)
	b.WriteString("Lowered:\n")
	writeIndented(&b, r.Lowered)
	b.WriteString("SQL:\n")
	for _, s := range r.Statements {
		fmt.Fprintf(&b, "  %s;\n", s.SQL)
		if len(s.Params) > 0 {
			fmt.Fprintf(&b, "    -- params: %v\n", s.Params)
		}
	}
	return b.String()
}

func writeIndented(b *strings.Builder, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <allocation-id>",
		Short: "Explain the scan of a placed allocation",
		Long: `Print the operator tree the catalog builds to read an allocation.

Models listed as native in the config scan natively; the others scan through
their relational re-encoding.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runScan(opts *RootOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	id, err := parseID(arg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, cfg, opts.Verbose, true)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	defer s.Close(ctx)

	rel, err := s.adapter.Catalog().GetAllocation(id)
	if err != nil {
		return fail(formatter, err)
	}
	node, err := s.adapter.Catalog().Scan(id)
	if err != nil {
		return fail(formatter, err)
	}
	return formatter.Success(ScanResult{
		AllocationID: id,
		Model:        rel.Allocation.Model,
		Plan:         algebra.Explain(node),
	})
}

// LowerOptions holds lower command options.
type LowerOptions struct {
	Schema string
	Codec  string
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{}

	cmd := &cobra.Command{
		Use:   "lower <allocation-id>",
		Short: "Lower a native scan to relational SQL",
		Long: `Build the native scan of a placed allocation in its own model, lower it
to relational algebra over the allocation's physical tables and compile the
result to SQL.

With a schema, the allocation's logical entity is checked against the model
of the scan first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "CUE schema file or directory (overrides config)")
	cmd.Flags().StringVar(&opts.Codec, "codec", "", "document codec, json or bson (overrides config)")

	return cmd
}

func runLower(rootOpts *RootOptions, opts *LowerOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	id, err := parseID(arg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}
	if opts.Codec != "" {
		cfg.Document.Codec = opts.Codec
	}
	codec, err := document.ByName(cfg.Document.Codec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	var snap *ir.Snapshot
	schemaPath := cfg.Schema
	if opts.Schema != "" {
		schemaPath = opts.Schema
	}
	if schemaPath != "" {
		if snap, err = loadSchema(schemaPath); err != nil {
			return fail(formatter, err)
		}
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, cfg, rootOpts.Verbose, true)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	defer s.Close(ctx)

	cat := s.adapter.Catalog()
	rel, err := cat.GetAllocation(id)
	if err != nil {
		return fail(formatter, err)
	}
	native, err := nativeScan(cat, rel)
	if err != nil {
		return fail(formatter, err)
	}
	target, err := cat.Entity(id)
	if err != nil {
		return fail(formatter, err)
	}

	lowered, err := transform.RelationalEquivalent(
		[]algebra.Node{native},
		[]catalog.PhysicalEntity{target},
		snap,
		transform.WithCodec(codec),
		transform.WithLogger(s.logger),
	)
	if err != nil {
		return fail(formatter, err)
	}
	stmts, err := querysql.NewSQLCompiler().CompileAll(lowered[0])
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCompile, err, nil)
	}

	result := LowerResult{
		AllocationID: id,
		Model:        rel.Allocation.Model,
		Codec:        codec.Name(),
		Native:       algebra.Explain(native),
		Lowered:      algebra.Explain(lowered[0]),
	}
	for _, st := range stmts {
		result.Statements = append(result.Statements, LoweredStatement{SQL: st.SQL, Params: st.Params})
	}
	return formatter.Success(result)
}

// nativeScan builds the scan of an allocation in its own model.
func nativeScan(c *catalog.StoreCatalog, rel catalog.AllocationRelation) (algebra.Node, error) {
	switch rel.Allocation.Model {
	case ir.ModelRelational:
		return catalog.RelationalScan(c, rel)
	case ir.ModelDocument:
		return catalog.NativeDocumentScan(c, rel)
	case ir.ModelGraph:
		return catalog.NativeGraphScan(c, rel)
	default:
		return nil, catalog.NewInvariantError("allocation %d has unrecognized model %q", rel.Allocation.ID, rel.Allocation.Model)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
