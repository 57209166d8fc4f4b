package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/store"
)

// InspectResult is the persisted state of one adapter's catalog.
type InspectResult struct {
	Adapter    int64            `json:"adapter"`
	Digest     string           `json:"digest"`
	Generation int64            `json:"generation"`
	Tables     []store.TableRow `json:"tables"`
}

func (r InspectResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Adapter %d, generation %d (%s)\n", r.Adapter, r.Generation, r.Digest)
	if len(r.Tables) == 0 {
		b.WriteString("  no tables\n")
		return b.String()
	}
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TABLE\tALLOCATION\tNAMESPACE\tNAME\tCOLUMNS")
	for _, t := range r.Tables {
		fmt.Fprintf(w, "  %d\t%d\t%s\t%s\t%d\n", t.TableID, t.AllocationID, t.NamespaceName, t.Name, t.ColumnCount)
	}
	w.Flush()
	return b.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the persisted catalog of the adapter",
		Long: `Show the digest, generation and physical tables of the catalog snapshot
stored for the configured adapter. The adapter is not activated.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd)
		},
	}

	return cmd
}

func runInspect(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	ctx := commandContext(cmd)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	defer st.Close()

	info, found, err := st.Info(ctx, cfg.Adapter.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	if !found {
		return fail(formatter, catalog.NewNotFoundError("snapshot of adapter", cfg.Adapter.ID))
	}
	tables, err := st.ListTables(ctx, cfg.Adapter.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	formatter.VerboseLog("Loaded %d table(s) from %s", len(tables), cfg.Database)

	return formatter.Success(InspectResult{
		Adapter:    info.AdapterID,
		Digest:     info.Digest,
		Generation: info.Generation,
		Tables:     tables,
	})
}
