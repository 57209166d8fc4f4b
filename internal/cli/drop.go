package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DropResult is the outcome of the drop command.
type DropResult struct {
	Adapter      int64 `json:"adapter"`
	AllocationID int64 `json:"allocation_id"`
}

func (r DropResult) String() string {
	return fmt.Sprintf("✓ Dropped allocation %d from adapter %d\n", r.AllocationID, r.Adapter)
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop <allocation-id>",
		Short: "Drop a placed allocation",
		Long: `Remove an allocation and its physical tables from the adapter's
catalog and database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrop(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDrop(opts *RootOptions, arg string, cmd *cobra.Command) error {
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
	s, err := openSession(ctx, cfg, opts.Verbose, false)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	if err := s.adapter.Drop(ctx, id); err != nil {
		s.Close(ctx)
		return fail(formatter, err)
	}
	if err := s.Close(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	return formatter.Success(DropResult{Adapter: cfg.Adapter.ID, AllocationID: id})
}
