package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/ir"
)

// PlacedAllocation describes one allocation realized by place.
type PlacedAllocation struct {
	AllocationID int64        `json:"allocation_id"`
	Model        ir.DataModel `json:"model"`
	Entity       string       `json:"entity"`
	Tables       []string     `json:"tables"`
}

// PlaceResult is the outcome of the place command.
type PlaceResult struct {
	Adapter int64              `json:"adapter"`
	Token   string             `json:"token"`
	Placed  []PlacedAllocation `json:"placed"`
	Skipped []int64            `json:"skipped,omitempty"`
}

func (r PlaceResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Placed %d allocation(s) on adapter %d\n", len(r.Placed), r.Adapter)
	for _, p := range r.Placed {
		fmt.Fprintf(&b, "  %d  %-10s %-20s %s\n", p.AllocationID, p.Model, p.Entity, strings.Join(p.Tables, ", "))
	}
	for _, id := range r.Skipped {
		fmt.Fprintf(&b, "  %d  already placed\n", id)
	}
	return b.String()
}

// PlaceOptions holds place command options.
type PlaceOptions struct {
	Schema string
}

// NewPlaceCommand creates the place command.
func NewPlaceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlaceOptions{}

	cmd := &cobra.Command{
		Use:   "place [allocation-id...]",
		Short: "Place allocations on the adapter",
		Long: `Place allocations of the schema on the configured adapter.

Each allocation gets its physical tables in the catalog and in the database.
Without ids, every allocation assigned to the adapter that is not yet placed
is placed. The catalog is persisted when the command finishes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlace(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "CUE schema file or directory (overrides config)")

	return cmd
}

func runPlace(rootOpts *RootOptions, opts *PlaceOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	ids, err := parseIDs(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}

	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}
	schemaPath := cfg.Schema
	if opts.Schema != "" {
		schemaPath = opts.Schema
	}
	snap, err := loadSchema(schemaPath)
	if err != nil {
		return fail(formatter, err)
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, cfg, rootOpts.Verbose, false)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}

	result := PlaceResult{Adapter: s.adapter.ID(), Token: s.adapter.Token()}
	explicit := len(ids) > 0
	if !explicit {
		for _, alloc := range snap.AllocationsOn(cfg.Adapter.ID) {
			ids = append(ids, alloc.ID)
		}
	}
	for _, id := range ids {
		if _, err := s.adapter.Catalog().GetAllocation(id); err == nil && !explicit {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		formatter.VerboseLog("Placing allocation %d", id)
		e, err := s.adapter.Place(ctx, snap, id)
		if err != nil {
			s.Close(ctx)
			return fail(formatter, err)
		}
		result.Placed = append(result.Placed, placedAllocation(snap, e))
	}

	if err := s.Close(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err, nil)
	}
	return formatter.Success(result)
}

func placedAllocation(snap *ir.Snapshot, e catalog.PhysicalEntity) PlacedAllocation {
	ref := e.Ref()
	p := PlacedAllocation{AllocationID: ref.AllocationID, Model: ref.Model}
	if alloc, ok := snap.Allocation(ref.AllocationID); ok {
		entity, _ := snap.Entity(alloc.LogicalID)
		ns, _ := snap.Namespace(entity.NamespaceID)
		p.Entity = ns.Name + "." + entity.Name
	}
	for _, t := range e.PhysicalTables() {
		p.Tables = append(p.Tables, t.Name)
	}
	return p
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid allocation id %q: must be a positive integer", arg)
	}
	return id, nil
}
