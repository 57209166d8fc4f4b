package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polycat/internal/ir"
)

// ValidationResult summarizes a compiled schema.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Digest      string `json:"digest"`
	Namespaces  int    `json:"namespaces"`
	Entities    int    `json:"entities"`
	Columns     int    `json:"columns"`
	Allocations int    `json:"allocations"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ Schema valid (%s)\n  %d namespace(s), %d entities, %d columns, %d allocation(s)\n",
		r.Digest, r.Namespaces, r.Entities, r.Columns, r.Allocations)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Compile and validate a CUE schema",
		Long: `Compile a CUE schema file or package directory and check it for
duplicate ids, unknown types, dangling references and invalid placements.

All problems are reported at once. Nothing is written to the database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	snap, err := loadSchema(path)
	if err != nil {
		return fail(formatter, err)
	}
	data := snap.Data()
	formatter.VerboseLog("Compiled %s: %d allocation(s)", path, len(data.Allocations))

	digest, err := ir.SchemaDigest(data)
	if err != nil {
		return fail(formatter, err)
	}
	return formatter.Success(ValidationResult{
		Valid:       true,
		Digest:      digest,
		Namespaces:  len(data.Namespaces),
		Entities:    len(data.Entities),
		Columns:     len(data.Columns),
		Allocations: len(data.Allocations),
	})
}
