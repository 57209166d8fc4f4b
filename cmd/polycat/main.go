// Command polycat places polystore allocations on a SQLite adapter and
// inspects their relational re-encoding.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/polycat/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		// Commands report their own errors; only flag and argument errors
		// reach here unprinted.
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
