package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/polycat/internal/adapter"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/config"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/logging"
	"github.com/roach88/polycat/internal/schemaspec"
	"github.com/roach88/polycat/internal/store"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Adapter != 0 {
		cfg.Adapter.ID = opts.Adapter
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// loadSchema compiles a CUE file, or the CUE package when path is a
// directory.
func loadSchema(path string) (*ir.Snapshot, error) {
	if path == "" {
		return nil, errors.New("no schema given: pass --schema or set schema in the config")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	if info.IsDir() {
		return schemaspec.CompileDir(path)
	}
	return schemaspec.CompileFile(path)
}

// session is one activation of the configured adapter for the duration of
// a command.
type session struct {
	cfg     config.Config
	logger  *zap.SugaredLogger
	store   *store.Store
	adapter *adapter.Adapter
	loop    chan error
	cancel  context.CancelFunc
}

// openSession opens the database and activates the adapter. The mutation
// loop runs until Close.
func openSession(ctx context.Context, cfg config.Config, verbose, readOnly bool) (*session, error) {
	logger, err := logging.New(cfg.Log, verbose)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	native, err := cfg.NativeModels()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	a, err := adapter.Activate(ctx, adapter.Options{
		AdapterID: cfg.Adapter.ID,
		Store:     st,
		DB:        st.DB(),
		Native:    native,
		ReadOnly:  readOnly || cfg.Adapter.ReadOnly,
		Logger:    logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s := &session{cfg: cfg, logger: logger, store: st, adapter: a, loop: make(chan error, 1), cancel: cancel}
	go func() { s.loop <- a.Run(loopCtx) }()
	return s, nil
}

// Close deactivates the adapter, persisting its catalog, and closes the
// database.
func (s *session) Close(ctx context.Context) error {
	defer s.cancel()
	err := s.adapter.Deactivate(ctx)
	if lerr := <-s.loop; lerr != nil {
		s.logger.Debugw("mutation loop exited", "error", lerr)
	}
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	_ = s.logger.Sync()
	return err
}

// classify maps an error to its exit code and CLI error code.
func classify(err error) (int, string) {
	var (
		compileErr *schemaspec.CompileError
		validErrs  schemaspec.ValidationErrors
	)
	switch {
	case catalog.IsNotFound(err):
		return ExitFailure, ErrCodeNotFound
	case catalog.IsUnsupported(err):
		return ExitFailure, ErrCodeUnsupported
	case catalog.IsInvariantViolation(err):
		return ExitFailure, ErrCodeInvariant
	case errors.As(err, &compileErr), errors.As(err, &validErrs):
		return ExitFailure, ErrCodeSchema
	case errors.Is(err, store.ErrDigestMismatch):
		return ExitCommandError, ErrCodeStore
	case errors.Is(err, os.ErrNotExist):
		return ExitCommandError, ErrCodeNotFound
	default:
		return ExitFailure, ErrCodeGeneric
	}
}

// fail reports err with the code classify assigns it.
func fail(f *OutputFormatter, err error) error {
	exitCode, code := classify(err)
	var details any
	var validErrs schemaspec.ValidationErrors
	if errors.As(err, &validErrs) {
		details = []schemaspec.ValidationError(validErrs)
	}
	return f.Fail(exitCode, code, err, details)
}
