package harness

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/store"
)

// validIdentifier matches the physical table names the catalog derives.
// Only alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Op)
		if event.Allocation != 0 {
			fmt.Fprintf(&buf, " allocation=%d", event.Allocation)
		}
		if event.Table != 0 {
			fmt.Fprintf(&buf, " table=%d", event.Table)
		}
		fmt.Fprintf(&buf, " -> %s\n", event.Outcome)
	}

	return buf.String()
}

// AssertionContext provides the state assertions inspect.
type AssertionContext struct {
	Catalog *catalog.StoreCatalog
	Store   *store.Store
	Ctx     context.Context
}

// assertTables checks the catalog's physical table names in id order.
func assertTables(c *catalog.StoreCatalog, trace []TraceEvent, assertion Assertion) error {
	var names []string
	for _, t := range c.Tables() {
		names = append(names, t.Name)
	}
	if !equalStrings(names, assertion.Names) {
		return &AssertionError{
			Type:     AssertTables,
			Expected: fmt.Sprintf("%v", assertion.Names),
			Actual:   fmt.Sprintf("%v", names),
			Trace:    trace,
		}
	}
	return nil
}

// assertColumns checks the column names of one physical table.
func assertColumns(c *catalog.StoreCatalog, trace []TraceEvent, assertion Assertion) error {
	for _, t := range c.Tables() {
		if t.Name != assertion.Table {
			continue
		}
		if got := t.ColumnNames(); !equalStrings(got, assertion.Columns) {
			return &AssertionError{
				Type:     AssertColumns,
				Expected: fmt.Sprintf("%s%v", assertion.Table, assertion.Columns),
				Actual:   fmt.Sprintf("%s%v", assertion.Table, got),
				Trace:    trace,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertColumns,
		Expected: fmt.Sprintf("table %s in the catalog", assertion.Table),
		Actual:   "not found",
		Trace:    trace,
	}
}

// assertRowCount counts the rows stored in one physical table.
func assertRowCount(ctx context.Context, st *store.Store, trace []TraceEvent, assertion Assertion) error {
	// Validate table name to prevent SQL injection
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must be alphanumeric with underscores", assertion.Table)
	}

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, assertion.Table)
	if err := st.DB().QueryRowContext(ctx, query).Scan(&count); err != nil {
		return fmt.Errorf("row_count query on %s failed: %w", assertion.Table, err)
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d row(s) in %s", assertion.Count, assertion.Table),
			Actual:   fmt.Sprintf("%d row(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertStatements checks the SQL of a lower step. Count zero skips the
// count check.
func assertStatements(result *Result, assertion Assertion) error {
	sqls, ok := result.SQL[assertion.Step]
	if !ok {
		return &AssertionError{
			Type:     AssertStatements,
			Expected: fmt.Sprintf("statements from step %d", assertion.Step),
			Actual:   "step is not a successful lower",
			Trace:    result.Trace,
		}
	}
	if assertion.Count > 0 && len(sqls) != assertion.Count {
		return &AssertionError{
			Type:     AssertStatements,
			Expected: fmt.Sprintf("%d statement(s)", assertion.Count),
			Actual:   fmt.Sprintf("%d statement(s): %v", len(sqls), sqls),
			Trace:    result.Trace,
		}
	}
	joined := strings.Join(sqls, "\n")
	for _, fragment := range assertion.Contains {
		if !strings.Contains(joined, fragment) {
			return &AssertionError{
				Type:     AssertStatements,
				Expected: fmt.Sprintf("SQL containing %q", fragment),
				Actual:   joined,
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides catalog and database access.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTables, AssertColumns:
			if actx == nil || actx.Catalog == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a catalog", i, assertion.Type)
			} else if assertion.Type == AssertTables {
				err = assertTables(actx.Catalog, result.Trace, assertion)
			} else {
				err = assertColumns(actx.Catalog, result.Trace, assertion)
			}
		case AssertRowCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: row_count requires database context", i)
			} else {
				err = assertRowCount(actx.Ctx, actx.Store, result.Trace, assertion)
			}
		case AssertStatements:
			err = assertStatements(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
