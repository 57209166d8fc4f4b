package harness

// Outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq        int64    `json:"seq"`
	Op         string   `json:"op"`
	Allocation int64    `json:"allocation,omitempty"`
	Table      int64    `json:"table,omitempty"`
	Outcome    string   `json:"outcome"` // OutcomeOK or the error code
	Tables     []string `json:"tables,omitempty"`
	Statements int      `json:"statements,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// SQL holds the statements of each lower step, keyed by step index.
	SQL map[int][]string `json:"sql,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		SQL:    make(map[int][]string),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
