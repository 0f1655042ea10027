package harness

// Trace event kinds.
const (
	KindStep    = "step"    // a scenario step
	KindStorage = "storage" // a durable storage event
	KindHistory = "history" // a history record notification
)

// Step outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeRejected   = "rejected"     // durable write failed its schema
	OutcomeSuppressed = "suppressed"   // history write equal to the stored value
	OutcomeMissing    = "missing"      // key not present
	OutcomeOutOfRange = "out_of_range" // navigation past either end
	OutcomeError      = "error"
)

// TraceEvent is one recorded step or notification.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Op      string `json:"op,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   any    `json:"value,omitempty"`
	Prev    any    `json:"prev,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps and notifications in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the state of both adapters after the last step.
	Final Final `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns the number of trace events of kind.
func (r *Result) Count(kind string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
