package harness

import (
	"sort"
)

// TraceEvent is one processed message.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Msg     string         `json:"msg"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step was accepted and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every processed message in processing order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final state in its generic JSON form.
	State map[string]any `json:"state,omitempty"`

	// RunID is the journal run id when the scenario was recorded.
	RunID string `json:"run_id,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a processed message to the trace.
func (r *Result) AddTrace(seq int64, msg string, payload map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     seq,
		Msg:     msg,
		Payload: payload,
	})
}

// MsgCount is the number of times one message name was processed.
type MsgCount struct {
	Msg   string `json:"msg"`
	Count int    `json:"count"`
}

// Counts returns how often each message name appears in the trace,
// sorted by name.
func (r *Result) Counts() []MsgCount {
	byName := make(map[string]int)
	for _, event := range r.Trace {
		byName[event.Msg]++
	}
	counts := make([]MsgCount, 0, len(byName))
	for name, n := range byName {
		counts = append(counts, MsgCount{Msg: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Msg < counts[j].Msg
	})
	return counts
}
