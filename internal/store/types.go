package store

import (
	"encoding/json"
	"errors"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded Program run.
type Run struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	CreatedSeq   int64           `json:"created_seq"`
	InitialState json.RawMessage `json:"initial_state"`
}

// Step is one processed message and the state it produced.
type Step struct {
	RunID   string          `json:"run_id"`
	Seq     int64           `json:"seq"`
	MsgType string          `json:"msg_type"`
	Msg     json.RawMessage `json:"msg"`
	State   json.RawMessage `json:"state"`
}
