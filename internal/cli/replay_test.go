package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniflow/internal/sample"
	"github.com/roach88/uniflow/internal/store"
)

func executeReplay(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// tamperedJournal appends a run whose recorded state could not have come
// from its messages.
func tamperedJournal(t *testing.T, dbPath string) string {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.CreateRun(ctx, store.NewRunID(), "tampered", sample.State{})
	require.NoError(t, err)
	require.NoError(t, st.WriteStep(ctx, store.Step{
		RunID:   run.ID,
		Seq:     1,
		MsgType: "increment",
		Msg:     json.RawMessage(`{"by":1}`),
		State:   json.RawMessage(`{"counter":{"count":99}}`),
	}))
	return run.ID
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := executeReplay(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayNonExistentDatabase(t *testing.T) {
	_, err := executeReplay(t, "text", "--db", "/nonexistent/path/test.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestReplayEmptyDatabase(t *testing.T) {
	output, err := executeReplay(t, "text", "--db", emptyJournal(t))
	require.NoError(t, err)
	assert.Contains(t, output, "0 run(s)")
	assert.Contains(t, output, "All runs verified deterministic")
}

func TestReplayRecordedRuns(t *testing.T) {
	dbPath, ids := recordScenarios(t, "load_value", "ticks_after_load", "fetch_failure", "cancel_search")

	output, err := executeReplay(t, "text", "--db", dbPath)
	require.NoError(t, err)

	for _, id := range ids {
		assert.Contains(t, output, id)
	}
	assert.Contains(t, output, "4 run(s)")
	assert.Contains(t, output, "All runs verified deterministic")
}

func TestReplayRecordedRunsJSON(t *testing.T) {
	dbPath, ids := recordScenarios(t, "load_value", "ticks_after_load")

	output, err := executeReplay(t, "json", "--db", dbPath)
	require.NoError(t, err)

	var response struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
	assert.True(t, response.Data.AllDeterministic)
	require.Len(t, response.Data.Runs, 2)
	assert.Equal(t, ids[0], response.Data.Runs[0].RunID)
	assert.Equal(t, 2, response.Data.Runs[0].Steps)
	assert.Equal(t, 6, response.Data.Runs[1].Steps)
}

func TestReplayDetectsMismatch(t *testing.T) {
	dbPath, _ := recordScenarios(t, "load_value")
	tamperedID := tamperedJournal(t, dbPath)

	output, err := executeReplay(t, "text", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "determinism verification failed")
	assert.Contains(t, output, tamperedID)
	assert.Contains(t, output, "differs from the recording at step 1")
}

func TestReplaySpecificRunJSON(t *testing.T) {
	dbPath, ids := recordScenarios(t, "load_value")
	tamperedID := tamperedJournal(t, dbPath)

	// The recorded run alone is deterministic.
	output, err := executeReplay(t, "json", "--db", dbPath, "--run", ids[0])
	require.NoError(t, err)
	var ok struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &ok))
	assert.Equal(t, 1, ok.Data.TotalRuns)
	assert.True(t, ok.Data.AllDeterministic)

	output, err = executeReplay(t, "json", "--db", dbPath, "--run", tamperedID)
	require.Error(t, err)
	var failed CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &failed))
	assert.Equal(t, "error", failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, ErrCodeMismatch, failed.Error.Code)
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath, _ := recordScenarios(t, "load_value")

	_, err := executeReplay(t, "text", "--db", dbPath, "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestReplayHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "deterministic")
	assert.Contains(t, output, "--db")
	assert.Contains(t, output, "--run")
}

func TestSameJSON(t *testing.T) {
	state := sample.State{Counter: sample.CounterState{Count: 3}}
	recorded, err := json.Marshal(state)
	require.NoError(t, err)

	same, err := sameJSON(state, recorded)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = sameJSON(sample.State{}, recorded)
	require.NoError(t, err)
	assert.False(t, same)

	_, err = sameJSON(state, json.RawMessage(`{not json`))
	assert.Error(t, err)
}
