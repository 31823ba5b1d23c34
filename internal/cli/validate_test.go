package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configTestdata = "../config/testdata"

func executeValidate(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidConfig(t *testing.T) {
	output, err := executeValidate(t, "text", filepath.Join(configTestdata, "full.cue"))
	require.NoError(t, err)

	assert.Contains(t, output, "full.cue")
	assert.Contains(t, output, "executor.retire")
	assert.Contains(t, output, "cancel")
	assert.Contains(t, output, "journal.db")
}

func TestValidateValidConfigJSON(t *testing.T) {
	output, err := executeValidate(t, "json", filepath.Join(configTestdata, "partial.cue"))
	require.NoError(t, err)

	var result ValidationResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	require.NotNil(t, result.Config)
	assert.Equal(t, int64(2), result.Config.Executor.MaxConcurrency)
	assert.True(t, result.Config.Executor.CatchErrors)
	assert.Equal(t, "keep", result.Config.Executor.Retire)
	assert.Equal(t, "info", result.Config.Log.Level)
}

func TestValidateEmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.cue")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	output, err := executeValidate(t, "json", path)
	require.NoError(t, err)

	var result ValidationResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	require.NotNil(t, result.Config)
	assert.Equal(t, int64(0), result.Config.Executor.MaxConcurrency)
	assert.Equal(t, "", result.Config.Store.Path)
}

func TestValidateUnknownField(t *testing.T) {
	output, err := executeValidate(t, "text", filepath.Join(configTestdata, "unknown_field.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, output, "unknown_field.cue")
	assert.Contains(t, output, "retries")
}

func TestValidateSyntaxErrorJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("executor: {\n"), 0644))

	output, err := executeValidate(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.False(t, result.Valid)
	assert.Nil(t, result.Config)
	require.Len(t, result.Errors, 1)
	assert.NotEmpty(t, result.Errors[0].Message)
	assert.Greater(t, result.Errors[0].Line, 0)
}

func TestValidateNonExistentFile(t *testing.T) {
	output, err := executeValidate(t, "text", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to read config")
	assert.Empty(t, output)
}

func TestValidateMissingArgument(t *testing.T) {
	_, err := executeValidate(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestValidateVerboseOutput(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", Verbose: true}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{filepath.Join(configTestdata, "full.cue")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Validating")

	var result ValidationResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result), "verbose logs must not corrupt JSON")
	assert.True(t, result.Valid)
}
