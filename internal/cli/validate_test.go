package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidRules(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{defaultRules})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Equal(t, "✓ All rules valid (3 rule(s) in 1 file(s))\n", buf.String())
}

func TestValidateValidRulesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{defaultRules})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 3, resp.Data.Rules)
	assert.Equal(t, 1, resp.Data.Files)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateNonExistentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/rules"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestValidateUnproducedEntity(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.json", `[
  {
    "game_event": "player_death",
    "player_conversions": [{"userid": "userid", "player": "victim"}],
    "event_fires": [{"event": "kill", "player": "killer"}]
  }
]`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "E114 rules[0].fires[0].entity_field")
	assert.Contains(t, output, `entity field "killer" is not written by any remap`)
}

func TestValidateConsumedIdentifierAcrossFiles(t *testing.T) {
	// Two files each remap player_death's attacker; the second remap always
	// sees nil because the first removed the identifier.
	dir := t.TempDir()
	rule := `[
  {
    "game_event": "player_death",
    "player_conversions": [{"userid": "attacker", "player": "killer"}],
    "event_fires": [{"event": "kill", "player": "killer"}]
  }
]`
	writeFile(t, dir, "a.json", rule)
	writeFile(t, dir, "b.json", rule)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Files)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "E115", resp.Data.Errors[0].Code)
	assert.Equal(t, "rules[1].remaps[0].source_field", resp.Data.Errors[0].Field)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E115", resp.Error.Code)
}

func TestValidateReportsLoadErrorsWithRuleProblems(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "a.json", `{"oops": `)
	writeFile(t, dir, "b.json", `[
  {
    "game_event": "player_spawn",
    "player_conversions": [{"userid": "userid", "player": "player"}],
    "event_fires": [{"event": "spawn", "player": "nobody"}]
  }
]`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Errors, 2)
	assert.Equal(t, broken, resp.Data.Errors[0].Field, "load errors are located at the file")
	assert.Equal(t, "E114", resp.Data.Errors[1].Code)
	assert.Equal(t, 1, resp.Data.Files)
}

func TestLoadErrorToValidation(t *testing.T) {
	ve := loadErrorToValidation(&LoadError{Code: "E119", Message: "bad document", File: "rules.json"})
	assert.Equal(t, "E119", ve.Code)
	assert.Equal(t, "rules.json", ve.Field)
	assert.Equal(t, "bad document", ve.Message)

	ve = loadErrorToValidation(assert.AnError)
	assert.Equal(t, ErrCodeGeneric, ve.Code)
	assert.Equal(t, "load", ve.Field)
}
