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

const passingScenario = `name: kill_and_death
description: "A kill by another player fires kill and death"
rules: rules.json
roster:
  - {userid: 5, name: Mahi}
  - {userid: 9, name: Zed}
events:
  - name: player_death
    variables: {attacker: 5, userid: 9}
expect:
  - event: kill
    args: {entity: Mahi}
  - event: death
    args: {entity: Zed}
`

const failingScenario = `name: expects_suicide
description: "Wrongly expects a suicide for a kill"
rules: rules.json
roster:
  - {userid: 5, name: Mahi}
  - {userid: 9, name: Zed}
events:
  - name: player_death
    variables: {attacker: 5, userid: 9}
assertions:
  - type: trace_count
    event: suicide
    count: 1
`

// scenarioDir creates a scenarios directory holding the default rules and
// the given scenario files.
func scenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	rules, err := os.ReadFile(defaultRules)
	require.NoError(t, err)
	writeFile(t, dir, "rules.json", string(rules))

	for name, content := range scenarios {
		writeFile(t, dir, name, content)
	}
	return dir
}

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata", "scenarios")

	out, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ kill_fires_for_other_player")
	assert.Contains(t, out, "✓ self_inflicted_deaths")
	assert.Contains(t, out, "✓ unknown_player_suppressed")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"pass.yaml": passingScenario,
		"fail.yaml": failingScenario,
	})

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ kill_and_death")
	assert.Contains(t, out, "✗ expects_suicide")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFilter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"pass.yaml": passingScenario,
		"fail.yaml": failingScenario,
	})

	out, err := executeTest(t, "text", dir, "--filter", "pass*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "expects_suicide")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"broken.yaml": "name: broken\nunknown_field: true\n",
	})

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"pass.yaml": passingScenario})

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ kill_and_death (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "pass.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"kill_and_death","session":"test-session-default","trace":[`+
			`{"args":{"attacker":5,"userid":9},"event":"player_death","seq":1,"type":"raw"},`+
			`{"args":{"entity":"Mahi","killer":"Mahi","victim":"Zed"},"event":"kill","seq":2,"type":"fire"},`+
			`{"args":{"entity":"Zed","killer":"Mahi","victim":"Zed"},"event":"death","seq":3,"type":"fire"}]}`,
		string(golden))

	// The golden directory is not scanned for scenarios.
	out, err = executeTest(t, "json", dir)
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"pass.yaml": passingScenario})
	writeFile(t, dir, filepath.Join("golden", "pass.golden"), `{"stale":true}`)

	out, err := executeTest(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  *CLIError  `json:"error"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "does not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "kill.golden"),
		goldenFilePath(filepath.Join("scenarios", "kill.yaml")))
}
