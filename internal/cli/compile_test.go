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

// defaultRules is the three-rule player_death/player_hurt/player_spawn set.
var defaultRules = filepath.Join("..", "compiler", "testdata", "default.json")

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCompileValidRules(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{defaultRules})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 3 rule(s): 3 raw event(s), 6 derived event(s)")
	assert.Contains(t, output, "attacker → killer")
	assert.Contains(t, output, "fire kill(killer) if not_self_inflicted")
	assert.Contains(t, output, "fire death(victim)\n")
	assert.Contains(t, output, "Derived events: kill, death, suicide, attack, hurt, spawn")
	assert.Contains(t, output, "Rules hash: ")
}

func TestCompileValidRulesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{defaultRules})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Rules, 3)
	assert.NotEmpty(t, resp.Data.RulesHash)

	death := resp.Data.Rules[0]
	assert.Equal(t, "player_death", death.RawEvent)
	require.Len(t, death.Fires, 3)
	assert.Equal(t, "not_self_inflicted", death.Fires[0].Condition)
	assert.Empty(t, death.Fires[1].Condition)
}

func TestCompileFormatsAgree(t *testing.T) {
	hashes := make(map[string]string)
	for _, name := range []string{"default.json", "default.yaml", "default.cue"} {
		path := filepath.Join("..", "compiler", "testdata", name)
		result, errs := LoadRules(path, LoadModeFailFast)
		require.Empty(t, errs, name)
		hashes[name] = result.RulesHash
	}

	assert.Equal(t, hashes["default.json"], hashes["default.yaml"])
	assert.Equal(t, hashes["default.json"], hashes["default.cue"])
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{defaultRules, "--output", outputFile})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote rules to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Rules, 3)
	assert.Equal(t, "spawn", result.Rules[2].Fires[0].TargetEvent)
}

func TestCompileOutputToUnwritablePath(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "missing", "dir", "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{defaultRules, "-o", outputFile})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeWriteFailed)
}

func TestCompileNonExistentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/rules.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, buf.String(), "not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, buf.String(), "no rule files found")
}

func TestCompileUnknownCondition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.json", `[
  {
    "game_event": "player_death",
    "player_conversions": [{"userid": "attacker", "player": "killer"}],
    "event_fires": [{"event": "kill", "player": "killer", "condition": "headshot"}]
  }
]`)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Compilation failed")
	assert.Contains(t, output, "E117")
	assert.Contains(t, output, `unknown condition "headshot"`)
}

func TestCompileErrorsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `not json`)
	writeFile(t, dir, "b.yaml", "- game_event: \"\"\n")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Error  *CLIError  `json:"error"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Len(t, resp.Data, 2, "every broken file is reported")
}

func TestCalculateStats(t *testing.T) {
	result, errs := LoadRules(defaultRules, LoadModeFailFast)
	require.Empty(t, errs)

	stats := calculateStats(&CompilationResult{Rules: result.Rules})
	assert.Equal(t, 3, stats.RuleCount)
	assert.Equal(t, []string{"player_death", "player_hurt", "player_spawn"}, stats.RawEvents)
	assert.Equal(t, 5, stats.RemapCount)
	assert.Equal(t, 6, stats.FireCount)
	assert.Equal(t, 3, stats.GuardedFires)
}
