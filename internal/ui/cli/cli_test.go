package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"querysync/internal/data/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fixture(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("..", "..", "engine", "query", "testdata", "nodeps.jsonl"))
	require.NoError(t, err)
	return p
}

// writeWorkspace lays out a workspace whose queries are answered from the
// recorded fixture.
func writeWorkspace(t *testing.T, extra string) (root, cfgPath string) {
	t.Helper()
	root = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "MODULE.bazel"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "java", "com", "test"), 0o755))

	cfg := fmt.Sprintf(`version = 1

[project]
import_roots = ["java/com/test"]

[query]
invoker = "replay"
replay_file = '%s'
%s`, fixture(t), extra)
	cfgPath = filepath.Join(root, "querysync.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return root, cfgPath
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestRun_SyncText(t *testing.T) {
	root, cfgPath := writeWorkspace(t, "")

	out, errOut, code := runCLI(t, "--config", cfgPath, "--workspace", root, "sync")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "changed")
	assert.Contains(t, out, "module .workspace")
	assert.Contains(t, out, "java/com/test")
	assert.Contains(t, out, "com.test")
}

func TestRun_SyncJSONWithOutput(t *testing.T) {
	root, cfgPath := writeWorkspace(t, "")

	out, errOut, code := runCLI(t, "--config", cfgPath, "--workspace", root, "--format", "json", "sync", "--output", "project.json")
	require.Equal(t, 0, code, errOut)

	var report struct {
		Changed     bool   `json:"changed"`
		Fingerprint string `json:"fingerprint"`
		Query       struct {
			Rules int `json:"rules"`
		} `json:"query"`
		Project struct {
			Modules []struct {
				Name string `json:"name"`
			} `json:"modules"`
		} `json:"project"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Changed)
	assert.NotEmpty(t, report.Fingerprint)
	assert.Equal(t, 1, report.Query.Rules)
	require.Len(t, report.Project.Modules, 1)
	assert.Equal(t, ".workspace", report.Project.Modules[0].Name)

	written, err := os.ReadFile(filepath.Join(root, ".querysync", "project.json"))
	require.NoError(t, err)
	assert.Contains(t, string(written), `"package_prefix": "com.test"`)
}

func TestRun_HistoryAfterSyncs(t *testing.T) {
	root, cfgPath := writeWorkspace(t, "\n[db]\nenabled = true\n")

	for i := 0; i < 2; i++ {
		_, errOut, code := runCLI(t, "--config", cfgPath, "--workspace", root, "sync")
		require.Equal(t, 0, code, errOut)
	}

	out, errOut, code := runCLI(t, "--config", cfgPath, "--workspace", root, "--format", "yaml", "history")
	require.Equal(t, 0, code, errOut)
	var runs []history.Run
	require.NoError(t, yaml.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Changed)
	assert.False(t, runs[1].Changed, "second sync sees the fingerprint recorded by the first")
	assert.Equal(t, history.StatusOK, runs[1].Status)

	out, errOut, code = runCLI(t, "--config", cfgPath, "--workspace", root, "history", "--limit", "1")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, runs[1].Fingerprint)
}

func TestRun_HistoryDisabled(t *testing.T) {
	root, cfgPath := writeWorkspace(t, "")
	_, errOut, code := runCLI(t, "--config", cfgPath, "--workspace", root, "history")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "NOT_SUPPORTED")
}

func TestRun_Query(t *testing.T) {
	root, cfgPath := writeWorkspace(t, "")

	out, errOut, code := runCLI(t, "--config", cfgPath, "--workspace", root, "--format", "json", "query")
	require.Equal(t, 0, code, errOut)
	var report queryReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "(//java/com/test/...:*)", report.Expression)
	require.NotEmpty(t, report.Command)
	assert.Equal(t, "bazel", report.Command[0])
	assert.Equal(t, report.Expression, report.Command[len(report.Command)-1])

	out, errOut, code = runCLI(t, "--config", cfgPath, "--workspace", root, "query", "--run")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "rules=1")
	assert.Contains(t, out, "//java/com/test:test")
	assert.Contains(t, out, "java_library")
}

func TestRun_ReplayFlagOverridesInvoker(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "querysync.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[project]\nimport_roots = [\"java/com/test\"]\n"), 0o644))

	out, errOut, code := runCLI(t, "--config", cfgPath, "--workspace", root, "--replay", fixture(t), "query", "--run", "--format", "yaml")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "kind: java_library")
}

func TestRun_Errors(t *testing.T) {
	_, errOut, code := runCLI(t, "--format", "xml", "sync")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unsupported --format")

	_, errOut, code = runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "sync")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "load config")

	root := t.TempDir()
	cfgPath := filepath.Join(root, "querysync.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[project]\nimport_roots = [\"java\"]\n[query]\ninvoker = \"replay\"\n"), 0o644))
	_, errOut, code = runCLI(t, "--config", cfgPath, "sync")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "replay_file")
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseSince("2026-02-13")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSince("2026-02-13T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 13, 8, 30, 0, 0, time.UTC), got)

	before := time.Now().UTC()
	got, err = parseSince("2h")
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(-2*time.Hour), got, time.Minute)

	_, err = parseSince("yesterday")
	assert.ErrorContains(t, err, "--since")
	_, err = parseSince("-2h")
	assert.Error(t, err)
}

func TestDiscoverDefaultConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "MODULE.bazel"), nil, 0o644))
	nested := filepath.Join(root, "java", "com")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := discoverDefaultConfig("", nested)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(nested, "querysync.toml"),
		filepath.Join(root, "querysync.toml"),
	}, got)

	got, err = discoverDefaultConfig("", root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "querysync.toml")}, got, "duplicates are dropped")

	_, err = discoverDefaultConfig("", " ")
	assert.Error(t, err)
}
