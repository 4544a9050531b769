package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/textscore/pkg/textscore"
	"github.com/cognicore/textscore/pkg/textscore/config"
	"github.com/cognicore/textscore/pkg/textscore/internalerr"
	"github.com/cognicore/textscore/pkg/textscore/result"
	"github.com/cognicore/textscore/pkg/textscore/store/sqlite"
)

const testMapping = `categories:
  psych:
    dream: 2.0
    mind: 1.0
  rhythm:
    beat: 0.5
crossmap:
  rhythm: music
`

func resetGlobals(t *testing.T) {
	t.Helper()
	reset := func() {
		configPath, verbose, dbPath = "", false, ""
		cfg, logger = config.Default(), zap.NewNop()
		runInput, runMapping, runEncoding = "", "", ""
		runJSONL, runAggregate, runHTML = "", "", ""
		runWorkers, runPlugins = 0, nil
		runsLimit = 20
	}
	reset()
	t.Cleanup(reset)
}

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readJSONL(t *testing.T, path string) []result.Result {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []result.Result
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r result.Result
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunCommand(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	runInput = writeFile(t, dir, "in.csv", "text\ndream beat\nmind\n")
	runMapping = writeFile(t, dir, "mapping.yaml", testMapping)
	runJSONL = defaultPathFlag
	runAggregate = filepath.Join(dir, "summary.json")

	cmd, out := newTestCommand()
	require.NoError(t, runRun(cmd, nil))

	assert.Contains(t, out.String(), "ROWS")
	assert.Contains(t, out.String(), "1.500")
	assert.Contains(t, out.String(), "0.250")
	assert.Contains(t, out.String(), "Wrote jsonl: "+filepath.Join(dir, "in.jsonl"))
	assert.Contains(t, out.String(), "Wrote aggregate: "+runAggregate)
	assert.NoFileExists(t, filepath.Join(dir, "in.html"))

	agg, err := os.ReadFile(runAggregate)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2,"mean_psych":1.5,"mean_music":0.25}`, string(agg))

	rows := readJSONL(t, filepath.Join(dir, "in.jsonl"))
	require.Len(t, rows, 2)
	assert.Equal(t, 2.0, rows[0].Score.Psych)
	assert.Equal(t, 0.5, rows[0].Score.Music)
}

func TestRunCommandFallsBackToConfig(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	runInput = writeFile(t, dir, "in.csv", "text\n<b>dream</b>\n")
	runJSONL = defaultPathFlag

	cfg.Mapping = writeFile(t, dir, "mapping.yaml", testMapping)
	cfg.Plugins = []string{"htmltext"}
	cfg.Workers = 3
	cfg.Output.Dir = filepath.Join(dir, "out")

	cmd, _ := newTestCommand()
	require.NoError(t, runRun(cmd, nil))

	rows := readJSONL(t, filepath.Join(dir, "out", "in.jsonl"))
	require.Len(t, rows, 1)
	assert.Equal(t, "<b>dream</b>", rows[0].Text)
	assert.Equal(t, 2.0, rows[0].Score.Psych)
}

func TestRunCommandErrors(t *testing.T) {
	resetGlobals(t)

	cmd, _ := newTestCommand()
	assert.ErrorIs(t, runRun(cmd, nil), internalerr.ErrMissingInput)

	runInput = writeFile(t, t.TempDir(), "in.csv", "text\na\n")
	runPlugins = []string{"nope"}
	assert.ErrorIs(t, runRun(cmd, nil), internalerr.ErrNotFound)
}

func TestRunsAndSummary(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	runInput = writeFile(t, dir, "in.csv", "text\ndream beat\nmind\n")
	runMapping = writeFile(t, dir, "mapping.yaml", testMapping)
	dbPath = filepath.Join(dir, "runs.db")

	cmd, out := newTestCommand()
	require.NoError(t, runRun(cmd, nil))
	require.NoError(t, runRun(cmd, nil))

	out.Reset()
	require.NoError(t, runRuns(cmd, nil))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4) // header, rule, two runs
	assert.Contains(t, lines[2], "in.csv")

	ctx := context.Background()
	st, err := sqlite.OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	runs, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Rows)

	out.Reset()
	require.NoError(t, runSummary(cmd, []string{runs[0].ID}))
	assert.JSONEq(t, `{"count":2,"mean_psych":1.5,"mean_music":0.25}`, out.String())

	err = runSummary(cmd, []string{"01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestRunsWithoutStore(t *testing.T) {
	resetGlobals(t)

	cmd, _ := newTestCommand()
	assert.ErrorIs(t, runRuns(cmd, nil), errNoStore)
	assert.ErrorIs(t, runSummary(cmd, []string{"x"}), errNoStore)
}

func TestRunsEmptyStore(t *testing.T) {
	resetGlobals(t)
	dbPath = filepath.Join(t.TempDir(), "runs.db")

	cmd, out := newTestCommand()
	require.NoError(t, runRuns(cmd, nil))
	assert.Equal(t, "No runs found.\n", out.String())
}

func TestWatchCommandRunsOnceBeforeWatching(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	runInput = writeFile(t, dir, "in.csv", "text\ndream\n")
	runMapping = writeFile(t, dir, "mapping.yaml", testMapping)
	runJSONL = defaultPathFlag

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd, out := newTestCommand()
	cmd.SetContext(ctx)

	// a canceled context stops watching right after the first run
	require.NoError(t, runWatch(cmd, nil))
	assert.Contains(t, out.String(), "Watching "+runInput)
	assert.FileExists(t, filepath.Join(dir, "in.jsonl"))
}

func TestWatchCommandRequiresInput(t *testing.T) {
	resetGlobals(t)
	cmd, _ := newTestCommand()
	assert.ErrorIs(t, runWatch(cmd, nil), internalerr.ErrMissingInput)
}

func TestRootCommandParsesArtifactFlags(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "in.csv", "text\ndream\n")
	htmlPath := filepath.Join(dir, "report.html")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "-i", input, "--jsonl", "--html=" + htmlPath})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "in.jsonl"))
	assert.FileExists(t, htmlPath)
	assert.NoFileExists(t, filepath.Join(dir, "in.aggregate.json"))
}

func TestOutputFlag(t *testing.T) {
	assert.Equal(t, textscore.Output{}, outputFlag(""))
	assert.Equal(t, textscore.Output{Enabled: true}, outputFlag(defaultPathFlag))
	assert.Equal(t, textscore.Output{Path: "x.jsonl"}, outputFlag("x.jsonl"))
	assert.Equal(t, textscore.Output{Path: "auto"}, outputFlag("auto"))
}

func TestRootCommandArtifactFlagNamedAuto(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "in.csv", "text\ndream\n")
	t.Chdir(dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "-i", input, "--jsonl=auto"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "auto"))
	assert.NoFileExists(t, filepath.Join(dir, "in.jsonl"))
}

func TestSetupLoadsConfig(t *testing.T) {
	resetGlobals(t)
	configPath = writeFile(t, t.TempDir(), "textscore.toml", `workers = 3
plugins = ["noop"]

[log]
level = "warn"
format = "console"
`)

	cmd, _ := newTestCommand()
	require.NoError(t, setup(cmd, nil))
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"noop"}, cfg.Plugins)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	configPath = writeFile(t, t.TempDir(), "bad.toml", "workers = 0\n")
	assert.ErrorIs(t, setup(cmd, nil), internalerr.ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LogConfig{Level: "error", Format: "json"}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = newLogger(config.LogConfig{Level: "error", Format: "json"}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "textscore 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.csv", truncate("short.csv", 40))
	assert.Equal(t, "...ng/in.csv", truncate("/a/very/long/in.csv", 12))
}
