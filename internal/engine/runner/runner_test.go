package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"querysync/internal/core/errors"
	"querysync/internal/engine/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	envHelper  = "GO_WANT_HELPER_PROCESS"
	envFixture = "QUERYSYNC_TEST_FIXTURE"
	envExpr    = "QUERYSYNC_TEST_EXPR"
)

// mockCommand re-runs the test binary as a fake build tool.
func mockCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), envHelper+"=1")
	return cmd
}

// TestHelperProcess is the fake build tool.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(envHelper) != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "no command specified")
		os.Exit(1)
	}

	printFixture := func() {
		data, err := os.ReadFile(os.Getenv(envFixture))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(data)
	}

	switch args[0] {
	case "bazel-ok":
		if args[len(args)-1] != os.Getenv(envExpr) {
			fmt.Fprintf(os.Stderr, "unexpected expression %q\n", args[len(args)-1])
			os.Exit(2)
		}
		printFixture()
		os.Exit(0)
	case "bazel-queryfile":
		for i, arg := range args {
			if arg == "--query_file" && i+1 < len(args) {
				data, err := os.ReadFile(args[i+1])
				if err != nil || string(data) != os.Getenv(envExpr) {
					fmt.Fprintln(os.Stderr, "bad query file")
					os.Exit(2)
				}
				printFixture()
				os.Exit(0)
			}
		}
		fmt.Fprintln(os.Stderr, "missing --query_file")
		os.Exit(2)
	case "bazel-fail":
		fmt.Fprintln(os.Stderr, "ERROR: no such package 'java/com/missing'")
		os.Exit(7)
	case "bazel-garbage":
		fmt.Println("this is not json")
		os.Exit(0)
	case "bazel-sleep":
		time.Sleep(10 * time.Second)
		os.Exit(0)
	}
	os.Exit(1)
}

func fixturePath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("..", "query", "testdata", "nodeps.jsonl"))
	require.NoError(t, err)
	return p
}

func testSpec() query.Spec {
	return query.NewSpec([]string{"//java/com/test/...:*"}, nil)
}

func newTestRunner(opts LocalOptions) *LocalRunner {
	r := NewLocalRunner(opts, nil)
	r.commandFunc = mockCommand
	return r
}

func TestLocalRunner_RunQuery(t *testing.T) {
	t.Setenv(envFixture, fixturePath(t))
	t.Setenv(envExpr, testSpec().Expression())

	r := newTestRunner(LocalOptions{Binary: "bazel-ok", WorkspaceRoot: t.TempDir()})
	summary, err := r.RunQuery(context.Background(), testSpec())
	require.NoError(t, err)

	_, ok := summary.Rule(query.MustParseLabel("//java/com/test:test"))
	assert.True(t, ok)
	assert.Equal(t, query.Stats{Rules: 1, SourceFiles: 2, GeneratedFiles: 2}, summary.Stats())
}

func TestLocalRunner_SpillsLongExpression(t *testing.T) {
	spec := query.NewSpec([]string{"//java/com/test/...:*", "//javatests/com/test/...:*"}, []string{"//java/com/test/excluded/...:*"})
	t.Setenv(envFixture, fixturePath(t))
	t.Setenv(envExpr, spec.Expression())

	projectDir := t.TempDir()
	r := newTestRunner(LocalOptions{
		Binary:               "bazel-queryfile",
		ProjectDir:           projectDir,
		MaxCommandLineLength: 16,
	})
	_, err := r.RunQuery(context.Background(), spec)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(projectDir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries, "query file is removed after the run")
}

func TestLocalRunner_Errors(t *testing.T) {
	t.Setenv(envFixture, fixturePath(t))

	t.Run("non-zero exit", func(t *testing.T) {
		_, err := newTestRunner(LocalOptions{Binary: "bazel-fail"}).RunQuery(context.Background(), testSpec())
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeQueryExecution))
		assert.Contains(t, err.Error(), "no such package")
	})

	t.Run("malformed output", func(t *testing.T) {
		_, err := newTestRunner(LocalOptions{Binary: "bazel-garbage"}).RunQuery(context.Background(), testSpec())
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeQueryParse))
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		_, err := newTestRunner(LocalOptions{Binary: "bazel-sleep", Timeout: 200 * time.Millisecond}).
			RunQuery(context.Background(), testSpec())
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeQueryExecution))
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("missing binary", func(t *testing.T) {
		r := NewLocalRunner(LocalOptions{Binary: filepath.Join(t.TempDir(), "no-such-bazel")}, nil)
		_, err := r.RunQuery(context.Background(), testSpec())
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeQueryExecution))
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := newTestRunner(LocalOptions{Binary: "bazel-ok"}).RunQuery(context.Background(), query.NewSpec(nil, nil))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	})
}

func TestCommand(t *testing.T) {
	spec := query.NewSpec([]string{"//a/...:*"}, []string{"//a/x/...:*"})
	cmd, err := NewCommand("bazel", []string{"--output_base=/tmp/ob"}, []string{"--keep_going"}, spec)
	require.NoError(t, err)

	want := []string{"--output_base=/tmp/ob", "query"}
	want = append(want, query.DefaultFlags...)
	want = append(want, "--keep_going", "(//a/...:*) - //a/x/...:*")
	assert.Equal(t, want, cmd.Args())
	assert.True(t, strings.HasPrefix(cmd.String(), "bazel --output_base=/tmp/ob query "))

	spilled := cmd.WithQueryFile("/tmp/q.txt")
	args := spilled.Args()
	assert.Equal(t, []string{"--query_file", "/tmp/q.txt"}, args[len(args)-2:])
	assert.Equal(t, "(//a/...:*) - //a/x/...:*", cmd.Args()[len(cmd.Args())-1], "original is unchanged")

	_, err = NewCommand("", nil, nil, spec)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	_, err = NewCommand("bazel", nil, []string{"keep_going"}, spec)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestReplayRunner(t *testing.T) {
	r := NewReplayRunner(fixturePath(t), nil)
	summary, err := r.RunQuery(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stats().Rules)

	_, err = NewReplayRunner(filepath.Join(t.TempDir(), "missing.jsonl"), nil).RunQuery(context.Background(), testSpec())
	assert.True(t, errors.IsCode(err, errors.CodeQueryExecution))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RunQuery(ctx, testSpec())
	assert.True(t, errors.IsCode(err, errors.CodeQueryExecution))
}

func TestNew(t *testing.T) {
	r, err := New(Options{Invoker: InvokerLocal, Local: LocalOptions{Binary: "bazel"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalRunner{}, r)

	r, err = New(Options{Invoker: "REPLAY", ReplayFile: "q.jsonl"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ReplayRunner{}, r)

	_, err = New(Options{Invoker: InvokerReplay}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	_, err = New(Options{Invoker: "remote"}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}
