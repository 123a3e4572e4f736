package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

func testExecutor(t *testing.T) *Executor {
	t.Helper()
	cfg := config.Default().Executor
	cfg.PostCommandDelayMs = 0 // keep tests fast
	return New(cfg, t.TempDir())
}

func requireNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not installed")
	}
}

func TestScrubEnv(t *testing.T) {
	environ := []string{
		"PATH=/usr/bin",
		"HOME=/home/agent",
		"AWS_SECRET_ACCESS_KEY=supersecret",
		"DATABASE_URL=postgres://x",
		"FORGE_WORKSPACE=/ws",
		"FORGE_AGENT_FLAG=1",
		"NODE_ENV=development",
		"malformed",
	}

	got := scrubEnv(environ, []string{"FORGE_"})
	assert.ElementsMatch(t, []string{
		"PATH=/usr/bin",
		"HOME=/home/agent",
		"FORGE_WORKSPACE=/ws",
		"FORGE_AGENT_FLAG=1",
		"NODE_ENV=development",
	}, got)
}

func TestBuildDriver_EscapesCommand(t *testing.T) {
	script := buildDriver(`echo 'it''s fine'`, 0)
	assert.Contains(t, script, `childExec('echo \'it\'\'s fine\'')`)
	assert.NotContains(t, script, "childExec('echo 'it")

	script = buildDriver("printf a\nb", 0)
	assert.Contains(t, script, `\n`)
}

func TestBuildDriver_PostDelay(t *testing.T) {
	script := buildDriver("npm test", 5*time.Second)
	assert.Contains(t, script, "setTimeout(resolve, 5000)")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail([]byte("abc"), 500))
	long := strings.Repeat("x", 600) + "END"
	assert.Len(t, tail([]byte(long), 500), 500)
	assert.True(t, strings.HasSuffix(tail([]byte(long), 500), "END"))
}

func TestTimeoutFor(t *testing.T) {
	e := testExecutor(t)
	assert.Equal(t, 30*time.Second, e.timeoutFor(Request{}))
	assert.Equal(t, 5*time.Minute, e.timeoutFor(Request{LongOperation: true}))
	assert.Equal(t, time.Second, e.timeoutFor(Request{Timeout: time.Second}))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "Timeout", (&Error{Err: ErrTimeout}).Kind())
	assert.Equal(t, "SpawnError", (&Error{Err: ErrSpawn}).Kind())
	assert.Equal(t, "IOError", (&Error{Err: errors.New("boom")}).Kind())
}

func TestRun_CapturesOutputAndExitCode(t *testing.T) {
	requireNode(t)
	e := testExecutor(t)

	res, err := e.Run(context.Background(), Request{Command: "echo hello"})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "hello")
	assert.Equal(t, 0, res.ExitCode)
	assert.NotEmpty(t, res.ID)
	assert.GreaterOrEqual(t, res.ElapsedMs, int64(0))
}

// Non-zero exit is reported verbatim as a result, never as an error.
func TestRun_NonZeroExitIsResult(t *testing.T) {
	requireNode(t)
	e := testExecutor(t)

	res, err := e.Run(context.Background(), Request{Command: "ls /definitely-not-a-dir"})
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
}

func TestRun_Timeout(t *testing.T) {
	requireNode(t)
	e := testExecutor(t)

	start := time.Now()
	_, err := e.Run(context.Background(), Request{
		Command: "sleep 30",
		Timeout: 500 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)

	var execErr *Error
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "Timeout", execErr.Kind())
	assert.GreaterOrEqual(t, execErr.ElapsedMs, int64(500))
}

// The driver temp file is removed whether execution succeeds, fails or is
// killed.
func TestRun_DriverCleanup(t *testing.T) {
	requireNode(t)
	e := testExecutor(t)

	before := countDrivers(t)
	_, err := e.Run(context.Background(), Request{Command: "echo cleanup"})
	require.NoError(t, err)
	_, _ = e.Run(context.Background(), Request{Command: "sleep 30", Timeout: 300 * time.Millisecond})
	assert.Equal(t, before, countDrivers(t))
}

func countDrivers(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "forge-driver-*.cjs"))
	require.NoError(t, err)
	return len(matches)
}

func TestRun_SpawnFailureDiagnostics(t *testing.T) {
	cfg := config.Default().Executor
	cfg.NodeBin = "definitely-not-node-xyz"
	e := New(cfg, t.TempDir())

	_, err := e.Run(context.Background(), Request{Command: "echo hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawn)

	var execErr *Error
	require.ErrorAs(t, err, &execErr)
	require.NotNil(t, execErr.Diagnostics)
	assert.Equal(t, "echo hi", execErr.Diagnostics.Command)
	assert.NotEmpty(t, execErr.Diagnostics.Platform)
	assert.NotEmpty(t, execErr.Diagnostics.LikelyCause)
}

// Streaming mode delivers output events followed by exactly one terminal
// event before the channel closes.
func TestRunStream_TerminalEvent(t *testing.T) {
	requireNode(t)
	e := testExecutor(t)

	events := make(chan protocol.StreamEvent, 64)
	go e.RunStream(context.Background(), Request{Command: "echo streamed"}, events)

	var all []protocol.StreamEvent
	for ev := range events {
		all = append(all, ev)
	}
	require.NotEmpty(t, all)

	var stdoutEvents, terminals int
	for _, ev := range all {
		switch ev.Type {
		case protocol.EventStdout:
			stdoutEvents++
		case protocol.EventComplete, protocol.EventError:
			terminals++
		}
	}
	assert.GreaterOrEqual(t, stdoutEvents, 1)
	assert.Equal(t, 1, terminals)
	assert.True(t, all[len(all)-1].IsTerminal(), "terminal event must be last")
	require.NotNil(t, all[len(all)-1].Result)
	assert.Contains(t, all[len(all)-1].Result.Stdout, "streamed")
}

func TestRunStream_TimeoutEmitsErrorEvent(t *testing.T) {
	requireNode(t)
	e := testExecutor(t)

	events := make(chan protocol.StreamEvent, 64)
	go e.RunStream(context.Background(), Request{Command: "sleep 30", Timeout: 400 * time.Millisecond}, events)

	var last protocol.StreamEvent
	for ev := range events {
		last = ev
	}
	require.Equal(t, protocol.EventError, last.Type)
	require.NotNil(t, last.Error)
	assert.Equal(t, "Timeout", last.Error.Kind)
}
