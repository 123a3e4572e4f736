package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// The command wrapper is the sole place that composes executable text.
// Every other component treats command strings as opaque values. The driver
// it synthesizes runs the validated command through a childExec helper,
// mirrors output while accumulating it, waits a post-command grace delay so
// late async work can flush, and turns unhandled failures into a non-zero
// exit with rich diagnostics.
const driverTemplate = `const { spawn } = require('child_process');

function childExec(command) {
  return new Promise((resolve) => {
    const needsShell = /[|&;<>(){}]/.test(command);
    const child = needsShell
      ? spawn('sh', ['-c', command], { stdio: ['ignore', 'pipe', 'pipe'] })
      : spawn(command.split(' ')[0], command.split(' ').slice(1), { stdio: ['ignore', 'pipe', 'pipe'] });
    let stdout = '';
    let stderr = '';
    child.stdout.on('data', (chunk) => { stdout += chunk; process.stdout.write(chunk); });
    child.stderr.on('data', (chunk) => { stderr += chunk; process.stderr.write(chunk); });
    child.on('error', (err) => {
      process.stderr.write('[driver] spawn failed: ' + err.message + '\n');
      resolve({ code: 127, stdout, stderr, command });
    });
    child.on('close', (code) => resolve({ code: code === null ? 0 : code, stdout, stderr, command }));
  });
}

process.on('unhandledRejection', (reason) => {
  process.stderr.write('[driver] unhandled rejection: ' + String(reason && reason.stack ? reason.stack : reason) + '\n');
  process.exit(1);
});
process.on('uncaughtException', (err) => {
  process.stderr.write('[driver] uncaught exception: ' + String(err && err.stack ? err.stack : err) + '\n');
  process.exit(1);
});

(async () => {
  const result = await childExec('%s');
  await new Promise((resolve) => setTimeout(resolve, %d));
  process.exit(result.code);
})();
`

// buildDriver renders the driver script for one validated command.
func buildDriver(command string, postDelay time.Duration) string {
	return fmt.Sprintf(driverTemplate, escapeSingleQuoted(command), postDelay.Milliseconds())
}

// escapeSingleQuoted makes a command safe to embed in a single-quoted JS
// string literal. The command itself was already validated by the policy;
// this only prevents the embedding from breaking out of the literal.
func escapeSingleQuoted(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// writeDriver materializes the driver to a uniquely named temporary file.
// The caller removes it on every exit path.
func writeDriver(script string) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("forge-driver-%s.cjs", ulid.Make()))
	if err := os.WriteFile(path, []byte(script), 0600); err != nil {
		return "", fmt.Errorf("write driver script: %w", err)
	}
	return path, nil
}

// newRunID returns a sortable unique execution ID.
func newRunID() string {
	return ulid.Make().String()
}
