package executor

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

// installHints maps a tool name to how to get it. Surfaced when a spawn
// fails with ENOENT so the agent can self-serve the fix.
var installHints = map[string]string{
	"npm":  "npm ships with Node.js — install Node from https://nodejs.org or via your package manager",
	"yarn": "corepack enable && corepack prepare yarn@stable --activate",
	"pnpm": "corepack enable && corepack prepare pnpm@latest --activate",
	"node": "install Node.js from https://nodejs.org or via your package manager",
}

// buildDiagnostics assembles the spawn-failure report: what we tried to
// run, where, with which PATH and runtime, plus a likely cause when the
// binary was simply absent.
func buildDiagnostics(req Request, nodeBin, workdir string, spawnErr error) *protocol.ExecuteDiagnostics {
	d := &protocol.ExecuteDiagnostics{
		Command:    req.Command,
		WorkingDir: workdir,
		Path:       os.Getenv("PATH"),
		Runtime:    nodeBin,
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
	}

	var execErr *exec.Error
	if errors.As(spawnErr, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) ||
		errors.Is(spawnErr, os.ErrNotExist) {
		tool := firstToken(req.Command)
		d.LikelyCause = nodeBin + " (or the command's binary) was not found on PATH"
		if hint, ok := installHints[tool]; ok {
			d.InstallHint = hint
		} else if hint, ok := installHints[nodeBin]; ok {
			d.InstallHint = hint
		}
	}
	return d
}

func firstToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
