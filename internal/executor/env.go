package executor

import "strings"

// safeVariables is the fixed set of environment variables a child process
// inherits. Everything else is withheld unless its name matches one of the
// configured agent prefixes, so API keys and other secrets in the server's
// environment never leak into spawned commands.
var safeVariables = map[string]bool{
	"PATH":     true,
	"HOME":     true,
	"USER":     true,
	"NODE_ENV": true,
	"TZ":       true,
	"LANG":     true,
	"LC_ALL":   true,
	"PWD":      true,
	"TMPDIR":   true,
	"TEMP":     true,
	"TMP":      true,
}

// scrubEnv filters environ (KEY=VALUE form) down to the safe set plus the
// prefix allowlist.
func scrubEnv(environ []string, prefixes []string) []string {
	var out []string
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if safeVariables[name] {
			out = append(out, kv)
			continue
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(name, prefix) {
				out = append(out, kv)
				break
			}
		}
	}
	return out
}
