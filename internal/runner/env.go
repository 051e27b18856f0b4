package runner

import (
	"strings"
)

// envAllowlist is the set of host variables forwarded into the container.
// Everything else stays on the host.
var envAllowlist = map[string]bool{
	"TERM":   true,
	"LANG":   true,
	"LC_ALL": true,
	"TZ":     true,
}

// ForwardEnvironment keeps the allowlisted KEY=VALUE entries of env, in order.
func ForwardEnvironment(env []string) []string {
	out := make([]string, 0, len(envAllowlist))
	for _, entry := range env {
		if envAllowlist[envKey(entry)] {
			out = append(out, entry)
		}
	}
	return out
}

// envKey extracts the key from a "KEY=VALUE" environment entry.
func envKey(entry string) string {
	if idx := strings.IndexByte(entry, '='); idx >= 0 {
		return entry[:idx]
	}
	return entry
}
