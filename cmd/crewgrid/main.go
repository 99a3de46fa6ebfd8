package main

import (
	"os"
	"strings"

	"crewgrid/internal/cli"
)

func isRowID(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "row-") {
		return false
	}
	// Keep it permissive; ids are generated but users may paste variants.
	return len(s) > len("row-")
}

func rewriteDirectRowLookupArgs(argv []string) []string {
	// Convenience: `crewgrid <row-id>` works like `crewgrid hours get <row-id>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv
	// before parsing.
	//
	// Users often pass persistent flags first (e.g. `crewgrid --server ... <row-id>`),
	// so we must find the first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	// Minimal persistent-flag awareness. If we see flags we don't recognize, we
	// skip them (and do NOT try to skip their value) to avoid accidentally
	// consuming the row id.
	valueFlags := map[string]bool{
		"--config":     true,
		"--server":     true,
		"--weeks":      true,
		"--department": true,
		"--vertical":   true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			// Stop flag parsing; next token (if any) is the first positional.
			if i+1 < len(argv) && isRowID(argv[i+1]) {
				out := make([]string, 0, len(argv)+2)
				out = append(out, argv[:i+1]...)
				out = append(out, "hours", "get")
				out = append(out, argv[i+1:]...)
				return out
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			// --flag=value form
			if strings.Contains(a, "=") {
				continue
			}
			if valueFlags[a] {
				i++ // skip value if present
				continue
			}
			continue
		}

		// First positional token.
		if isRowID(a) {
			out := make([]string, 0, len(argv)+2)
			out = append(out, argv[:i]...)
			out = append(out, "hours", "get")
			out = append(out, argv[i:]...)
			return out
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectRowLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
