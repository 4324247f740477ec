package executor

import (
	"strings"

	"github.com/termgate/termgate/internal/prompt"
)

// cleanOutput reduces a raw capture to the device's answer: the echoed
// command line, leading blank or prompt lines, pager continuation artifacts
// and the trailing prompt are all removed. The content itself is passed
// through untouched; this is cosmetic trimming, not parsing.
func cleanOutput(raw, command string, det *prompt.Detector) string {
	if raw == "" {
		return ""
	}

	needle := strings.TrimSpace(command)
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))

	skipEcho := true
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")

		// The first line containing the command is its echo.
		if skipEcho && needle != "" && strings.Contains(line, needle) {
			skipEcho = false
			continue
		}
		if prompt.IsPagerLine(line) {
			continue
		}
		// Blank lines and stray prompts before any real output.
		if len(out) == 0 && (strings.TrimSpace(line) == "" || det.Match([]byte(line))) {
			continue
		}
		out = append(out, line)
	}

	// Trailing prompt and blank lines.
	for len(out) > 0 {
		last := out[len(out)-1]
		if strings.TrimSpace(last) == "" || det.Match([]byte(last)) {
			out = out[:len(out)-1]
			continue
		}
		break
	}

	return strings.Join(out, "\n")
}
