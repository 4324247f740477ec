// Package prompt detects CLI prompts in accumulated terminal output.
// Detection is a plain suffix check against the last output line, with no
// terminal emulation and no semantic parsing of device output.
package prompt

import (
	"regexp"
	"strings"
)

// ansiEscape matches CSI sequences (colors, cursor moves) that some devices
// mix into their prompt line.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// pagerMarkers are continuation lines printed by a device pager. They sit at
// the end of the buffer exactly like a prompt would, but signal "more output
// pending", never readiness.
var pagerMarkers = []string{"--more--", "---- more ----", "-- more --"}

// Detector reports whether a byte buffer ends in a device prompt.
type Detector struct {
	suffixes []string
}

// New returns a Detector matching the given prompt suffixes. Empty and
// duplicate entries are dropped. Mode-qualified prompts such as
// "(config)#" are covered by their terminal character, so a suffix list
// like ["#", ">"] handles exec, enable and configuration modes alike.
func New(suffixes []string) *Detector {
	seen := make(map[string]bool, len(suffixes))
	var out []string
	for _, s := range suffixes {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return &Detector{suffixes: out}
}

// Match reports whether the last non-empty line of buf, with ANSI escapes
// and surrounding whitespace removed, ends with one of the detector's
// suffixes. Pager continuation lines never match.
func (d *Detector) Match(buf []byte) bool {
	line := LastLine(buf)
	if line == "" {
		return false
	}
	if IsPagerLine(line) {
		return false
	}
	for _, s := range d.suffixes {
		if strings.HasSuffix(line, s) {
			return true
		}
	}
	return false
}

// StripANSI removes CSI escape sequences from s.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// LastLine returns the trimmed last non-empty line of buf with ANSI
// escapes removed.
func LastLine(buf []byte) string {
	s := strings.TrimRight(StripANSI(string(buf)), " \t\r\n")
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// IsPagerLine reports whether line is a pager continuation marker.
func IsPagerLine(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, m := range pagerMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
