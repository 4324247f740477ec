package executor

import (
	"fmt"
	"strings"

	"github.com/termgate/termgate/internal/errdefs"
)

// Rule is one deny-list entry. Substring is matched case-insensitively
// against the whole command; UnlessContains lists qualifying fragments that
// make the command safe despite the match. Both must be lowercase.
type Rule struct {
	Substring      string
	UnlessContains []string
}

// DefaultRules block commands that reboot a device, wipe its configuration
// or take links down. The match is a plain substring scan and prefers false
// positives over letting a destructive command through. "shutdown" is
// allowed when the command brings an interface back up with "no shutdown".
var DefaultRules = []Rule{
	{Substring: "reload"},
	{Substring: "erase startup-config"},
	{Substring: "format"},
	{Substring: "shutdown", UnlessContains: []string{"no shutdown"}},
}

// Check returns a policy error when command matches the deny-list. A
// rejected command must never reach the wire; callers check before any
// Send.
func (e *Executor) Check(command string) error {
	low := strings.ToLower(command)
	for _, r := range e.rules {
		if !strings.Contains(low, r.Substring) {
			continue
		}
		safe := false
		for _, q := range r.UnlessContains {
			if strings.Contains(low, q) {
				safe = true
				break
			}
		}
		if safe {
			continue
		}
		return errdefs.Policy("execute", fmt.Errorf("command matches deny-list entry %q", r.Substring))
	}
	return nil
}
