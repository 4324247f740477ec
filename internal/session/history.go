package session

import "github.com/termgate/termgate/internal/executor"

// resultRing keeps the most recent command results for one session, oldest
// evicted first. Command history lives only in memory; exporting it is a
// collaborator's job. Not safe for concurrent use; the owning Session
// guards it.
type resultRing struct {
	entries []executor.Result
	head    int
	count   int
}

func newResultRing(size int) *resultRing {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &resultRing{entries: make([]executor.Result, size)}
}

// add appends a result, evicting the oldest when the ring is full.
func (r *resultRing) add(res executor.Result) {
	r.entries[r.head] = res
	r.head = (r.head + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}
}

// list returns the retained results in chronological order.
func (r *resultRing) list() []executor.Result {
	if r.count == 0 {
		return nil
	}
	result := make([]executor.Result, r.count)
	if r.count < len(r.entries) {
		copy(result, r.entries[:r.count])
	} else {
		n := copy(result, r.entries[r.head:])
		copy(result[n:], r.entries[:r.head])
	}
	return result
}
