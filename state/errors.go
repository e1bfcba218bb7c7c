package state

import "fmt"

// Error reports a state-reader invariant violation (spec.md §7): e.g. a
// stored snapshot's fingerprint disagrees with the snapshot_id it was
// stored under. Fatal to the current plan; never retried.
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("state: %s: %s", e.Op, e.Msg)
}

func errf(op, format string, args ...any) error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, args...)}
}
