package termin

import (
	"fmt"

	"golang.org/x/term"
)

// RawMode puts fd 0 into raw mode for the duration of the input
// demultiplexer's lifetime (spec §4.11: "Raw mode is assumed. The
// demultiplexer owns fd 0 for the duration of its lifetime."), restoring
// the prior terminal state on Restore.
type RawMode struct {
	fd    int
	state *term.State
}

// EnterRawMode switches fd into raw mode, returning a handle that must be
// released with Restore (typically via defer) to avoid leaving the
// caller's terminal unusable on exit.
func EnterRawMode(fd int) (*RawMode, error) {
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("termin: enter raw mode: %w", err)
	}
	return &RawMode{fd: fd, state: state}, nil
}

// Restore returns the terminal to the state it was in before EnterRawMode.
// Safe to call more than once; subsequent calls are no-ops.
func (r *RawMode) Restore() error {
	if r == nil || r.state == nil {
		return nil
	}
	err := term.Restore(r.fd, r.state)
	r.state = nil
	if err != nil {
		return fmt.Errorf("termin: restore terminal state: %w", err)
	}
	return nil
}
