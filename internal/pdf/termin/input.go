package termin

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// readChunkSize bounds each nonblocking read the way the original caps its
// stdin reads at 256 bytes per cycle, so one pathologically long escape
// sequence can't starve the poll loop.
const readChunkSize = 256

// Input is the input demultiplexer's terminal-facing half: it owns fd 0
// for its lifetime (spec §4.11), multiplexing readiness with poll(2) and
// handing read bytes to a Demux for parsing.
type Input struct {
	fd     int
	demux  *Demux
	logger *slog.Logger

	lastActivity time.Time
}

// NewInput wires a demultiplexer to fd (typically 0, stdin), putting fd
// into nonblocking mode so reads after a successful poll never block.
func NewInput(fd int, logger *slog.Logger) (*Input, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("termin: set nonblocking: %w", err)
	}
	return &Input{fd: fd, demux: NewDemux(), logger: logger, lastActivity: time.Now()}, nil
}

// Poll waits up to timeout for stdin to become readable, reads whatever is
// available (up to 256 bytes, per spec §4.11), and feeds it to the
// demultiplexer. Returns true if a keyboard/mouse event is now ready.
func (in *Input) Poll(timeout time.Duration) (bool, error) {
	if in.demux.HasEvents() {
		return true, nil
	}

	ready, err := pollReadable(in.fd, timeout)
	if err != nil {
		return false, fmt.Errorf("termin: poll stdin: %w", err)
	}
	if !ready {
		return false, nil
	}

	buf := make([]byte, readChunkSize)
	n, err := unix.Read(in.fd, buf)
	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		in.demux.NoteEmptyRead()
	case err != nil:
		return false, fmt.Errorf("termin: read stdin: %w", err)
	case n == 0:
		in.demux.NoteEmptyRead()
	default:
		in.lastActivity = time.Now()
		in.demux.Feed(buf[:n])
	}

	return in.demux.HasEvents(), nil
}

// NextPollInterval reports the adaptive timeout the caller should pass to
// the next Poll call, per CalculatePollingInterval.
func (in *Input) NextPollInterval() time.Duration {
	return CalculatePollingInterval(in.lastActivity)
}

// PopEvent returns the next queued keyboard/mouse event, if any.
func (in *Input) PopEvent() (Event, bool) {
	return in.demux.PopEvent()
}

// TakeKittyResponses drains queued Kitty protocol responses for the
// terminal canvas to process.
func (in *Input) TakeKittyResponses() []KittyResponse {
	return in.demux.TakeKittyResponses()
}

// HasKittyResponses reports whether a Kitty protocol response is queued.
func (in *Input) HasKittyResponses() bool {
	return in.demux.HasKittyResponses()
}

// pollReadable uses poll(2) on fd with the given timeout to test for
// readability without blocking past the deadline.
func pollReadable(fd int, timeout time.Duration) (bool, error) {
	if timeout < 0 {
		timeout = 0
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	timeoutMs := int(timeout / time.Millisecond)

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}
