//go:build unix

package pipe

import (
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/ipckit/internal/shared/id"
)

// Direction selects which end of the pipe the caller keeps.
type Direction int

const (
	// ReadFromChild connects the child's standard output to the stream.
	ReadFromChild Direction = iota + 1
	// WriteToChild connects the child's standard input to the stream.
	WriteToChild
)

func (d Direction) valid() bool {
	return d == ReadFromChild || d == WriteToChild
}

func (d Direction) String() string {
	switch d {
	case ReadFromChild:
		return "read"
	case WriteToChild:
		return "write"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Status is the full termination disposition of a child: either a normal
// exit code or the signal that killed it, never a collapsed boolean.
type Status struct {
	ws unix.WaitStatus
}

// Exited reports the exit code if the child exited normally.
func (s Status) Exited() (int, bool) {
	if s.ws.Exited() {
		return s.ws.ExitStatus(), true
	}
	return 0, false
}

// Signaled reports the terminating signal if the child was killed by one.
func (s Status) Signaled() (syscall.Signal, bool) {
	if s.ws.Signaled() {
		return s.ws.Signal(), true
	}
	return 0, false
}

// Success reports a normal exit with code zero.
func (s Status) Success() bool {
	code, ok := s.Exited()
	return ok && code == 0
}

func (s Status) String() string {
	if code, ok := s.Exited(); ok {
		return fmt.Sprintf("exit %d", code)
	}
	if sig, ok := s.Signaled(); ok {
		return fmt.Sprintf("signal %s", unix.SignalName(sig))
	}
	return "unknown"
}

// StreamInfo is a point-in-time view of one open stream, for snapshots.
type StreamInfo struct {
	ID        id.StreamID `json:"id"`
	Pid       int         `json:"pid"`
	Command   string      `json:"command"`
	Direction string      `json:"direction"`
	OpenedAt  time.Time   `json:"opened_at"`
}
