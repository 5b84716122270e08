package pipe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDirection is returned for a direction flag that is neither
	// ReadFromChild nor WriteToChild.
	ErrInvalidDirection = errors.New("direction must be ReadFromChild or WriteToChild")

	// ErrStreamClosed is returned when closing a handle twice, or using a
	// handle this manager never opened.
	ErrStreamClosed = errors.New("stream is closed or not managed here")

	// ErrTooManyStreams is returned when the registry is at capacity.
	ErrTooManyStreams = errors.New("stream registry at capacity")

	// ErrNoSuchChild is returned when the child was already reaped outside
	// the manager. This is a caller-discipline violation and is never
	// silently swallowed.
	ErrNoSuchChild = errors.New("child already reaped outside the manager")

	// ErrPrivileged is returned when the process runs with an effective uid
	// that differs from its real uid. Handing a shell an attacker-influenced
	// environment under elevated privilege is misuse, not a risk.
	ErrPrivileged = errors.New("refusing to spawn a shell with elevated privileges")
)

// SpawnError reports a child that could not be created, carrying the
// underlying OS error.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
