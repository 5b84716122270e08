//go:build unix

package pipe

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// reapChild blocks until the given child exits and returns its full
// termination status. A wait interrupted by unrelated signal delivery is not
// a failure, only a reason to retry; ECHILD means some other part of the
// process reaped the child out-of-band.
func reapChild(pid int) (Status, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, 0, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return Status{}, ErrNoSuchChild
		case err != nil:
			return Status{}, fmt.Errorf("wait for pid %d: %w", pid, err)
		case wpid == pid:
			return Status{ws: ws}, nil
		}
	}
}
