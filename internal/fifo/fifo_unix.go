//go:build unix

package fifo

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ensureFIFO creates a named pipe at path. An existing pipe is left in
// place, so a well-known channel survives server restarts and either side
// of an exchange may create the per-client channel first.
func ensureFIFO(path string, mode os.FileMode) error {
	err := unix.Mkfifo(path, uint32(mode.Perm()))
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EEXIST) {
		fi, statErr := os.Stat(path)
		if statErr != nil {
			return statErr
		}
		if fi.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("%s exists and is not a fifo", path)
		}
		return nil
	}
	return fmt.Errorf("mkfifo %s: %w", path, err)
}
