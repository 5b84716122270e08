// Package pipe provides managed process pipes: spawn a shell command with
// one end of a pipe bound to its standard input or output, hand the other
// end to the caller as a buffered stream, and pair closing that stream with
// reaping exactly that child.
//
// Architecture:
//   - Manager owns a Registry mapping each open stream to its child pid
//   - Open allocates the pipe, spawns the child, and registers atomically
//   - Close is the only place a child spawned here may be reaped
//   - The wait retries transparently when interrupted by unrelated signals
//
// The registry is injectable so tests can run isolated manager instances.
// Callers that reap children themselves must not reap children spawned by
// this package; doing so makes Close fail with ErrNoSuchChild.
//
// Example Usage:
//
//	manager := pipe.New()
//	stream, err := manager.Open("ls -l /", pipe.ReadFromChild)
//	// ... read from stream ...
//	status, err := manager.Close(stream)
//	if code, ok := status.Exited(); ok {
//		// child exited normally with code
//	}
package pipe
