//go:build unix

package pipe

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ipckit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ipckit/internal/shared/id"
)

// Manager opens pipe-backed child processes and pairs each stream's close
// with reaping exactly that child.
type Manager struct {
	reg        *Registry
	log        *logging.Logger
	metrics    *monitoring.Metrics
	shell      string
	maxStreams int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry injects a registry, letting tests isolate instances.
func WithRegistry(r *Registry) Option {
	return func(m *Manager) { m.reg = r }
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the manager's metrics collector.
func WithMetrics(mt *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithShell sets the command interpreter (default /bin/sh).
func WithShell(shell string) Option {
	return func(m *Manager) { m.shell = shell }
}

// WithMaxStreams caps the number of concurrently open streams.
func WithMaxStreams(n int) Option {
	return func(m *Manager) { m.maxStreams = n }
}

// New creates a manager with its own registry.
func New(opts ...Option) *Manager {
	m := &Manager{
		reg:   NewRegistry(),
		log:   logging.NewNop(),
		shell: "/bin/sh",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stream is a caller-owned handle over the parent end of a managed pipe.
// A stream must not be read/written and closed concurrently without
// external synchronization.
type Stream struct {
	id        id.StreamID
	direction Direction
	pid       int
	file      *os.File
	r         *bufio.Reader
	w         *bufio.Writer

	mu     sync.Mutex
	closed bool
}

// ID returns the stream's registry key.
func (s *Stream) ID() id.StreamID { return s.id }

// Pid returns the child process id backing this stream.
func (s *Stream) Pid() int { return s.pid }

// Direction returns the stream's configured direction.
func (s *Stream) Direction() Direction { return s.direction }

// Read reads the child's output. Fails with ErrInvalidDirection on a
// write-direction stream.
func (s *Stream) Read(p []byte) (int, error) {
	if s.direction != ReadFromChild {
		return 0, ErrInvalidDirection
	}
	if s.isClosed() {
		return 0, ErrStreamClosed
	}
	return s.r.Read(p)
}

// Write buffers input for the child. Fails with ErrInvalidDirection on a
// read-direction stream.
func (s *Stream) Write(p []byte) (int, error) {
	if s.direction != WriteToChild {
		return 0, ErrInvalidDirection
	}
	if s.isClosed() {
		return 0, ErrStreamClosed
	}
	return s.w.Write(p)
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Open allocates a one-way pipe, spawns `shell -c command` with the child
// end bound to its conventional standard stream, and returns the parent end
// as a buffered stream. Registration is all-or-nothing: any failure leaves
// no registry entry behind.
//
// Both pipe ends carry close-on-exec, so a child spawned for one handle
// never inherits the live pipes of other open handles and cannot hold their
// readers' end-of-file hostage.
func (m *Manager) Open(command string, direction Direction) (*Stream, error) {
	if !direction.valid() {
		return nil, ErrInvalidDirection
	}
	if os.Geteuid() != os.Getuid() {
		return nil, ErrPrivileged
	}

	// Claim the registry slot before spawning; the cap holds even under
	// concurrent opens, and any later failure releases the slot.
	sid := id.NewStreamID()
	if err := m.reg.reserve(sid, entry{
		command:   command,
		direction: direction,
		openedAt:  time.Now(),
	}, m.maxStreams); err != nil {
		return nil, err
	}

	r, w, err := os.Pipe()
	if err != nil {
		m.reg.remove(sid)
		return nil, fmt.Errorf("allocate pipe: %w", err)
	}

	cmd := exec.Command(m.shell, "-c", command)
	cmd.Stderr = os.Stderr

	var parentEnd, childEnd *os.File
	switch direction {
	case ReadFromChild:
		parentEnd, childEnd = r, w
		cmd.Stdout = childEnd
		cmd.Stdin = os.Stdin
	case WriteToChild:
		parentEnd, childEnd = w, r
		cmd.Stdin = childEnd
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Start(); err != nil {
		m.reg.remove(sid)
		parentEnd.Close()
		childEnd.Close()
		if m.metrics != nil {
			m.metrics.SpawnFailures.Inc()
		}
		return nil, &SpawnError{Command: command, Err: err}
	}
	childEnd.Close()
	m.reg.bind(sid, cmd.Process.Pid)

	s := &Stream{
		id:        sid,
		direction: direction,
		pid:       cmd.Process.Pid,
		file:      parentEnd,
	}
	if direction == ReadFromChild {
		s.r = bufio.NewReader(parentEnd)
	} else {
		s.w = bufio.NewWriter(parentEnd)
	}

	if m.metrics != nil {
		m.metrics.StreamOpens.Inc()
		m.metrics.StreamsOpen.Set(float64(m.reg.Len()))
	}
	m.log.Debug("stream opened",
		zap.String("stream", s.id.String()),
		zap.Int("pid", s.pid),
		zap.Stringer("direction", direction),
	)

	return s, nil
}

// Close flushes and closes the stream, removes its registry entry, and
// blocks until the associated child terminates. Closing a handle twice
// fails with ErrStreamClosed. The returned Status is the child's full
// termination disposition.
func (m *Manager) Close(s *Stream) (Status, error) {
	if s == nil {
		return Status{}, ErrStreamClosed
	}

	// Removing the registry entry first keeps close idempotence and
	// ownership checks in one atomic step: only the manager that opened the
	// stream holds its entry, and only the first close wins it.
	e, ok := m.reg.remove(s.id)
	if !ok {
		return Status{}, ErrStreamClosed
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	var closeErr error
	if s.w != nil {
		closeErr = s.w.Flush()
	}
	if err := s.file.Close(); err != nil && closeErr == nil {
		closeErr = err
	}

	status, err := reapChild(e.pid)

	if m.metrics != nil {
		m.metrics.StreamCloses.Inc()
		m.metrics.StreamsOpen.Set(float64(m.reg.Len()))
	}

	if err != nil {
		return Status{}, err
	}
	m.log.Debug("stream closed",
		zap.String("stream", s.id.String()),
		zap.Int("pid", e.pid),
		zap.String("status", status.String()),
	)
	if closeErr != nil {
		return status, fmt.Errorf("close stream: %w", closeErr)
	}
	return status, nil
}

// OpenStreams returns a snapshot of every stream currently open.
func (m *Manager) OpenStreams() []StreamInfo {
	return m.reg.Snapshot()
}

// Len reports the number of currently open streams.
func (m *Manager) Len() int {
	return m.reg.Len()
}
