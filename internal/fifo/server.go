//go:build unix

package fifo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/ipckit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/monitoring"
)

// ErrBrokenPeer marks a channel whose other side has no reader. A long-lived
// server logs and counts it; a one-shot client receives it as an error.
var ErrBrokenPeer = errors.New("peer channel has no reader")

// Handler computes the response for one request.
type Handler func(ctx context.Context, clientID string, payload []byte) []byte

// Server services requests arriving on a well-known rendezvous channel and
// answers each one on the requesting client's own channel.
type Server struct {
	path    string
	mode    os.FileMode
	handler Handler
	namer   Namer
	log     *logging.Logger
	metrics *monitoring.Metrics

	workers     int
	openRetries int
	retryDelay  time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithNamer overrides per-client channel naming, e.g. for tests using a
// temporary directory namespace.
func WithNamer(n Namer) ServerOption {
	return func(s *Server) { s.namer = n }
}

// WithServerLogger sets the server's logger.
func WithServerLogger(l *logging.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithServerMetrics sets the server's metrics collector.
func WithServerMetrics(m *monitoring.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithWorkers sets how many responses may be in flight concurrently.
// Per-client channel names are unique per request, so workers share no
// mutable state.
func WithWorkers(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMode sets the creation mode for channels.
func WithMode(mode os.FileMode) ServerOption {
	return func(s *Server) { s.mode = mode }
}

// WithOpenRetry tunes how long the server waits for a client to open its
// response channel before declaring the peer broken.
func WithOpenRetry(attempts int, delay time.Duration) ServerOption {
	return func(s *Server) {
		s.openRetries = attempts
		s.retryDelay = delay
	}
}

// NewServer creates a rendezvous server for the given well-known path.
func NewServer(path string, handler Handler, opts ...ServerOption) *Server {
	s := &Server{
		path:        path,
		mode:        0o622,
		handler:     handler,
		log:         logging.NewNop(),
		workers:     1,
		openRetries: 40,
		retryDelay:  50 * time.Millisecond,
	}
	s.namer = DefaultNamer(path)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the well-known channel path.
func (s *Server) Path() string { return s.path }

// Listen creates the well-known channel if needed and services requests
// until ctx is cancelled. Failures on a single client's request never abort
// the loop.
func (s *Server) Listen(ctx context.Context) error {
	if err := ensureFIFO(s.path, s.mode); err != nil {
		return err
	}

	// Read-write, not read-only: with a write end always held open the
	// channel never reports end-of-stream between clients.
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	// Closing the channel is the only way to unblock a pending read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-done:
		}
	}()

	s.log.Info("listening", zap.String("path", s.path))

	var g errgroup.Group
	g.SetLimit(s.workers)
	defer g.Wait()

	br := bufio.NewReaderSize(f, AtomicWriteLimit)
	for {
		req, err := readRequest(br)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrBadFrame) {
				if s.metrics != nil {
					s.metrics.BadFrames.Inc()
				}
				s.log.Warn("discarding malformed frame", zap.Error(err))
				// Skip only the misbehaving writer's bytes; a good frame
				// may already be buffered behind them.
				resync(br)
				continue
			}
			return fmt.Errorf("read request: %w", err)
		}

		if s.metrics != nil {
			s.metrics.RequestsTotal.Inc()
		}
		r := req
		g.Go(func() error {
			s.respond(ctx, r)
			return nil
		})
	}
}

// respond runs the handler and delivers the result on the client's own
// channel. After a delivered response the client removes its channel; after
// a failed delivery the server does, so a second request under the same
// identity never races the server's cleanup of the previous one.
func (s *Server) respond(ctx context.Context, req Request) {
	if s.metrics != nil {
		defer monitoring.NewTimer(s.metrics).Stop()
	}

	path := s.namer(req.ClientID)

	frame, err := encodeResponse(s.handler(ctx, req.ClientID, req.Payload))
	if err != nil {
		s.log.Error("response rejected", zap.String("client", req.ClientID), zap.Error(err))
		os.Remove(path)
		return
	}

	if err := ensureFIFO(path, s.mode); err != nil {
		s.log.Error("create client channel", zap.String("client", req.ClientID), zap.Error(err))
		return
	}

	w, err := s.openClient(ctx, path)
	if err != nil {
		if s.metrics != nil {
			s.metrics.BrokenPeers.Inc()
		}
		s.log.Warn("client never connected",
			zap.String("client", req.ClientID),
			zap.Error(err),
		)
		os.Remove(path)
		return
	}
	defer w.Close()

	if _, err := w.Write(frame); err != nil {
		if s.metrics != nil {
			s.metrics.BrokenPeers.Inc()
		}
		s.log.Warn("client vanished mid-response",
			zap.String("client", req.ClientID),
			zap.Error(err),
		)
		os.Remove(path)
		return
	}

	if s.metrics != nil {
		s.metrics.ResponsesTotal.Inc()
	}
}

// openClient opens the per-client channel for writing without ever blocking
// on a reader that will never arrive. ENXIO means no reader yet; anything
// else is immediately fatal for this request.
func (s *Server) openClient(ctx context.Context, path string) (*os.File, error) {
	for i := 0; i < s.openRetries; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.ENXIO) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrBrokenPeer)
}

// SweepStale removes per-client channels older than maxAge; these are left
// behind by clients that crashed before connecting. It assumes the default
// naming scheme of well-known path plus suffix.
func (s *Server) SweepStale(maxAge time.Duration) (int, error) {
	matches, err := filepath.Glob(s.path + ".*")
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, p := range matches {
		fi, err := os.Stat(p)
		if err != nil || fi.Mode()&os.ModeNamedPipe == 0 {
			continue
		}
		if fi.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(p) == nil {
			removed++
			if s.metrics != nil {
				s.metrics.StaleSwept.Inc()
			}
		}
	}

	if removed > 0 {
		s.log.Info("swept stale client channels", zap.Int("count", removed))
	}
	return removed, nil
}
