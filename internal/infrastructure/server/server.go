//go:build unix

// Package server wires the rendezvous listener, the process-pipe manager
// behind its handler, and the operational HTTP endpoint into one daemon.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/ipckit/internal/api/http"
	"github.com/GriffinCanCode/ipckit/internal/fifo"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/config"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ipckit/internal/pipe"
)

// Server is the assembled IPC daemon.
type Server struct {
	cfg        *config.Config
	log        *logging.Logger
	metrics    *monitoring.Metrics
	manager    *pipe.Manager
	rendezvous *fifo.Server
	ops        *http.Server
	runID      string
}

// New assembles a daemon from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("configure logging: %w", err)
		}
	}

	metrics := monitoring.New()

	s := &Server{
		cfg:     cfg,
		log:     logger,
		metrics: metrics,
		runID:   uuid.NewString(),
	}

	s.manager = pipe.New(
		pipe.WithShell(cfg.Pipe.Shell),
		pipe.WithMaxStreams(cfg.Pipe.MaxStreams),
		pipe.WithLogger(logger.Named("pipe")),
		pipe.WithMetrics(metrics),
	)

	s.rendezvous = fifo.NewServer(cfg.Fifo.Path, s.execute,
		fifo.WithWorkers(cfg.Fifo.Workers),
		fifo.WithServerLogger(logger.Named("fifo")),
		fifo.WithServerMetrics(metrics),
		fifo.WithOpenRetry(cfg.Fifo.OpenRetries, 50*time.Millisecond),
	)

	if cfg.Ops.Enabled {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		apihttp.NewOpsHandlers(s.manager, metrics).Register(router)
		s.ops = &http.Server{
			Addr:    net.JoinHostPort(cfg.Ops.Host, cfg.Ops.Port),
			Handler: router,
		}
	}

	logger.Info("daemon initialized",
		zap.String("run_id", s.runID),
		zap.String("fifo", cfg.Fifo.Path),
		zap.Bool("ops", cfg.Ops.Enabled),
	)
	return s, nil
}

// execute services one rendezvous request: the payload is a shell command
// whose output, capped at the response size limit, is the reply.
func (s *Server) execute(ctx context.Context, clientID string, payload []byte) []byte {
	command := string(payload)

	stream, err := s.manager.Open(command, pipe.ReadFromChild)
	if err != nil {
		s.log.Warn("open failed",
			zap.String("client", clientID),
			zap.Error(err),
		)
		return []byte("error: " + err.Error())
	}

	// Read one byte past the limit so truncation is detectable, then fold
	// the marker into the capped output instead of dropping bytes silently.
	out, readErr := io.ReadAll(io.LimitReader(stream, fifo.MaxResponse+1))
	if len(out) > fifo.MaxResponse {
		const marker = "\n[output truncated]"
		out = append(out[:fifo.MaxResponse-len(marker)], marker...)
		s.log.Warn("output truncated",
			zap.String("client", clientID),
			zap.String("command", command),
			zap.Int("limit", fifo.MaxResponse),
		)
	}
	status, closeErr := s.manager.Close(stream)

	s.log.Info("command served",
		zap.String("client", clientID),
		zap.String("command", command),
		zap.String("status", status.String()),
	)
	if readErr != nil {
		s.log.Warn("partial output", zap.String("client", clientID), zap.Error(readErr))
	}
	if closeErr != nil {
		s.log.Warn("close error", zap.String("client", clientID), zap.Error(closeErr))
	}
	return out
}

// Run blocks servicing requests until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.rendezvous.Listen(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if s.ops != nil {
		g.Go(func() error {
			errCh := make(chan error, 1)
			go func() { errCh <- s.ops.ListenAndServe() }()
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				s.ops.Shutdown(shutdownCtx)
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		})
	}

	if s.cfg.Fifo.SweepInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(s.cfg.Fifo.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, err := s.rendezvous.SweepStale(s.cfg.Fifo.SweepMaxAge); err != nil {
						s.log.Warn("sweep failed", zap.Error(err))
					}
				}
			}
		})
	}

	err := g.Wait()
	s.log.Info("daemon stopped", zap.String("run_id", s.runID))
	s.log.Sync()
	return err
}
