// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/J-x-Z/winpipe/compositor"
	"github.com/J-x-Z/winpipe/lib/clock"
	"github.com/J-x-Z/winpipe/lib/compress"
	"github.com/J-x-Z/winpipe/lib/config"
	"github.com/J-x-Z/winpipe/lib/metrics"
	"github.com/J-x-Z/winpipe/mirror"
	"github.com/J-x-Z/winpipe/transport"
	"github.com/J-x-Z/winpipe/wire"
)

// Server accepts client connections and serves each with its own
// compositor.
type Server struct {
	// Config supplies the listen addresses, frame limits and the
	// advertised output and seat. Required; it must pass Validate.
	Config *config.Config

	// Metrics records connection and delta statistics. Nil disables
	// recording.
	Metrics *metrics.Metrics

	// Gatherer backs /metrics on the operator endpoint. Nil selects
	// prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Clock stamps sessions and frame callbacks. Nil selects the
	// real clock.
	Clock clock.Clock

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-message traces are logged at Debug level; connection
	// lifecycle at Info and protocol errors at Warn.
	Logger *slog.Logger

	codec       compress.Tag
	listener    net.Listener
	ops         *http.Server
	opsListener net.Listener
	cancel      context.CancelFunc
	done        chan struct{}
	connections sync.WaitGroup
	stopping    atomic.Bool

	mu       sync.Mutex
	sessions map[string]*connection
}

// logger returns the configured logger or the default.
func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) clock() clock.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return clock.Real()
}

// Start binds the listener (and the operator endpoint, if configured)
// and returns once both are accepting. Connections are served in the
// background until Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.Config == nil {
		return errors.New("server: Config is required")
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	codec, err := compress.ParseTag(s.Config.Compression.Codec)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	s.codec = codec

	listener, err := transport.Listen(ctx, s.Config.Listen)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	s.listener = listener
	s.sessions = make(map[string]*connection)

	if s.Config.MetricsListen != "" {
		opsListener, err := net.Listen("tcp", s.Config.MetricsListen)
		if err != nil {
			listener.Close()
			s.listener = nil
			return fmt.Errorf("server: listening for the operator endpoint on %s: %w", s.Config.MetricsListen, err)
		}
		s.opsListener = opsListener
		s.ops = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := s.ops.Serve(opsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger().Error("operator endpoint failed", "error", err)
			}
		}()
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.acceptLoop(ctx)
	}()

	s.logger().Info("server started",
		"listen_addr", listener.Addr().String(),
		"metrics_addr", s.Config.MetricsListen,
		"codec", codec.String(),
	)
	return nil
}

// Addr returns the listener's address, useful when binding to port 0.
// Returns nil if the server has not been started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// OpsAddr returns the operator endpoint's address, or nil when it is
// not enabled.
func (s *Server) OpsAddr() net.Addr {
	if s.opsListener == nil {
		return nil
	}
	return s.opsListener.Addr()
}

// Stop shuts the server down. Every connection is sent a close frame
// and drained before Stop returns.
func (s *Server) Stop() {
	s.stopping.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.done != nil {
		<-s.done
	}
	if s.ops != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		s.ops.Shutdown(ctx)
	}
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// acceptLoop accepts connections and serves each on its own goroutine.
// It waits for all connection goroutines to finish before returning,
// so that closing the done channel signals full quiescence.
func (s *Server) acceptLoop(ctx context.Context) {
	var connectionCount int64
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.connections.Wait()
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.connections.Wait()
				return
			}
			s.logger().Error("accept failed", "error", err)
			continue
		}

		connectionCount++
		connectionID := connectionCount
		s.connections.Add(1)
		go func() {
			defer s.connections.Done()
			s.handleConnection(ctx, conn, connectionID)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, connectionID int64) {
	defer conn.Close()

	c := s.newConnection(conn, connectionID)
	s.mu.Lock()
	s.sessions[c.session] = c
	s.mu.Unlock()
	s.Metrics.ConnectionOpened()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, c.session)
		s.mu.Unlock()
		s.Metrics.ConnectionClosed()
	}()

	c.run(ctx)
}

func (s *Server) newConnection(conn net.Conn, connectionID int64) *connection {
	session := uuid.NewString()
	logger := s.logger().With("session", session, "connection_id", connectionID)

	cfg := s.Config
	output := compositor.DefaultOutput()
	output.Width = cfg.Output.Width
	output.Height = cfg.Output.Height
	output.RefreshMHz = cfg.Output.RefreshMHz
	output.PhysicalWidthMM = cfg.Output.PhysicalWidthMM
	output.PhysicalHeightMM = cfg.Output.PhysicalHeightMM
	output.Make = cfg.Output.Make
	output.Model = cfg.Output.Model
	output.Scale = cfg.Output.Scale

	engine := compositor.New(compositor.Options{
		Output: output,
		Seat: compositor.SeatInfo{
			Name:        cfg.Seat.Name,
			RepeatRate:  cfg.Seat.RepeatRate,
			RepeatDelay: cfg.Seat.RepeatDelay,
		},
		MirroredPools: cfg.Shm.MirroredPools,
		Mirror: mirror.Options{
			Codec:           s.codec,
			BlockSize:       cfg.Compression.BlockSize,
			MinCompressSize: cfg.Compression.MinCompressSize,
		},
		Clock:  s.clock(),
		Logger: logger,
	})

	framer := transport.NewFramer(conn, transport.FramerOptions{
		HighWater:    cfg.Backpressure.HighWater,
		LowWater:     cfg.Backpressure.LowWater,
		MaxFrameSize: cfg.MaxFrameSize,
		Logger:       logger,
	})

	return &connection{
		id:          connectionID,
		session:     session,
		conn:        conn,
		server:      s,
		logger:      logger,
		compositor:  engine,
		framer:      framer,
		reassembler: transport.NewReassembler(cfg.MaxFrameSize),
		decoder:     wire.NewDecoder(engine.Signature),
		started:     s.clock().Now(),
	}
}

// Sessions returns a snapshot of every live session in accept order.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, c := range s.sessions {
		infos = append(infos, c.info())
	}
	s.mu.Unlock()

	slices.SortFunc(infos, func(a, b SessionInfo) int {
		return cmp.Compare(a.ConnectionID, b.ConnectionID)
	})
	return infos
}
