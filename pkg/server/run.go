package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tdnguyen/parley/pkg/protocol"
)

// Run starts the server and blocks until a shutdown signal or an
// admin-console shutdown. Only a failure to bind the listener is fatal;
// every per-connection error is absorbed by that connection's worker.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	defer func() { _ = s.store.Close() }()

	if err := s.cfg.Validate(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	go s.acceptLoop(ln)
	s.startSweeper()
	s.StartMetricsHTTP()
	s.startAdminConsole(os.Stdin)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	slog.Info("parley server running",
		"addr", s.cfg.ListenAddr,
		"max_sessions", s.cfg.MaxSessions,
		"request_ttl", s.cfg.RequestTTL,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down...")
		s.Shutdown()
	case <-s.ctx.Done():
	}
	return nil
}

// acceptLoop hands each accepted connection to its own worker.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Error("accept error", "err", err)
				continue
			}
		}
		go s.handleConn(conn)
	}
}

// Shutdown stops the server: cancels the context every background loop
// watches, closes the listener so the accept loop unwinds, then tells
// every registered client and closes its connection. Closing the socket
// is what unblocks workers parked in a frame read; each one then runs
// its own disconnect transition.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for _, sess := range s.registry.Snapshot() {
		s.sendFrame(sess.Conn, protocol.TagNotice, "server shutting down")
		if sess.Conn != nil {
			_ = sess.Conn.Close()
		}
	}
}
