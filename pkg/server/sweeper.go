package server

import (
	"log/slog"
	"time"

	"github.com/tdnguyen/parley/pkg/protocol"
)

// startSweeper launches the background loop that expires stale pending
// requests. It stops when the server context is cancelled.
func (s *Server) startSweeper() {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce()
			}
		}
	}()
}

// sweepOnce removes every pending request older than the TTL and
// notifies both parties. The ledger lock is released before any
// notification goes out; either party may already be gone, in which
// case the notification is silently skipped.
func (s *Server) sweepOnce() {
	expired := s.pending.SweepExpired(s.cfg.RequestTTL)
	if len(expired) == 0 {
		return
	}

	for _, p := range expired {
		s.metrics.RequestsExpired.Add(1)
		s.notifyUser(p.Requester, protocol.TagNotice,
			"your private-chat request to "+p.Target+" expired")
		s.notifyUser(p.Target, protocol.TagNotice,
			"the private-chat request from "+p.Requester+" expired")
	}
	slog.Debug("swept expired requests", "count", len(expired))
}
