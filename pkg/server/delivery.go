package server

import (
	"log/slog"
	"net"
	"time"

	"github.com/tdnguyen/parley/pkg/model"
	"github.com/tdnguyen/parley/pkg/protocol"
)

// writeTimeout bounds a single frame write so one stalled peer cannot
// wedge the goroutine delivering to it.
const writeTimeout = 10 * time.Second

// sendFrame writes one tagged frame to a connection. This is the only
// place the server writes to a socket, and it is never called while
// holding the registry or ledger lock: delivery always resolves handles
// under the lock first, then writes outside it. A failed write is
// logged and swallowed; the owning worker notices the broken socket on
// its next read.
func (s *Server) sendFrame(conn net.Conn, tag, text string) bool {
	if conn == nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := protocol.WriteFrame(conn, s.cfg.MaxFrameSize, protocol.Tagged(tag, text)); err != nil {
		slog.Debug("frame write failed", "remote", conn.RemoteAddr(), "err", err)
		return false
	}
	return true
}

// notifyUser delivers one frame to a named user. The handle is resolved
// under the registry lock; the write happens after release.
func (s *Server) notifyUser(username, tag, text string) bool {
	sess, ok := s.registry.Get(username)
	if !ok {
		return false
	}
	return s.sendFrame(sess.Conn, tag, text)
}

// broadcastPublic delivers one frame to every public-room session not
// in exclude. Targets are copied out of a registry snapshot before any
// I/O; a failed send to one recipient does not abort the rest.
func (s *Server) broadcastPublic(tag, text string, exclude ...string) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var targets []model.Session
	for _, sess := range s.registry.Snapshot() {
		if sess.Mode == model.RoomPublic && !skip[sess.Username] {
			targets = append(targets, sess)
		}
	}

	for _, sess := range targets {
		if !s.sendFrame(sess.Conn, tag, text) {
			slog.Debug("broadcast delivery failed", "user", sess.Username)
		}
	}
}
