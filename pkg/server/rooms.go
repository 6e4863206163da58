package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"unicode"

	"github.com/tdnguyen/parley/pkg/model"
	"github.com/tdnguyen/parley/pkg/protocol"
)

// This file implements the room negotiation protocol: the
// request/accept/decline/back/disconnect transitions that move users
// between the public room and private pairings. Every transition
// mutates the registry and ledger under their locks and performs all
// socket writes afterwards, through the delivery helpers.

func (s *Server) handleList(username string, conn net.Conn) {
	var public []string
	var self model.Session
	for _, sess := range s.registry.Snapshot() {
		if sess.Username == username {
			self = sess
			continue
		}
		if sess.Mode == model.RoomPublic {
			public = append(public, sess.Username)
		}
	}

	if len(public) == 0 {
		s.sendFrame(conn, protocol.TagOK, "no one else is in the public room")
	} else {
		s.sendFrame(conn, protocol.TagOK,
			fmt.Sprintf("online (%d): %s", len(public), strings.Join(public, ", ")))
	}
	if self.Mode == model.RoomPrivate {
		s.sendFrame(conn, protocol.TagNotice,
			"you are in a private chat with "+self.Partner+" (/back to leave)")
	}
}

func (s *Server) handleMsg(username string, conn net.Conn, target, text string) {
	text = sanitizeText(strings.TrimSpace(text))
	msg := model.Message{Sender: username, Body: text}
	if err := msg.Validate(); err != nil {
		s.sendFrame(conn, protocol.TagErr, err.Error())
		return
	}

	if target == username {
		s.sendFrame(conn, protocol.TagErr, "you cannot invite yourself")
		return
	}
	tgt, ok := s.registry.Get(target)
	if !ok {
		s.sendFrame(conn, protocol.TagErr, target+" is not online")
		return
	}
	if tgt.Mode == model.RoomPrivate {
		s.sendFrame(conn, protocol.TagErr, target+" is already in a private chat")
		return
	}

	if !s.pending.Create(username, target) {
		s.sendFrame(conn, protocol.TagErr, "you already have a pending request to "+target)
		return
	}
	s.metrics.RequestsCreated.Add(1)

	s.notifyUser(target, protocol.TagNotice, fmt.Sprintf(
		"%s wants a private chat: %q — type /accept %s or /decline %s",
		username, text, username, username))
	s.sendFrame(conn, protocol.TagOK, "invitation sent to "+target)
}

func (s *Server) handleAccept(username string, conn net.Conn, requester string) {
	// Consume-if-present is atomic: of any concurrent accept/decline
	// pair racing for this request, exactly one proceeds.
	if !s.pending.PopIfExists(requester, username) {
		s.sendFrame(conn, protocol.TagErr, "no pending request from "+requester)
		return
	}

	if err := s.registry.Pair(requester, username); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			s.sendFrame(conn, protocol.TagErr, requester+" is no longer online")
		} else {
			s.sendFrame(conn, protocol.TagErr, "request from "+requester+" is no longer valid")
		}
		return
	}
	s.metrics.RequestsAccepted.Add(1)

	// Both sides were public until the pairing; their departure
	// notices go out before either has confirmed the private session.
	// If one of them vanishes right now the other is resynced by its
	// own disconnect handling, so this stays a notice, not a promise.
	s.broadcastPublic(protocol.TagNotice, username+" left the public room", username, requester)
	s.broadcastPublic(protocol.TagNotice, requester+" left the public room", username, requester)

	s.sendFrame(conn, protocol.TagOK, "you are now in a private chat with "+requester)
	s.notifyUser(requester, protocol.TagOK, username+" accepted — you are now in a private chat with "+username)

	filters := model.MessageFilters{Between: []string{username, requester}, Limit: s.cfg.HistoryLimit}
	s.replayHistory(conn, filters)
	if req, ok := s.registry.Get(requester); ok {
		s.replayHistory(req.Conn, filters)
	}
}

func (s *Server) handleDecline(username string, conn net.Conn, requester string) {
	if !s.pending.PopIfExists(requester, username) {
		s.sendFrame(conn, protocol.TagErr, "no pending request from "+requester)
		return
	}
	s.metrics.RequestsDeclined.Add(1)

	s.notifyUser(requester, protocol.TagNotice, username+" declined your invitation")
	s.sendFrame(conn, protocol.TagOK, "declined request from "+requester)
}

func (s *Server) handleBack(username string, conn net.Conn) {
	partner, partnerReset, wasPrivate, err := s.registry.Unpair(username)
	if err != nil {
		return // session already torn down
	}
	if !wasPrivate {
		s.sendFrame(conn, protocol.TagNotice, "you are already in the public room")
		return
	}

	s.sendFrame(conn, protocol.TagOK, "you are back in the public room")
	s.replayHistory(conn, model.MessageFilters{PublicOnly: true, Limit: s.cfg.HistoryLimit})
	s.broadcastPublic(protocol.TagNotice, username+" rejoined the public room", username, partner)

	if partnerReset {
		s.notifyUser(partner, protocol.TagOK,
			username+" left the private chat — you are back in the public room")
		if p, ok := s.registry.Get(partner); ok {
			s.replayHistory(p.Conn, model.MessageFilters{PublicOnly: true, Limit: s.cfg.HistoryLimit})
		}
		s.broadcastPublic(protocol.TagNotice, partner+" rejoined the public room", username, partner)
	}
}

func (s *Server) handleChat(username string, conn net.Conn, text string) {
	text = sanitizeText(strings.TrimSpace(text))
	msg := model.Message{Sender: username, Body: text}
	if err := msg.Validate(); err != nil {
		s.sendFrame(conn, protocol.TagErr, err.Error())
		return
	}

	sess, ok := s.registry.Get(username)
	if !ok {
		return
	}

	if sess.Mode == model.RoomPrivate {
		// Re-check the partner right before delivery: it may have
		// moved away between this worker's read and now.
		partner, online := s.registry.Get(sess.Partner)
		if !online || partner.Mode != model.RoomPrivate || partner.Partner != username {
			s.sendFrame(conn, protocol.TagErr, sess.Partner+" is no longer in this chat")
			return
		}
		msg.PrivateTo = sess.Partner
		if err := s.store.AppendMessage(&msg); err != nil {
			slog.Error("history append failed", "user", username, "err", err)
		}
		s.sendFrame(partner.Conn, protocol.TagChat, "[private] "+username+": "+text)
		s.metrics.PrivateMessages.Add(1)
		return
	}

	if err := s.store.AppendMessage(&msg); err != nil {
		slog.Error("history append failed", "user", username, "err", err)
	}
	s.broadcastPublic(protocol.TagChat, username+": "+text, username)
	s.metrics.PublicMessages.Add(1)
}

func (s *Server) handleHistory(username string, conn net.Conn) {
	sess, ok := s.registry.Get(username)
	if !ok {
		return
	}

	filters := model.MessageFilters{PublicOnly: true, Limit: s.cfg.HistoryLimit}
	if sess.Mode == model.RoomPrivate {
		filters = model.MessageFilters{Between: []string{username, sess.Partner}, Limit: s.cfg.HistoryLimit}
	}
	s.replayHistory(conn, filters)
}

func (s *Server) handleChangePass(username string, conn net.Conn, oldPass, newPass string) {
	if err := model.ValidatePassword(newPass); err != nil {
		s.sendFrame(conn, protocol.TagErr, err.Error())
		return
	}
	ok, err := s.store.ChangePassword(username, oldPass, newPass)
	if err != nil {
		slog.Error("change password failed", "user", username, "err", err)
		s.sendFrame(conn, protocol.TagErr, "internal error")
		return
	}
	if !ok {
		s.sendFrame(conn, protocol.TagErr, "old password incorrect")
		return
	}
	s.sendFrame(conn, protocol.TagOK, "password changed")
}

// disconnectSession runs the disconnect transition for a session. The
// connection worker guards it so it runs exactly once per session,
// whatever combination of /exit, protocol error, timeout, or abrupt
// close triggered it. Pending requests naming the departed user are
// left to the sweeper; they can no longer be accepted because the
// registry lookup fails first.
func (s *Server) disconnectSession(username string) {
	removed, mode, partner, partnerReset := s.registry.RemoveAndUnpair(username)
	if !removed {
		return
	}

	if mode == model.RoomPublic {
		s.broadcastPublic(protocol.TagNotice, username+" left the public room")
		return
	}

	s.notifyUser(partner, protocol.TagNotice, username+" disconnected")
	if partnerReset {
		s.notifyUser(partner, protocol.TagOK, "you are back in the public room")
		if p, ok := s.registry.Get(partner); ok {
			s.replayHistory(p.Conn, model.MessageFilters{PublicOnly: true, Limit: s.cfg.HistoryLimit})
		}
		s.broadcastPublic(protocol.TagNotice, partner+" rejoined the public room", partner)
	}
}

// replayHistory sends matching history lines to one connection,
// newest-last.
func (s *Server) replayHistory(conn net.Conn, filters model.MessageFilters) {
	if conn == nil {
		return
	}
	messages, err := s.store.ListMessages(filters)
	if err != nil {
		slog.Error("history fetch failed", "err", err)
		s.sendFrame(conn, protocol.TagErr, "could not load history")
		return
	}
	if len(messages) == 0 {
		s.sendFrame(conn, protocol.TagNotice, "no history yet")
		return
	}
	for _, m := range messages {
		line := fmt.Sprintf("%s %s: %s", m.CreatedAt.Format("15:04:05"), m.Sender, m.Body)
		s.sendFrame(conn, protocol.TagHistory, line)
	}
}

// sanitizeText strips control characters (except newline, which is
// collapsed to a space) from user-supplied text to prevent terminal
// escape injection and null-byte tricks.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
