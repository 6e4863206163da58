package server

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tdnguyen/parley/pkg/datastore"
	"github.com/tdnguyen/parley/pkg/model"
	"github.com/tdnguyen/parley/pkg/protocol"
)

// maxAuthAttempts bounds how many times a connection may fail the auth
// dialogue before being dropped.
const maxAuthAttempts = 5

// connWorker is the per-connection unit of execution. It owns its
// socket exclusively: authentication, the command read loop, and the
// final disconnect all run on this one goroutine. Shared state is only
// ever touched through the registry, ledger, and store operations.
type connWorker struct {
	srv      *Server
	conn     net.Conn
	username string

	// limiter throttles command processing so one client cannot flood
	// the shared state with work.
	limiter *rate.Limiter

	// cleanup guards the disconnect transition: whatever combination
	// of /exit, error, and timeout unwinds this worker, the transition
	// runs exactly once.
	cleanup sync.Once
}

// handleConn runs one connection from admission to teardown.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	// Admission control happens before authentication: a full server
	// refuses the connection outright instead of spending auth work on
	// it.
	admitted := s.admitted.Add(1)
	defer s.admitted.Add(-1)
	if admitted > int64(s.cfg.MaxSessions) {
		s.metrics.RejectedAtCapacity.Add(1)
		s.sendFrame(conn, protocol.TagErr, "server is full, try again later")
		return
	}

	remote := conn.RemoteAddr().String()
	slog.Debug("new connection", "remote", remote)

	w := &connWorker{
		srv:     s,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
	}

	if !w.authenticate() {
		return
	}
	defer w.disconnect()

	slog.Info("client authenticated", "user", w.username, "remote", remote)
	s.metrics.SuccessfulAuths.Add(1)

	s.sendFrame(conn, protocol.TagOK, "you are in the public room — type /help for commands")
	s.broadcastPublic(protocol.TagNotice, w.username+" joined the public room", w.username)
	s.replayHistory(conn, model.MessageFilters{PublicOnly: true, Limit: s.cfg.HistoryLimit})

	w.loop()
}

// read reads one frame under a deadline.
func (w *connWorker) read(timeout time.Duration) (string, error) {
	_ = w.conn.SetReadDeadline(time.Now().Add(timeout))
	return protocol.ReadFrame(w.conn, w.srv.cfg.MaxFrameSize)
}

// authenticate runs the auth dialogue: the client picks register or
// login, then answers a username and a password prompt, each in its own
// frame. Failed attempts loop until maxAuthAttempts or the auth idle
// timeout. On success the session is registered and w.username is set.
func (w *connWorker) authenticate() bool {
	s := w.srv
	s.sendFrame(w.conn, protocol.TagAuth, "welcome to parley — type 'register' or 'login'")

	for attempt := 0; attempt < maxAuthAttempts; attempt++ {
		choice, err := w.read(s.cfg.AuthTimeout)
		if err != nil {
			return false
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "register":
			if w.register() {
				s.sendFrame(w.conn, protocol.TagAuth, "account created — type 'login' to sign in")
			} else {
				s.metrics.FailedAuths.Add(1)
				s.sendFrame(w.conn, protocol.TagAuth, "type 'register' or 'login'")
			}
		case "login":
			if w.login() {
				return true
			}
			s.metrics.FailedAuths.Add(1)
			s.sendFrame(w.conn, protocol.TagAuth, "type 'register' or 'login'")
		default:
			s.sendFrame(w.conn, protocol.TagAuth, "type 'register' or 'login'")
		}
	}

	s.sendFrame(w.conn, protocol.TagErr, "too many failed attempts")
	return false
}

// promptCredentials asks for and reads a username and password.
func (w *connWorker) promptCredentials() (username, password string, ok bool) {
	s := w.srv
	s.sendFrame(w.conn, protocol.TagAuth, "username:")
	username, err := w.read(s.cfg.AuthTimeout)
	if err != nil {
		return "", "", false
	}
	s.sendFrame(w.conn, protocol.TagAuth, "password:")
	password, err = w.read(s.cfg.AuthTimeout)
	if err != nil {
		return "", "", false
	}
	return strings.TrimSpace(username), password, true
}

func (w *connWorker) register() bool {
	s := w.srv
	username, password, ok := w.promptCredentials()
	if !ok {
		return false
	}
	if err := model.ValidateUsername(username); err != nil {
		s.sendFrame(w.conn, protocol.TagErr, err.Error())
		return false
	}
	if err := model.ValidatePassword(password); err != nil {
		s.sendFrame(w.conn, protocol.TagErr, err.Error())
		return false
	}
	if _, err := s.store.CreateUser(username, password); err != nil {
		if errors.Is(err, datastore.ErrUsernameTaken) {
			s.sendFrame(w.conn, protocol.TagErr, "username already taken")
		} else {
			slog.Error("create user failed", "user", username, "err", err)
			s.sendFrame(w.conn, protocol.TagErr, "internal error")
		}
		return false
	}
	slog.Info("account registered", "user", username)
	return true
}

func (w *connWorker) login() bool {
	s := w.srv
	username, password, ok := w.promptCredentials()
	if !ok {
		return false
	}
	verified, err := s.store.VerifyUser(username, password)
	if err != nil {
		slog.Error("verify user failed", "user", username, "err", err)
		s.sendFrame(w.conn, protocol.TagErr, "internal error")
		return false
	}
	if !verified {
		s.sendFrame(w.conn, protocol.TagErr, "wrong username or password")
		return false
	}

	// The duplicate-login check and the registration are one atomic
	// registry operation; two racing logins cannot both pass.
	sess := &model.Session{
		Conn:     w.conn,
		Addr:     w.conn.RemoteAddr().String(),
		Username: username,
		Mode:     model.RoomPublic,
	}
	if err := s.registry.Register(sess); err != nil {
		s.sendFrame(w.conn, protocol.TagErr, "this account is already logged in")
		return false
	}
	w.username = username
	return true
}

// loop reads and dispatches framed commands until the connection ends.
func (w *connWorker) loop() {
	s := w.srv
	for {
		// Shutdown has already notified this client and closed its
		// socket; just unwind.
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		line, err := w.read(s.cfg.IdleTimeout)
		if err != nil {
			w.logReadEnd(err)
			return
		}

		if !w.limiter.Allow() {
			s.sendFrame(w.conn, protocol.TagErr, "slow down")
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			// Usage and unknown-command mistakes keep the connection
			// open; only transport-level failures tear it down.
			s.sendFrame(w.conn, protocol.TagErr, err.Error())
			continue
		}

		switch cmd.Kind {
		case protocol.CmdNone:
			// blank line, ignore
		case protocol.CmdList:
			s.handleList(w.username, w.conn)
		case protocol.CmdMsg:
			s.handleMsg(w.username, w.conn, cmd.Target, cmd.Text)
		case protocol.CmdAccept:
			s.handleAccept(w.username, w.conn, cmd.Target)
		case protocol.CmdDecline:
			s.handleDecline(w.username, w.conn, cmd.Target)
		case protocol.CmdBack:
			s.handleBack(w.username, w.conn)
		case protocol.CmdHistory:
			s.handleHistory(w.username, w.conn)
		case protocol.CmdChangePass:
			s.handleChangePass(w.username, w.conn, cmd.OldPass, cmd.NewPass)
		case protocol.CmdHelp:
			s.sendFrame(w.conn, protocol.TagNotice, protocol.HelpText())
		case protocol.CmdChat:
			s.handleChat(w.username, w.conn, cmd.Text)
		case protocol.CmdExit:
			s.sendFrame(w.conn, protocol.TagOK, "goodbye")
			return
		}
	}
}

// logReadEnd reports why the read loop ended and tells the client when
// there is still a socket to tell.
func (w *connWorker) logReadEnd(err error) {
	s := w.srv
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		s.sendFrame(w.conn, protocol.TagNotice, "disconnected for inactivity")
		slog.Debug("idle timeout", "user", w.username)
	case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrFrameMalformed):
		s.sendFrame(w.conn, protocol.TagErr, "protocol violation")
		slog.Warn("protocol violation", "user", w.username, "err", err)
	default:
		slog.Debug("connection closed", "user", w.username, "err", err)
	}
}

// disconnect runs the disconnect transition exactly once.
func (w *connWorker) disconnect() {
	w.cleanup.Do(func() {
		w.srv.metrics.TotalDisconnects.Add(1)
		w.srv.disconnectSession(w.username)
		slog.Info("client disconnected", "user", w.username)
	})
}
