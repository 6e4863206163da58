package server

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tdnguyen/parley/pkg/model"
)

// startAdminConsole runs the local operator command loop. It reads
// read-only introspection commands from r (normally stdin) and prints
// over registry/ledger snapshots, so it never blocks a connection
// worker. "shutdown" terminates the process via the server context.
func (s *Server) startAdminConsole(r io.Reader) {
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case <-s.ctx.Done():
				return
			default:
			}

			switch strings.TrimSpace(sc.Text()) {
			case "":
			case "users":
				s.printUsers()
			case "rooms":
				s.printRooms()
			case "requests":
				s.printRequests()
			case "metrics":
				fmt.Println(s.metrics.JSON())
			case "shutdown":
				slog.Info("shutdown requested from admin console")
				s.Shutdown()
				return
			case "help":
				fmt.Println("commands: users, rooms, requests, metrics, shutdown")
			default:
				fmt.Println("unknown command (try: users, rooms, requests, metrics, shutdown)")
			}
		}
	}()
}

func (s *Server) printUsers() {
	sessions := s.registry.Snapshot()
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}
	for _, sess := range sessions {
		fmt.Printf("%-32s %-21s %s\n", sess.Username, sess.Addr, sess.Mode)
	}
}

func (s *Server) printRooms() {
	var pairs int
	for _, sess := range s.registry.Snapshot() {
		if sess.Mode != model.RoomPrivate {
			continue
		}
		// print each pair once
		if sess.Username < sess.Partner {
			fmt.Printf("%s <-> %s\n", sess.Username, sess.Partner)
			pairs++
		}
	}
	if pairs == 0 {
		fmt.Println("no private rooms")
	}
}

func (s *Server) printRequests() {
	requests := s.pending.Snapshot()
	if len(requests) == 0 {
		fmt.Println("no pending requests")
		return
	}
	for _, req := range requests {
		fmt.Printf("%s -> %s (age %s)\n",
			req.Requester, req.Target, time.Since(req.CreatedAt).Truncate(time.Second))
	}
}
