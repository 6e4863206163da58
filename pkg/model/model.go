// Package model defines the core domain types for parley.
package model

import "net"

// RoomMode is the room assignment of a connected session.
type RoomMode int

const (
	// RoomPublic is the default broadcast room shared by all sessions.
	RoomPublic RoomMode = iota
	// RoomPrivate means the session is in a one-on-one pairing.
	RoomPrivate
)

func (m RoomMode) String() string {
	switch m {
	case RoomPublic:
		return "public"
	case RoomPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Session is the server-side record of one authenticated, connected user.
//
// The connection handle is owned exclusively by the session's connection
// worker; the registry keeps it only so delivery can resolve a target
// handle under the lock and perform the write outside it. Username and
// Addr never change after registration; Mode and Partner are mutated in
// place by room negotiation transitions.
type Session struct {
	Conn     net.Conn
	Addr     string
	Username string
	Mode     RoomMode
	Partner  string // set iff Mode == RoomPrivate
}
