// Package server implements the parley chat server: the session
// registry, the private-chat negotiation protocol, per-connection
// workers, and the pending-request sweeper.
package server

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/tdnguyen/parley/pkg/datastore"
)

// Dependencies holds external collaborators for the server. Server
// assumes ownership of Store and closes it on shutdown.
type Dependencies struct {
	Store datastore.DataStore
}

// Server is the parley chat server.
type Server struct {
	cfg      Config
	registry *Registry
	pending  *PendingLedger
	metrics  *Metrics
	store    datastore.DataStore

	// admitted counts connections accepted and not yet closed. The
	// session cap is enforced against this at admission time, before
	// authentication.
	admitted atomic.Int64

	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		pending:  NewPendingLedger(),
		metrics:  NewMetrics(),
		store:    deps.Store,
		ctx:      ctx,
		cancel:   cancel,
	}
}
