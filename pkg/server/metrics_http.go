package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes
// /metrics in Prometheus text exposition format. It runs in the
// background and shuts down when the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP parley_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE parley_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "parley_uptime_seconds %f\n", uptime)

	write("parley_sessions_active", "Currently registered sessions.", "gauge",
		int64(s.registry.Count()))
	write("parley_requests_pending", "Outstanding private-chat invitations.", "gauge",
		int64(s.pending.Len()))

	write("parley_connections_active", "Current open connections.", "gauge",
		m.ActiveConnections.Load())
	write("parley_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("parley_connections_rejected_total", "Connections refused at the session cap.", "counter",
		m.RejectedAtCapacity.Load())
	write("parley_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("parley_auth_success_total", "Successful authentication attempts.", "counter",
		m.SuccessfulAuths.Load())
	write("parley_auth_failed_total", "Failed authentication attempts.", "counter",
		m.FailedAuths.Load())

	write("parley_public_messages_total", "Chat lines broadcast to the public room.", "counter",
		m.PublicMessages.Load())
	write("parley_private_messages_total", "Chat lines delivered in private pairs.", "counter",
		m.PrivateMessages.Load())

	write("parley_requests_created_total", "Private-chat invitations created.", "counter",
		m.RequestsCreated.Load())
	write("parley_requests_accepted_total", "Invitations accepted.", "counter",
		m.RequestsAccepted.Load())
	write("parley_requests_declined_total", "Invitations declined.", "counter",
		m.RequestsDeclined.Load())
	write("parley_requests_expired_total", "Invitations expired by the sweeper.", "counter",
		m.RequestsExpired.Load())
}
