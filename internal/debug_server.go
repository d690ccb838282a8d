package internal

import (
	"chat-relay/abuse"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/runtime"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// DebugServer exposes the relay internals over HTTP:
//
//	GET /metrics  prometheus exposition of the relay registry
//	GET /healthz  liveness probe
//	GET /bans     plain text table of the active bans
//	GET /sessions plain text table of the connected participants
type DebugServer struct {
	log    *slog.Logger
	addr   string
	router http.Handler
}

func NewDebugServer(log *slog.Logger, addr string, metrics *observability.Metrics,
	bans *abuse.BanRegistry, sessions *runtime.Registry) *DebugServer {
	return &DebugServer{log: log, addr: addr, router: NewDebugRouter(metrics, bans, sessions)}
}

func NewDebugRouter(metrics *observability.Metrics, bans *abuse.BanRegistry, sessions *runtime.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/bans", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		WriteBans(w, bans.Active(), time.Now())
	})
	r.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		WriteSessions(w, sessions.Sessions(), time.Now())
	})
	return r
}

// Run serves until ctx is done, then shuts the HTTP server down gracefully.
func (d *DebugServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.addr, err)
	}
	server := &http.Server{Handler: d.router, ReadHeaderTimeout: 5 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		d.log.Info("Starting debug server", "address", listener.Addr().String())
		errChan <- server.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("debug server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		d.log.Warn("Debug server shutdown", "error", err)
	}
	return nil
}

// WriteBans renders the bans as a table, one row per banned address.
func WriteBans(w io.Writer, bans []abuse.Ban, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Address", "Token", "Expires", "Remaining"})
	table.SetAutoFormatHeaders(false)
	for _, ban := range bans {
		table.Append([]string{
			ban.Addr.String(),
			domain.DisplayToken(ban.Addr),
			ban.Expires.UTC().Format(time.RFC3339),
			ban.Expires.Sub(now).Round(time.Millisecond).String(),
		})
	}
	table.Render()
}

func WriteSessions(w io.Writer, sessions []runtime.SessionInfo, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Session", "Address", "Token", "Connected"})
	table.SetAutoFormatHeaders(false)
	for _, session := range sessions {
		table.Append([]string{
			session.ID.String(),
			session.Addr.String(),
			session.Token,
			now.Sub(session.Since).Round(time.Second).String(),
		})
	}
	table.Render()
}
