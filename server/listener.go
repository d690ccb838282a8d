// Package server accepts chat clients and runs one Session per connection.
package server

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"
)

// Listener is the accept loop. Banned addresses are dropped before any
// session or event exists for them.
type Listener struct {
	log       *slog.Logger
	listener  net.Listener
	bus       *runtime.EventBus
	bans      contract.IBanRegistry
	sessions  *runtime.Registry
	moderator *moderation.Moderator
	metrics   *observability.Metrics
	settings  Settings
	wg        sync.WaitGroup
}

func NewListener(log *slog.Logger, listener net.Listener, bus *runtime.EventBus,
	bans contract.IBanRegistry, sessions *runtime.Registry, moderator *moderation.Moderator,
	metrics *observability.Metrics, settings Settings) *Listener {
	return &Listener{
		log:       log,
		listener:  listener,
		bus:       bus,
		bans:      bans,
		sessions:  sessions,
		moderator: moderator,
		metrics:   metrics,
		settings:  settings,
	}
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Run accepts connections until ctx is canceled, then waits for every session to end.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.listener.Close()
	})
	defer stop()
	defer l.wg.Wait()

	l.log.Info("Relay listening", "address", l.listener.Addr().String())
	var backoff time.Duration
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				l.log.Info("Relay listener stopped")
				return nil
			}
			backoff = nextBackoff(backoff)
			l.log.Warn("Accept failed, retrying", "error", err, "in", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0
		l.admit(ctx, conn)
	}
}

func (l *Listener) admit(ctx context.Context, conn net.Conn) {
	addr, ok := remoteAddr(conn)
	if !ok {
		l.log.Warn("Dropping connection without IP address", "remote", conn.RemoteAddr().String())
		_ = conn.Close()
		return
	}
	if l.bans.IsBanned(addr) {
		l.log.Info("Refused banned address", "addr", addr.String())
		l.metrics.ConnectionRefused()
		_ = conn.Close()
		return
	}
	l.metrics.ConnectionAdmitted()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		lineConn := NewLineConn(conn, l.settings.MaxLineBytes, l.settings.WriteTimeout)
		session := NewSession(l.log, lineConn, addr, l.bus, l.bans, l.moderator, l.metrics, l.settings)
		l.sessions.Register(session.ID(), addr)
		defer l.sessions.Unregister(session.ID())
		err := session.Run(ctx)
		switch {
		case err == nil:
			l.log.Debug("Client disconnected", "addr", addr.String())
		case stderrors.Is(err, errors.ErrFloodDetected):
			l.log.Info("Client kicked for flooding", "addr", addr.String(), "ban", l.settings.BanDuration)
		default:
			l.log.Error("Session exited with error", "addr", addr.String(), "error", err)
		}
	}()
}

func remoteAddr(conn net.Conn) (netip.Addr, bool) {
	if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return domain.AddrFromNet(tcp.AddrPort()), true
	}
	addrPort, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		return netip.Addr{}, false
	}
	return domain.AddrFromNet(addrPort), true
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 5 * time.Millisecond
	}
	return min(current*2, time.Second)
}
