package server

import (
	"chat-relay/abuse"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Starting State = iota
	Active
	Closing
	Terminated
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Closing:
		return "closing"
	default:
		return "terminated"
	}
}

// Settings are the per-session limits shared by every connection.
type Settings struct {
	BucketCapacity int
	BucketRefill   int
	BucketInterval time.Duration
	BanDuration    time.Duration
	MaxLineBytes   int
	WriteTimeout   time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		BucketCapacity: abuse.DefaultCapacity,
		BucketRefill:   abuse.DefaultRefill,
		BucketInterval: abuse.DefaultInterval,
		BanDuration:    abuse.DefaultBanDuration,
		MaxLineBytes:   DefaultMaxLineBytes,
		WriteTimeout:   10 * time.Second,
	}
}

// Session bridges one client connection to the event bus.
// It is owned by the goroutine calling Run.
type Session struct {
	id          uuid.UUID
	addr        netip.Addr
	conn        *LineConn
	bus         *runtime.EventBus
	bans        contract.IBanRegistry
	bucket      *abuse.Bucket
	moderator   *moderation.Moderator
	banDuration time.Duration
	state       State
	log         *slog.Logger
	metrics     *observability.Metrics
}

type lineResult struct {
	line string
	err  error
}

func NewSession(log *slog.Logger, conn *LineConn, addr netip.Addr,
	bus *runtime.EventBus, bans contract.IBanRegistry, moderator *moderation.Moderator,
	metrics *observability.Metrics, settings Settings) *Session {
	id := uuid.New()
	return &Session{
		id:          id,
		addr:        addr,
		conn:        conn,
		bus:         bus,
		bans:        bans,
		bucket:      abuse.NewBucket(settings.BucketCapacity, settings.BucketRefill, settings.BucketInterval),
		moderator:   moderator,
		banDuration: settings.BanDuration,
		state:       Starting,
		log:         log.With("session", id.String(), "addr", addr.String()),
		metrics:     metrics,
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Run announces the participant, relays traffic until the client leaves or is
// kicked, then announces the departure. It returns nil for a normal
// disconnection, an error wrapping ErrFloodDetected for a kick and an error
// wrapping ErrBusClosed when events can no longer be routed.
func (s *Session) Run(ctx context.Context) error {
	sub := s.bus.Subscribe()
	defer sub.Close()
	defer func() { _ = s.conn.Close() }()

	if _, err := s.bus.Publish(event.New(s.addr, event.Connected{})); err != nil {
		return fmt.Errorf("publish connect: %w", err)
	}
	s.metrics.SessionStarted()
	defer s.metrics.SessionEnded()
	s.transition(Active)

	reason, err := s.relay(ctx, sub)
	if err != nil {
		s.transition(Terminated)
		return err
	}
	return s.close(reason)
}

// relay services either one inbound line or one bus event per iteration,
// whichever is ready first.
func (s *Session) relay(ctx context.Context, sub *runtime.Subscription) (event.Reason, error) {
	lines := make(chan lineResult)
	done := make(chan struct{})
	defer close(done)
	go s.readLines(lines, done)

	for {
		select {
		case <-ctx.Done():
			return event.EndOfStream, nil

		case res := <-lines:
			if res.err != nil {
				if !stderrors.Is(res.err, io.EOF) {
					s.log.Debug("Read failed", "error", res.err)
				}
				return event.EndOfStream, nil
			}
			message, err := domain.NewMessage(res.line)
			if err != nil {
				continue
			}
			// Check then acquire: an empty bucket is a flood, never a wait.
			if s.bucket.Balance() < 1 {
				return event.FloodKicked, nil
			}
			if err := s.bucket.AcquireOne(ctx); err != nil {
				return event.EndOfStream, nil
			}
			if err := s.post(message); err != nil {
				return 0, err
			}

		case <-sub.Ready():
			evt, ok, err := sub.TryNext()
			if err != nil {
				return 0, fmt.Errorf("receive event: %w", err)
			}
			if !ok {
				continue
			}
			if err := s.conn.WriteLine(evt.Render()); err != nil {
				s.log.Debug("Write failed", "error", err)
				return event.EndOfStream, nil
			}
		}
	}
}

func (s *Session) post(message domain.Message) error {
	if text, words := s.moderator.Censor(message.Text); len(words) > 0 {
		message = domain.Message{Text: text}
	}
	evt, err := event.NewMessageEvent(s.addr, message)
	if err != nil {
		return err
	}
	if _, err := s.bus.Publish(evt); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// close announces the departure. A kicked address is banned before the announcement.
func (s *Session) close(reason event.Reason) error {
	s.transition(Closing)
	defer s.transition(Terminated)

	var result error
	if reason == event.FloodKicked {
		s.bans.Ban(s.addr, s.banDuration)
		s.metrics.FloodKicked()
		result = fmt.Errorf("%w: %s", errors.ErrFloodDetected, s.addr)
	}
	if _, err := s.bus.Publish(event.New(s.addr, event.Disconnected{Reason: reason})); err != nil {
		s.log.Warn("Failed to publish disconnect", "reason", reason.String(), "error", err)
	}
	return result
}

func (s *Session) readLines(out chan<- lineResult, done <-chan struct{}) {
	for {
		line, err := s.conn.ReadLine()
		select {
		case out <- lineResult{line: line, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) transition(next State) {
	s.log.Debug("Session state", "from", s.state.String(), "to", next.String())
	s.state = next
}
