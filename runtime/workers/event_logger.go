package workers

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gookit/color"
)

// EventLogger prints every bus event to an operational sink, raw address included.
//
// It owns its own subscription and is subject to the same lag policy as any
// session: when it falls behind it skips events instead of slowing the bus.
type EventLogger struct {
	log     *slog.Logger
	bus     *runtime.EventBus
	out     io.Writer
	colours bool
}

func NewEventLogger(log *slog.Logger, bus *runtime.EventBus, out io.Writer, colours bool) *EventLogger {
	return &EventLogger{log: log, bus: bus, out: out, colours: colours}
}

func (w *EventLogger) Run(ctx context.Context) error {
	sub := w.bus.Subscribe()
	defer sub.Close()

	var reported uint64
	for {
		evt, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, errors.ErrBusClosed) {
				w.log.Debug("Event logger stopped", "reason", err)
				return nil
			}
			return err
		}
		if missed := sub.Missed(); missed > reported {
			w.log.Warn("Event logger lagging, events skipped", "count", missed-reported)
			reported = missed
		}
		if _, err := fmt.Fprintln(w.out, w.Format(evt)); err != nil {
			return fmt.Errorf("write event log: %w", err)
		}
	}
}

// Format renders "[<address>] <token> description", or "[Server] description".
func (w *EventLogger) Format(evt event.Event) string {
	origin := evt.OriginLabel()
	description := evt.Payload.Describe()
	if !w.colours {
		return origin + " " + description
	}
	style := color.New(color.FgCyan)
	if d, ok := evt.Payload.(event.Disconnected); ok && d.Reason == event.FloodKicked {
		style = color.New(color.FgRed, color.OpBold)
	}
	return style.Render(origin) + " " + description
}
