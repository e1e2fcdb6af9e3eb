package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/veilco/market-creation/internal/domain"
)

// watchedChannels are the lifecycle outcomes operators care about; the
// intermediate draft churn stays off the notification channels.
var watchedChannels = []string{
	domain.EventMarketActivated,
	domain.EventMarketReverted,
}

// Listener bridges the signal bus to the notifier: it subscribes to the
// terminal lifecycle events and renders each as a short alert.
type Listener struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

func NewListener(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Listener {
	return &Listener{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_listener")),
	}
}

// Run consumes events until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for _, ch := range watchedChannels {
		msgCh, err := l.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", ch, err)
		}
		go l.consume(ctx, ch, msgCh)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (l *Listener) consume(ctx context.Context, channel string, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				return
			}
			l.handle(ctx, channel, data)
		}
	}
}

func (l *Listener) handle(ctx context.Context, channel string, data []byte) {
	var ev domain.LifecycleEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.logger.WarnContext(ctx, "undecodable event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	title, message := renderEvent(ev)
	if err := l.notifier.Notify(ctx, ev.Event, title, message); err != nil {
		l.logger.WarnContext(ctx, "notify failed",
			slog.String("event", ev.Event),
			slog.String("error", err.Error()),
		)
	}
}

func renderEvent(ev domain.LifecycleEvent) (title, message string) {
	switch ev.Event {
	case domain.EventMarketActivated:
		return "Market activated",
			fmt.Sprintf("Market %s is live at %s (tx %s).", ev.UID, ev.Address, ev.TransactionHash)
	case domain.EventMarketReverted:
		return "Market activation reverted",
			fmt.Sprintf("Market %s returned to draft: %s.", ev.UID, ev.RevertReason)
	default:
		return "Market event", fmt.Sprintf("Market %s: %s.", ev.UID, ev.Event)
	}
}
