// Package notify hands committed run outcomes to downstream consumers.
package notify

import (
	"context"
	"time"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/internal/eventbus"
)

// Notifier delivers the outcome of a committed run.
type Notifier interface {
	Notify(ctx context.Context, ev events.RunCommitted) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, events.RunCommitted) error { return nil }

// DefaultTimeout bounds the delivery of a single event.
const DefaultTimeout = 30 * time.Second

// Start forwards committed runs from bus to n until ctx is canceled or the
// bus is closed. Delivery errors are logged and never reach the engine. The
// returned channel is closed once the loop has stopped.
func Start(ctx context.Context, bus *eventbus.Bus[events.RunCommitted], n Notifier, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || n == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				deliver(ctx, n, ev, log)
			}
		}
	}()
	return done
}

func deliver(ctx context.Context, n Notifier, ev events.RunCommitted, log logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	if err := n.Notify(ctx, ev); err != nil {
		log.Warnf("notify run %s: %v", ev.RunID, err)
		return
	}
	log.Debugf("notified run %s", ev.RunID)
}
