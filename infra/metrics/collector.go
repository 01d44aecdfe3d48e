package metrics

import (
	"context"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/internal/eventbus"
)

// StartOutcomeCollector subscribes to committed runs and records their
// outcome when the sink supports it. It stops when the context is canceled
// or the bus is closed. The returned channel is closed once it has stopped.
func StartOutcomeCollector(ctx context.Context, bus *eventbus.Bus[events.RunCommitted], sink coremetrics.RunSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.OutcomeRecorder)
	if bus == nil || !ok {
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
				if err := rec.RecordOutcome(ev.Outcome); err != nil {
					log.Warnf("record outcome %s: %v", ev.RunID, err)
				}
			}
		}
	}()
	return done
}
