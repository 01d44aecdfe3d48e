// Package app wires the assignment engine to its record store, run lock,
// metrics, notifier and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/fieldops/api/runs"
	"github.com/kilianp07/fieldops/config"
	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/core/events"
	corelock "github.com/kilianp07/fieldops/core/lock"
	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/monitoring"
	"github.com/kilianp07/fieldops/core/store"
	"github.com/kilianp07/fieldops/infra/logger"
	"github.com/kilianp07/fieldops/infra/metrics"
	inframon "github.com/kilianp07/fieldops/infra/monitoring"
	"github.com/kilianp07/fieldops/infra/notify"
	"github.com/kilianp07/fieldops/internal/eventbus"
)

// Service runs the daily assignment and serves its results.
type Service struct {
	cfg      *config.Config
	store    store.Store
	engine   *assign.Engine
	locker   corelock.Locker
	sink     coremetrics.RunSink
	notifier notify.Notifier
	monitor  monitoring.Monitor
	bus      *eventbus.Bus[events.RunCommitted]
	log      logger.Logger
	now      func() time.Time
	closers  []io.Closer
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logger.Configure(cfg.Logging.Options())
	log := logger.New("service")

	s := &Service{cfg: cfg, log: log, now: time.Now, bus: eventbus.New[events.RunCommitted](16)}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	mon, err := inframon.NewSentryMonitor(cfg.Sentry.Monitoring())
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	s.monitor = mon

	st, err := OpenStore(ctx, cfg.Store, logger.New("store"))
	if err != nil {
		return nil, err
	}
	s.store = st
	s.closers = append(s.closers, st)

	locker, err := NewLocker(ctx, cfg.Lock)
	if err != nil {
		return nil, err
	}
	s.locker = locker
	if c, isCloser := locker.(io.Closer); isCloser {
		s.closers = append(s.closers, c)
	}

	sink, err := coremetrics.NewRunSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink
	if c, isCloser := sink.(io.Closer); isCloser {
		s.closers = append(s.closers, c)
	}

	s.notifier = notify.NopNotifier{}
	if cfg.Notify.Enabled {
		n, err := notify.NewMQTTNotifier(cfg.Notify.MQTT, logger.New("notify"))
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		n.SetMonitor(mon)
		s.notifier = n
		s.closers = append(s.closers, n)
	}

	s.engine = assign.NewEngine(st, cfg.Engine, logger.New("engine"))
	s.engine.SetMetrics(sink)
	s.engine.SetMonitor(mon)
	s.engine.SetBus(s.bus)
	ok = true
	return s, nil
}

// Store returns the record store of the service.
func (s *Service) Store() store.Store { return s.store }

// Target returns the target date of a run invoked at now.
func (s *Service) Target(now time.Time) time.Time {
	if loc, err := s.cfg.Schedule.Location(); err == nil {
		now = now.In(loc)
	}
	return model.AddDays(now, s.engine.LeadDays())
}

// RunDate runs the assignment for target while holding its date lock. It
// returns corelock.ErrLockHeld when another run of the date is active.
func (s *Service) RunDate(ctx context.Context, target time.Time) (assign.RunSummary, error) {
	key := corelock.Key(model.DateKey(target))
	l, err := s.locker.Acquire(ctx, key, s.cfg.Lock.TTL())
	if err != nil {
		return assign.RunSummary{}, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil {
			s.log.Warnf("release %s: %v", key, err)
		}
	}()
	return s.engine.Run(ctx, target)
}

// Outcome returns the committed outcome of a date.
func (s *Service) Outcome(ctx context.Context, date time.Time) (model.Outcome, error) {
	return s.store.Outcome(ctx, date)
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(runs.Prefix, runs.NewHandler(s, s.cfg.API.Token, logger.New("api")))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run starts the consumers of committed runs, the daily scheduler when
// enabled and the HTTP API. It blocks until ctx is cancelled or the server
// fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumed := s.startConsumers(ctx)
	scheduled := make(chan struct{})
	if s.cfg.Schedule.Enabled {
		go func() {
			defer close(scheduled)
			s.schedule(ctx)
		}()
	} else {
		close(scheduled)
	}

	err := serve(ctx, s.cfg.API.Addr, s.Handler(), s.log)
	cancel()
	<-scheduled
	consumed()
	return err
}

// RunOnce runs target with the consumers of committed runs attached and
// waits until they have handled the result. It closes the event bus, so the
// service accepts no further runs.
func (s *Service) RunOnce(ctx context.Context, target time.Time) (assign.RunSummary, error) {
	consumed := s.startConsumers(ctx)
	sum, err := s.RunDate(ctx, target)
	s.bus.Close()
	consumed()
	return sum, err
}

// startConsumers subscribes the outcome collector and the notifier. The
// returned func blocks until both have stopped.
func (s *Service) startConsumers(ctx context.Context) func() {
	collected := metrics.StartOutcomeCollector(ctx, s.bus, s.sink, s.log)
	notified := notify.Start(ctx, s.bus, s.notifier, s.log)
	return func() {
		<-collected
		<-notified
	}
}

// schedule runs the assignment every day at the configured time.
func (s *Service) schedule(ctx context.Context) {
	defer s.monitor.Recover()
	loc, err := s.cfg.Schedule.Location()
	if err != nil {
		loc = time.Local
	}
	for {
		now := s.now().In(loc)
		next := NextRun(now, s.cfg.Schedule.Hour, s.cfg.Schedule.Minute)
		s.log.Infof("next scheduled run at %s", next.Format(time.RFC3339))
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.RunScheduled(ctx)
	}
}

// RunScheduled runs the target date of the current day. Failures are
// logged; the engine has already reported them.
func (s *Service) RunScheduled(ctx context.Context) {
	target := s.Target(s.now())
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Schedule.Timeout())
	defer cancel()
	sum, err := s.RunDate(runCtx, target)
	switch {
	case errors.Is(err, corelock.ErrLockHeld):
		s.log.Warnf("scheduled run for %s skipped: %v", model.DateKey(target), err)
	case err != nil:
		s.log.Errorf("scheduled run for %s failed: %v", model.DateKey(target), err)
	default:
		s.log.Infof("scheduled run for %s %s", model.DateKey(target), sum.Status)
	}
}

// NextRun returns the first hour:minute in now's location strictly after now.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Close releases resources held by the service. The event bus is closed
// first so consumers stop before their backends go away.
func (s *Service) Close() error {
	s.bus.Close()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
