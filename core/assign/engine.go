package assign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/monitoring"
	"github.com/kilianp07/fieldops/core/store"
	"github.com/kilianp07/fieldops/internal/eventbus"
)

// ErrStore marks failures of the record store. They abort the run and roll
// back every write of the target date.
var ErrStore = errors.New("record store failure")

// errGateClosed rolls back a run whose transaction sees settings that close
// the gate.
var errGateClosed = errors.New("eligibility gate closed")

// RunStatus is the final state of a run.
type RunStatus string

const (
	RunSkipped   RunStatus = "skipped"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunSummary is returned by every run. Completed runs carry the report of
// the committed outcome, including partial coverage.
type RunSummary struct {
	Report
	Status     RunStatus  `json:"status"`
	SkipReason SkipReason `json:"skip_reason,omitempty"`
	Message    string     `json:"message,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Config defines engine settings.
type Config struct {
	// LeadDays is how many days ahead of the invocation day the target date
	// lies. Due dates are computed from the invocation day.
	LeadDays int `json:"lead_days"`
	// Settings apply when the record store holds none.
	Settings model.AssignmentSettings `json:"settings"`
}

// SetDefaults applies the operational defaults.
func (c *Config) SetDefaults() {
	if c.LeadDays == 0 {
		c.LeadDays = 1
	}
	if c.Settings.NoAutomationWeekday == nil {
		def := model.DefaultSettings()
		c.Settings.NoAutomationWeekday = def.NoAutomationWeekday
	}
	c.Settings.SetDefaults()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LeadDays < 0 {
		return fmt.Errorf("lead_days must not be negative: %d", c.LeadDays)
	}
	return c.Settings.Validate()
}

// Engine runs the daily assignment for a target date.
type Engine struct {
	store    store.Store
	cfg      Config
	log      logger.Logger
	sink     metrics.RunSink
	monitor  monitoring.Monitor
	bus      *eventbus.Bus[events.RunCommitted]
	now      func() time.Time
	newRunID func() string
}

// NewEngine creates an Engine reading from and writing to st.
func NewEngine(st store.Store, cfg Config, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{
		store:    st,
		cfg:      cfg,
		log:      log,
		sink:     metrics.NopSink{},
		monitor:  monitoring.NopMonitor{},
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// SetMetrics configures the sink receiving run events.
func (e *Engine) SetMetrics(s metrics.RunSink) {
	if s != nil {
		e.sink = s
	}
}

// SetMonitor configures error reporting.
func (e *Engine) SetMonitor(m monitoring.Monitor) {
	e.monitor = monitoring.OrNop(m)
}

// SetBus configures the bus receiving RunCommitted events.
func (e *Engine) SetBus(b *eventbus.Bus[events.RunCommitted]) {
	e.bus = b
}

// LeadDays returns the configured distance between invocation and target.
func (e *Engine) LeadDays() int { return e.cfg.LeadDays }

// Run executes the assignment for target. It returns an error only when the
// record store fails or ctx is cancelled; clients or subregions left without
// staff or vehicles are reported in the summary.
func (e *Engine) Run(ctx context.Context, target time.Time) (RunSummary, error) {
	target = model.Day(target)
	sum := RunSummary{StartedAt: e.now(), Status: RunFailed}
	sum.Date = target
	sum.RunID = e.newRunID()
	log := e.log.With("run_id", sum.RunID).With("date", model.DateKey(target))

	settings, err := e.settings(ctx, log)
	if err != nil {
		return e.fail(log, sum, err)
	}
	if d := Gate(target, settings, log); !d.Proceed {
		sum.SkipReason = d.Reason
		return e.skip(log, sum), nil
	}

	var out model.Outcome
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		snap, err := tx.Load(ctx, target)
		if err != nil {
			return storeErr("load inputs", err)
		}
		settings = e.resolveSettings(snap.Settings, log)
		if d := Gate(target, settings, log); !d.Proceed {
			sum.SkipReason = d.Reason
			return errGateClosed
		}
		out, err = e.compute(ctx, log, target, sum.RunID, settings, snap)
		if err != nil {
			return err
		}
		if err := tx.ReplaceOutcome(ctx, out); err != nil {
			return storeErr("write outcome", err)
		}
		return nil
	})
	if errors.Is(err, errGateClosed) {
		return e.skip(log, sum), nil
	}
	if err != nil {
		return e.fail(log, sum, err)
	}

	sum.Report = Summarize(out)
	sum.Status = RunCompleted
	sum.FinishedAt = e.now()
	log.Infof("run completed: %d due, %d assigned, %d unassigned, %d subregions without vehicles",
		sum.Totals.Due, sum.Totals.Assigned, sum.Totals.Unassigned, sum.Totals.SubRegionsUncovered)
	e.record(log, sum)
	if e.bus != nil {
		e.bus.Publish(events.RunCommitted{RunID: sum.RunID, Date: target, Outcome: out})
	}
	return sum, nil
}

// settings prefers the stored settings and falls back to the configured ones
// when none are stored or they are inconsistent.
func (e *Engine) settings(ctx context.Context, log logger.Logger) (model.AssignmentSettings, error) {
	stored, err := e.store.Settings(ctx)
	if err != nil {
		return model.AssignmentSettings{}, storeErr("read settings", err)
	}
	return e.resolveSettings(stored, log), nil
}

// resolveSettings applies the same fallback to settings read inside the run
// transaction.
func (e *Engine) resolveSettings(stored *model.AssignmentSettings, log logger.Logger) model.AssignmentSettings {
	if stored == nil {
		return e.cfg.Settings
	}
	s := *stored
	s.SetDefaults()
	if err := s.Validate(); err != nil {
		log.Warnf("stored settings invalid, using configured settings: %v", err)
		return e.cfg.Settings
	}
	return s
}

// compute runs the stages in sequence on the snapshot.
func (e *Engine) compute(ctx context.Context, log logger.Logger, target time.Time, runID string,
	settings model.AssignmentSettings, snap store.Snapshot) (model.Outcome, error) {
	var r stageResults

	today := model.AddDays(target, -e.cfg.LeadDays)
	r.due = NewDueSelector(snap.Frequencies, log).Select(snap.Clients, today, target)
	if err := ctx.Err(); err != nil {
		return model.Outcome{}, err
	}

	grouping := GroupClients(r.due.Due, snap.SubRegions, settings.RegionPriority)
	r.pool = NewStaffPool(snap.Staff, log)
	access := NewAccessRules(snap.SpecialAccess, snap.SubRegions)
	r.staff = NewStaffAssigner(settings, r.pool, access, log).Assign(grouping)
	if err := ctx.Err(); err != nil {
		return model.Outcome{}, err
	}

	r.vehicles = NewVehicleAssigner(snap.Vehicles, snap.PriorVehicles, log).Assign(r.staff)
	if err := ctx.Err(); err != nil {
		return model.Outcome{}, err
	}
	return buildOutcome(target, runID, e.now().UTC(), r), nil
}

// storeErr marks err as a store failure unless the context ended.
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func (e *Engine) skip(log logger.Logger, sum RunSummary) RunSummary {
	sum.Status = RunSkipped
	sum.FinishedAt = e.now()
	log.Infof("run skipped: %s", sum.SkipReason)
	e.record(log, sum)
	return sum
}

func (e *Engine) fail(log logger.Logger, sum RunSummary, err error) (RunSummary, error) {
	if !errors.Is(err, ErrStore) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrStore, err)
	}
	sum.Status = RunFailed
	sum.Message = err.Error()
	sum.FinishedAt = e.now()
	log.Errorf("run failed: %v", err)
	e.monitor.CaptureException(err, map[string]string{"date": model.DateKey(sum.Date), "run_id": sum.RunID})
	e.record(log, sum)
	return sum, err
}

func (e *Engine) record(log logger.Logger, sum RunSummary) {
	ev := metrics.RunEvent{
		RunID:          sum.RunID,
		Date:           sum.Date,
		Status:         string(sum.Status),
		SkipReason:     string(sum.SkipReason),
		Duration:       sum.FinishedAt.Sub(sum.StartedAt),
		Totals:         sum.Totals,
		WorkloadStdDev: sum.Stats.StdDev,
		WorkloadSpread: sum.Stats.Spread,
		Time:           sum.FinishedAt,
	}
	if err := e.sink.RecordRun(ev); err != nil {
		log.Warnf("record run metrics: %v", err)
	}
}
