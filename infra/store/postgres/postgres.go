// Package postgres implements the record store on PostgreSQL with gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
)

const settingsID = 1

// Config holds the connection settings.
type Config struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	// Migrate applies pending schema migrations when the store opens.
	Migrate bool `json:"migrate"`
}

// SetDefaults applies the pool defaults.
func (c *Config) SetDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
}

// Store persists records in PostgreSQL.
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open connects to the database, checks it is reachable and optionally
// applies the migrations.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg.SetDefaults()
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, log: log}
	if cfg.Migrate {
		if err := s.Migrate(); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB, s.log)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Settings(ctx context.Context) (*model.AssignmentSettings, error) {
	return readSettings(s.db.WithContext(ctx))
}

// WithinTx runs fn inside a gorm transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, &pgTx{db: db})
	})
}

func (s *Store) Outcome(ctx context.Context, date time.Time) (model.Outcome, error) {
	return readOutcome(s.db.WithContext(ctx), model.Day(date))
}

// Import replaces every input record in one transaction.
func (s *Store) Import(ctx context.Context, ds store.Dataset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&clientRow{}, &staffRow{}, &vehicleRow{}, &subRegionRow{}, &specialAccessRow{}, &frequencyRow{}, &settingsRow{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}

		clients := make([]clientRow, 0, len(ds.Clients))
		for _, c := range ds.Clients {
			clients = append(clients, newClientRow(c))
		}
		staff := make([]staffRow, 0, len(ds.Staff))
		for _, st := range ds.Staff {
			staff = append(staff, newStaffRow(st))
		}
		vehicles := make([]vehicleRow, 0, len(ds.Vehicles))
		for _, v := range ds.Vehicles {
			vehicles = append(vehicles, newVehicleRow(v))
		}
		subs := make([]subRegionRow, 0, len(ds.SubRegions))
		for _, sr := range ds.SubRegions {
			subs = append(subs, subRegionRow{Region: sr.Region, Name: sr.Name, Routes: sr.Routes, AllowedStaff: sr.AllowedStaff})
		}
		special := make([]specialAccessRow, 0, len(ds.SpecialAccess))
		for _, a := range ds.SpecialAccess {
			special = append(special, specialAccessRow{ClientID: a.ClientID, AllowedStaff: a.AllowedStaff, Comment: a.Comment})
		}
		freqs := make([]frequencyRow, 0, len(ds.Frequencies))
		for _, f := range ds.Frequencies {
			freqs = append(freqs, frequencyRow{Name: f.Name, Label: f.Label, IntervalDays: f.IntervalDays, Active: f.Active})
		}

		if err := createAll(tx, clients, staff, vehicles, subs, special, freqs); err != nil {
			return err
		}
		if ds.Settings != nil {
			if err := tx.Create(&settingsRow{ID: settingsID, Settings: *ds.Settings}).Error; err != nil {
				return fmt.Errorf("insert settings: %w", err)
			}
		}
		return nil
	})
}

type pgTx struct {
	db *gorm.DB
}

func (t *pgTx) Load(ctx context.Context, date time.Time) (store.Snapshot, error) {
	db := t.db.WithContext(ctx)
	var snap store.Snapshot

	var clients []clientRow
	if err := db.Order("id").Find(&clients).Error; err != nil {
		return snap, fmt.Errorf("load clients: %w", err)
	}
	for _, r := range clients {
		snap.Clients = append(snap.Clients, r.model())
	}
	var staff []staffRow
	if err := db.Order("id").Find(&staff).Error; err != nil {
		return snap, fmt.Errorf("load staff: %w", err)
	}
	for _, r := range staff {
		snap.Staff = append(snap.Staff, r.model())
	}
	var vehicles []vehicleRow
	if err := db.Order("id").Find(&vehicles).Error; err != nil {
		return snap, fmt.Errorf("load vehicles: %w", err)
	}
	for _, r := range vehicles {
		snap.Vehicles = append(snap.Vehicles, r.model())
	}
	var subs []subRegionRow
	if err := db.Order("id").Find(&subs).Error; err != nil {
		return snap, fmt.Errorf("load subregions: %w", err)
	}
	for _, r := range subs {
		snap.SubRegions = append(snap.SubRegions, model.SubRegion{Region: r.Region, Name: r.Name, Routes: r.Routes, AllowedStaff: r.AllowedStaff})
	}
	var special []specialAccessRow
	if err := db.Order("id").Find(&special).Error; err != nil {
		return snap, fmt.Errorf("load special access: %w", err)
	}
	for _, r := range special {
		snap.SpecialAccess = append(snap.SpecialAccess, model.SpecialAccess{ClientID: r.ClientID, AllowedStaff: r.AllowedStaff, Comment: r.Comment})
	}
	var freqs []frequencyRow
	if err := db.Order("name").Find(&freqs).Error; err != nil {
		return snap, fmt.Errorf("load frequencies: %w", err)
	}
	for _, r := range freqs {
		snap.Frequencies = append(snap.Frequencies, model.FrequencySetting{Name: r.Name, Label: r.Label, IntervalDays: r.IntervalDays, Active: r.Active})
	}
	settings, err := readSettings(db)
	if err != nil {
		return snap, err
	}
	snap.Settings = settings

	var prior runSummaryRow
	err = db.Where("date < ?", model.Day(date)).Order("date DESC").Take(&prior).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return snap, fmt.Errorf("find prior outcome: %w", err)
	default:
		var rows []subRegionVehiclesRow
		if err := db.Where("date = ?", prior.Date).Order("id").Find(&rows).Error; err != nil {
			return snap, fmt.Errorf("load prior vehicles: %w", err)
		}
		for _, r := range rows {
			snap.PriorVehicles = append(snap.PriorVehicles, model.SubRegionVehicles{
				Date: model.Day(r.Date), Region: r.Region, SubRegion: r.SubRegion, VehicleIDs: r.VehicleIDs, Strategy: r.Strategy,
			})
		}
	}
	return snap, nil
}

func (t *pgTx) ReplaceOutcome(ctx context.Context, out model.Outcome) error {
	db := t.db.WithContext(ctx)
	d := model.Day(out.Date)
	for _, m := range outcomeTables {
		if err := db.Where("date = ?", d).Delete(m).Error; err != nil {
			return fmt.Errorf("delete %T: %w", m, err)
		}
	}
	rows := newOutcomeRows(out)
	if err := db.Create(&rows.summary).Error; err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return createAll(db, rows.staff, rows.vehicles, rows.subregions, rows.unassigned,
		rows.uncovered, rows.todos, rows.workloads, rows.quality)
}

// createAll inserts every non-empty slice of rows in batches.
func createAll(db *gorm.DB, slices ...any) error {
	for _, s := range slices {
		if isEmpty(s) {
			continue
		}
		if err := db.CreateInBatches(s, 200).Error; err != nil {
			return fmt.Errorf("insert %T: %w", s, err)
		}
	}
	return nil
}

func isEmpty(s any) bool {
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Slice && v.Len() == 0
}

func readSettings(db *gorm.DB) (*model.AssignmentSettings, error) {
	var row settingsRow
	err := db.Where("id = ?", settingsID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return &row.Settings, nil
}

func readOutcome(db *gorm.DB, date time.Time) (model.Outcome, error) {
	var rows outcomeRows
	err := db.Where("date = ?", date).Take(&rows.summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Outcome{}, store.ErrNotFound
	}
	if err != nil {
		return model.Outcome{}, fmt.Errorf("read run summary: %w", err)
	}
	for _, q := range []struct {
		what string
		dest any
	}{
		{"staff assignments", &rows.staff},
		{"vehicle assignments", &rows.vehicles},
		{"subregion vehicles", &rows.subregions},
		{"unassigned clients", &rows.unassigned},
		{"unassigned subregions", &rows.uncovered},
		{"todos", &rows.todos},
		{"workloads", &rows.workloads},
		{"data quality", &rows.quality},
	} {
		if err := db.Where("date = ?", date).Order("id").Find(q.dest).Error; err != nil {
			return model.Outcome{}, fmt.Errorf("read %s: %w", q.what, err)
		}
	}
	return rows.model(), nil
}

var _ store.Store = (*Store)(nil)
