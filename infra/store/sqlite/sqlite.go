// Package sqlite implements the record store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS clients (
    seq INTEGER PRIMARY KEY,
    key TEXT NOT NULL,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS staff (
    seq INTEGER PRIMARY KEY,
    key TEXT NOT NULL,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS vehicles (
    seq INTEGER PRIMARY KEY,
    key TEXT NOT NULL,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS subregions (
    seq INTEGER PRIMARY KEY,
    key TEXT NOT NULL,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS special_access (
    seq INTEGER PRIMARY KEY,
    key TEXT NOT NULL,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS frequencies (
    seq INTEGER PRIMARY KEY,
    key TEXT NOT NULL,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_summaries (
    date TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    totals TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS outcome_records (
    date TEXT NOT NULL,
    kind TEXT NOT NULL,
    seq INTEGER NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (date, kind, seq)
);
CREATE INDEX IF NOT EXISTS outcome_records_kind ON outcome_records (kind, date);
`

// Outcome record kinds.
const (
	kindStaff       = "staff_assignment"
	kindVehicle     = "vehicle_assignment"
	kindSubRegion   = "subregion_vehicles"
	kindUnassigned  = "unassigned_client"
	kindUncovered   = "unassigned_subregion"
	kindTodo        = "reassignment_todo"
	kindWorkload    = "staff_workload"
	kindDataQuality = "data_quality"
)

const (
	createdAtLayout     = time.RFC3339Nano
	settingsSingletonID = 1
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists records in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serialises transactions and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Settings(ctx context.Context) (*model.AssignmentSettings, error) {
	return readSettings(ctx, s.db)
}

// WithinTx runs fn in a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(ctx, &tx{q: sqlTx}); err != nil {
		if rerr := sqlTx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			return fmt.Errorf("rollback: %v (cause: %w)", rerr, err)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Outcome(ctx context.Context, date time.Time) (model.Outcome, error) {
	return readOutcome(ctx, s.db, model.DateKey(date))
}

// Import replaces every input record in one transaction.
func (s *Store) Import(ctx context.Context, ds store.Dataset) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	for _, table := range []string{"clients", "staff", "vehicles", "subregions", "special_access", "frequencies", "settings"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := insertRecords(ctx, sqlTx, "clients", ds.Clients, func(c model.Client) string { return c.ID }); err != nil {
		return err
	}
	if err := insertRecords(ctx, sqlTx, "staff", ds.Staff, func(s model.Staff) string { return s.ID }); err != nil {
		return err
	}
	if err := insertRecords(ctx, sqlTx, "vehicles", ds.Vehicles, func(v model.Vehicle) string { return v.ID }); err != nil {
		return err
	}
	if err := insertRecords(ctx, sqlTx, "subregions", ds.SubRegions, model.SubRegion.Key); err != nil {
		return err
	}
	if err := insertRecords(ctx, sqlTx, "special_access", ds.SpecialAccess, func(a model.SpecialAccess) string { return a.ClientID }); err != nil {
		return err
	}
	if err := insertRecords(ctx, sqlTx, "frequencies", ds.Frequencies, func(f model.FrequencySetting) string { return model.NormalizeKey(f.Name) }); err != nil {
		return err
	}
	if ds.Settings != nil {
		b, err := json.Marshal(ds.Settings)
		if err != nil {
			return err
		}
		if _, err := sqlTx.ExecContext(ctx, `INSERT INTO settings (id, record) VALUES (?, ?)`, settingsSingletonID, string(b)); err != nil {
			return fmt.Errorf("insert settings: %w", err)
		}
	}
	return sqlTx.Commit()
}

type tx struct {
	q queryer
}

func (t *tx) Load(ctx context.Context, date time.Time) (store.Snapshot, error) {
	var snap store.Snapshot
	var err error
	if snap.Clients, err = selectRecords[model.Client](ctx, t.q, "clients"); err != nil {
		return snap, err
	}
	if snap.Staff, err = selectRecords[model.Staff](ctx, t.q, "staff"); err != nil {
		return snap, err
	}
	if snap.Vehicles, err = selectRecords[model.Vehicle](ctx, t.q, "vehicles"); err != nil {
		return snap, err
	}
	if snap.SubRegions, err = selectRecords[model.SubRegion](ctx, t.q, "subregions"); err != nil {
		return snap, err
	}
	if snap.SpecialAccess, err = selectRecords[model.SpecialAccess](ctx, t.q, "special_access"); err != nil {
		return snap, err
	}
	if snap.Frequencies, err = selectRecords[model.FrequencySetting](ctx, t.q, "frequencies"); err != nil {
		return snap, err
	}
	if snap.Settings, err = readSettings(ctx, t.q); err != nil {
		return snap, err
	}

	var prior sql.NullString
	err = t.q.QueryRowContext(ctx, `SELECT MAX(date) FROM run_summaries WHERE date < ?`, model.DateKey(date)).Scan(&prior)
	if err != nil {
		return snap, fmt.Errorf("find prior outcome: %w", err)
	}
	if prior.Valid {
		if snap.PriorVehicles, err = selectOutcome[model.SubRegionVehicles](ctx, t.q, prior.String, kindSubRegion); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

func (t *tx) ReplaceOutcome(ctx context.Context, out model.Outcome) error {
	date := model.DateKey(out.Date)
	if _, err := t.q.ExecContext(ctx, `DELETE FROM outcome_records WHERE date = ?`, date); err != nil {
		return fmt.Errorf("delete outcome records: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM run_summaries WHERE date = ?`, date); err != nil {
		return fmt.Errorf("delete run summary: %w", err)
	}
	totals, err := json.Marshal(out.Totals)
	if err != nil {
		return err
	}
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO run_summaries (date, run_id, created_at, totals) VALUES (?, ?, ?, ?)`,
		date, out.RunID, out.CreatedAt.UTC().Format(createdAtLayout), string(totals)); err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return errors.Join(
		insertOutcome(ctx, t.q, date, kindStaff, out.StaffAssignments),
		insertOutcome(ctx, t.q, date, kindVehicle, out.VehicleAssignments),
		insertOutcome(ctx, t.q, date, kindSubRegion, out.SubRegionVehicles),
		insertOutcome(ctx, t.q, date, kindUnassigned, out.UnassignedClients),
		insertOutcome(ctx, t.q, date, kindUncovered, out.UnassignedSubRegions),
		insertOutcome(ctx, t.q, date, kindTodo, out.Todos),
		insertOutcome(ctx, t.q, date, kindWorkload, out.Workloads),
		insertOutcome(ctx, t.q, date, kindDataQuality, out.DataQuality),
	)
}

func readSettings(ctx context.Context, q queryer) (*model.AssignmentSettings, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT record FROM settings WHERE id = ?`, settingsSingletonID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var s model.AssignmentSettings
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &s, nil
}

func readOutcome(ctx context.Context, q queryer, date string) (model.Outcome, error) {
	var out model.Outcome
	var runID, createdAt, totals string
	err := q.QueryRowContext(ctx, `SELECT run_id, created_at, totals FROM run_summaries WHERE date = ?`, date).
		Scan(&runID, &createdAt, &totals)
	if errors.Is(err, sql.ErrNoRows) {
		return out, store.ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("read run summary: %w", err)
	}
	if out.Date, err = model.ParseDate(date); err != nil {
		return out, err
	}
	out.RunID = runID
	if out.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return out, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(totals), &out.Totals); err != nil {
		return out, fmt.Errorf("unmarshal totals: %w", err)
	}

	if out.StaffAssignments, err = selectOutcome[model.StaffAssignment](ctx, q, date, kindStaff); err != nil {
		return out, err
	}
	if out.VehicleAssignments, err = selectOutcome[model.VehicleAssignment](ctx, q, date, kindVehicle); err != nil {
		return out, err
	}
	if out.SubRegionVehicles, err = selectOutcome[model.SubRegionVehicles](ctx, q, date, kindSubRegion); err != nil {
		return out, err
	}
	if out.UnassignedClients, err = selectOutcome[model.UnassignedClient](ctx, q, date, kindUnassigned); err != nil {
		return out, err
	}
	if out.UnassignedSubRegions, err = selectOutcome[model.UnassignedSubRegion](ctx, q, date, kindUncovered); err != nil {
		return out, err
	}
	if out.Todos, err = selectOutcome[model.ReassignmentTodo](ctx, q, date, kindTodo); err != nil {
		return out, err
	}
	if out.Workloads, err = selectOutcome[model.StaffWorkload](ctx, q, date, kindWorkload); err != nil {
		return out, err
	}
	if out.DataQuality, err = selectOutcome[model.DataQualityIssue](ctx, q, date, kindDataQuality); err != nil {
		return out, err
	}
	return out, nil
}

// insertRecords stores rows as JSON documents in one of the input tables.
func insertRecords[T any](ctx context.Context, q queryer, table string, rows []T, key func(T) string) error {
	for i, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", table, err)
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO "+table+" (seq, key, record) VALUES (?, ?, ?)", i, key(r), string(b)); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func selectRecords[T any](ctx context.Context, q queryer, table string) ([]T, error) {
	rows, err := q.QueryContext(ctx, "SELECT record FROM "+table+" ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return scanJSON[T](rows, table)
}

func insertOutcome[T any](ctx context.Context, q queryer, date, kind string, rows []T) error {
	for i, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", kind, err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO outcome_records (date, kind, seq, record) VALUES (?, ?, ?, ?)`,
			date, kind, i, string(b)); err != nil {
			return fmt.Errorf("insert %s: %w", kind, err)
		}
	}
	return nil
}

func selectOutcome[T any](ctx context.Context, q queryer, date, kind string) ([]T, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT record FROM outcome_records WHERE date = ? AND kind = ? ORDER BY seq`, date, kind)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	return scanJSON[T](rows, kind)
}

func scanJSON[T any](rows *sql.Rows, what string) ([]T, error) {
	defer func() { _ = rows.Close() }()
	var res []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r T
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", what, err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

var _ store.Store = (*Store)(nil)
