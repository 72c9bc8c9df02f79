package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"growmat/backend/internal/watering"
	"growmat/backend/pkg/dialect"
)

// DefaultSessionLimit is used by ListSessions when no positive limit is given.
const DefaultSessionLimit = 50

// MaxSessionLimit caps the number of sessions returned by ListSessions.
const MaxSessionLimit = 500

// DeviceState is the restorable part of the controller state.
type DeviceState struct {
	DeviceID       string
	AutoWatering   bool
	WaterLeftML    float64
	TankCapacityML float64
	WaterUsedML    float64
	LastWatered    time.Time
	UpdatedAt      time.Time
}

// SessionRecord is a persisted watering session.
type SessionRecord struct {
	DeviceID string
	watering.Session
}

// SettingOverride is a setting changed at runtime.
type SettingOverride struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store persists device state, watering sessions and setting overrides.
type Store struct {
	l       *slog.Logger
	db      *sql.DB
	dialect dialect.Dialect
}

// Open connects to the database. The schema must already be migrated.
func Open(ctx context.Context, l *slog.Logger, d dialect.Dialect, connStr string) (*Store, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	dsn := connStr
	if d == dialect.SQLite {
		dsn = "file:" + connStr + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open(d.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d == dialect.SQLite {
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		l:       l.With(slog.String("component", "store"), slog.String("dialect", d.String())),
		db:      db,
		dialect: d,
	}

	if err := s.Ping(ctx); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return s, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// bind rewrites ? placeholders for the active dialect.
func (s *Store) bind(query string) string {
	if s.dialect != dialect.PostgreSQL {
		return query
	}

	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// LoadState returns the stored state of deviceID. ok is false when nothing was stored yet.
func (s *Store) LoadState(ctx context.Context, deviceID string) (state DeviceState, ok bool, err error) {
	var (
		lastWatered sql.NullInt64
		updatedAt   int64
	)

	row := s.db.QueryRowContext(ctx, s.bind(`
		SELECT auto_watering, water_left_ml, tank_capacity_ml, water_used_ml, last_watered_at, updated_at
		FROM device_state
		WHERE device_id = ?`), deviceID)

	err = row.Scan(&state.AutoWatering, &state.WaterLeftML, &state.TankCapacityML, &state.WaterUsedML, &lastWatered, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DeviceState{}, false, nil
	}

	if err != nil {
		return DeviceState{}, false, fmt.Errorf("failed to load device state: %w", err)
	}

	state.DeviceID = deviceID
	state.UpdatedAt = fromMillis(updatedAt)

	if lastWatered.Valid {
		state.LastWatered = fromMillis(lastWatered.Int64)
	}

	return state, true, nil
}

// SaveState upserts the state of a device.
func (s *Store) SaveState(ctx context.Context, state DeviceState) error {
	if state.DeviceID == "" {
		return errors.New("device ID is required")
	}

	var lastWatered sql.NullInt64
	if !state.LastWatered.IsZero() {
		lastWatered = sql.NullInt64{Int64: state.LastWatered.UnixMilli(), Valid: true}
	}

	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO device_state (device_id, auto_watering, water_left_ml, tank_capacity_ml, water_used_ml, last_watered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			auto_watering = excluded.auto_watering,
			water_left_ml = excluded.water_left_ml,
			tank_capacity_ml = excluded.tank_capacity_ml,
			water_used_ml = excluded.water_used_ml,
			last_watered_at = excluded.last_watered_at,
			updated_at = excluded.updated_at`),
		state.DeviceID, state.AutoWatering, state.WaterLeftML, state.TankCapacityML, state.WaterUsedML,
		lastWatered, state.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save device state: %w", err)
	}

	return nil
}

// RecordSession stores a finished watering session.
func (s *Store) RecordSession(ctx context.Context, deviceID string, session watering.Session) error {
	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO watering_sessions (id, device_id, manual, requested_ms, elapsed_ms, water_used_ml, outcome, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		session.ID, deviceID, session.Manual,
		session.Requested.Milliseconds(), session.Elapsed.Milliseconds(),
		session.WaterUsedML, string(session.Outcome),
		session.StartedAt.UnixMilli(), session.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record watering session %s: %w", session.ID, err)
	}

	return nil
}

// ListSessions returns the most recent sessions of deviceID, newest first.
func (s *Store) ListSessions(ctx context.Context, deviceID string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}

	limit = min(limit, MaxSessionLimit)

	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT id, manual, requested_ms, elapsed_ms, water_used_ml, outcome, started_at, finished_at
		FROM watering_sessions
		WHERE device_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`), deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query watering sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionRecord{}

	for rows.Next() {
		var (
			rec                   SessionRecord
			requested, elapsed    int64
			outcome               string
			startedAt, finishedAt int64
		)

		if err := rows.Scan(&rec.ID, &rec.Manual, &requested, &elapsed, &rec.WaterUsedML, &outcome, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watering session: %w", err)
		}

		rec.DeviceID = deviceID
		rec.Requested = time.Duration(requested) * time.Millisecond
		rec.Elapsed = time.Duration(elapsed) * time.Millisecond
		rec.Outcome = watering.Outcome(outcome)
		rec.StartedAt = fromMillis(startedAt)
		rec.FinishedAt = fromMillis(finishedAt)

		sessions = append(sessions, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watering sessions: %w", err)
	}

	return sessions, nil
}

// SaveSettingOverride upserts a runtime setting change.
func (s *Store) SaveSettingOverride(ctx context.Context, deviceID, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO setting_overrides (device_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`),
		deviceID, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save setting override %s: %w", key, err)
	}

	return nil
}

// LoadSettingOverrides returns the runtime setting changes of deviceID, oldest first.
func (s *Store) LoadSettingOverrides(ctx context.Context, deviceID string) ([]SettingOverride, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT key, value, updated_at
		FROM setting_overrides
		WHERE device_id = ?
		ORDER BY updated_at, key`), deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query setting overrides: %w", err)
	}
	defer rows.Close()

	var overrides []SettingOverride

	for rows.Next() {
		var (
			o         SettingOverride
			updatedAt int64
		)

		if err := rows.Scan(&o.Key, &o.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting override: %w", err)
		}

		o.UpdatedAt = fromMillis(updatedAt)
		overrides = append(overrides, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate setting overrides: %w", err)
	}

	return overrides, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
