// Package store provides storage backends for CoachFlow.
//
// This file implements the SQLite-backed store, the default persistence
// layer for single-host deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/coachflow/coachflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetUser(subscriberID string) (*models.UserRecord, error) {
	var recordJSON string
	err := s.db.QueryRow(`SELECT record FROM users WHERE subscriber_id = ?`, subscriberID).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUser not found", "subscriberID", subscriberID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "subscriberID", subscriberID)
		return nil, fmt.Errorf("failed to query user %s: %w", subscriberID, err)
	}
	var u models.UserRecord
	if err := u.FromJSON(recordJSON); err != nil {
		slog.Error("SQLiteStore GetUser unmarshal failed", "error", err, "subscriberID", subscriberID)
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByHandle(handle string) (*models.UserRecord, error) {
	var recordJSON string
	err := s.db.QueryRow(`SELECT record FROM users WHERE handle = ? ORDER BY updated_at DESC LIMIT 1`, handle).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByHandle failed", "error", err, "handle", handle)
		return nil, fmt.Errorf("failed to query user by handle %s: %w", handle, err)
	}
	var u models.UserRecord
	if err := u.FromJSON(recordJSON); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) SaveUser(u models.UserRecord) error {
	if err := u.Validate(); err != nil {
		return err
	}
	recordJSON, err := u.ToJSON()
	if err != nil {
		slog.Error("SQLiteStore SaveUser marshal failed", "error", err, "subscriberID", u.SubscriberID)
		return err
	}
	now := time.Now()
	_, err = s.db.Exec(`
		INSERT INTO users (subscriber_id, handle, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subscriber_id) DO UPDATE SET handle = excluded.handle, record = excluded.record, updated_at = excluded.updated_at`,
		u.SubscriberID, u.Handle, recordJSON, now, now)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err, "subscriberID", u.SubscriberID)
		return fmt.Errorf("failed to save user %s: %w", u.SubscriberID, err)
	}
	slog.Debug("SQLiteStore SaveUser succeeded", "subscriberID", u.SubscriberID)
	return nil
}

func (s *SQLiteStore) ListUsers() ([]models.UserRecord, error) {
	rows, err := s.db.Query(`SELECT record FROM users ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.UserRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			slog.Error("SQLiteStore ListUsers scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		var u models.UserRecord
		if err := u.FromJSON(recordJSON); err != nil {
			slog.Error("SQLiteStore ListUsers unmarshal failed", "error", err)
			continue
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	slog.Debug("SQLiteStore ListUsers succeeded", "count", len(users))
	return users, nil
}

func (s *SQLiteStore) AddActionItem(item models.ActionItem) (int64, error) {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	if item.Status == "" {
		item.Status = models.ActionItemPending
	}
	res, err := s.db.Exec(`INSERT INTO action_items (created_at, handle, client_name, description, status) VALUES (?, ?, ?, ?, ?)`,
		item.Timestamp, item.Handle, item.ClientName, item.Description, item.Status)
	if err != nil {
		slog.Error("SQLiteStore AddActionItem failed", "error", err, "handle", item.Handle)
		return 0, fmt.Errorf("failed to insert action item for %s: %w", item.Handle, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Debug("SQLiteStore AddActionItem succeeded", "id", id, "handle", item.Handle)
	return id, nil
}

func (s *SQLiteStore) ListActionItems() ([]models.ActionItem, error) {
	rows, err := s.db.Query(`SELECT id, created_at, handle, client_name, description, status FROM action_items ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListActionItems query failed", "error", err)
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	var items []models.ActionItem
	for rows.Next() {
		var it models.ActionItem
		if err := rows.Scan(&it.ID, &it.Timestamp, &it.Handle, &it.ClientName, &it.Description, &it.Status); err != nil {
			slog.Error("SQLiteStore ListActionItems scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan action item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action item rows: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) CompleteActionItem(id int64) error {
	_, err := s.db.Exec(`UPDATE action_items SET status = ? WHERE id = ?`, models.ActionItemCompleted, id)
	if err != nil {
		slog.Error("SQLiteStore CompleteActionItem failed", "error", err, "id", id)
		return fmt.Errorf("failed to complete action item %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetTracker(subscriberID string) (*models.DailyTrackerRecord, error) {
	var r models.DailyTrackerRecord
	var lastUpdate sql.NullTime
	err := s.db.QueryRow(`
		SELECT subscriber_id, daily_message_count, daily_calories_tracked, daily_form_checks, daily_workout_edits,
		       total_message_count, total_calories_tracked, total_form_checks, total_workout_edits, last_daily_update
		FROM daily_trackers WHERE subscriber_id = ?`, subscriberID).Scan(
		&r.SubscriberID, &r.DailyMessageCount, &r.DailyCaloriesTracked, &r.DailyFormChecks, &r.DailyWorkoutEdits,
		&r.TotalMessageCount, &r.TotalCaloriesTracked, &r.TotalFormChecks, &r.TotalWorkoutEdits, &lastUpdate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetTracker failed", "error", err, "subscriberID", subscriberID)
		return nil, fmt.Errorf("failed to query tracker for %s: %w", subscriberID, err)
	}
	if lastUpdate.Valid {
		r.LastDailyUpdate = lastUpdate.Time
	}
	return &r, nil
}

func (s *SQLiteStore) SaveTracker(r models.DailyTrackerRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daily_trackers (subscriber_id, daily_message_count, daily_calories_tracked,
			daily_form_checks, daily_workout_edits, total_message_count, total_calories_tracked,
			total_form_checks, total_workout_edits, last_daily_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SubscriberID, r.DailyMessageCount, r.DailyCaloriesTracked, r.DailyFormChecks, r.DailyWorkoutEdits,
		r.TotalMessageCount, r.TotalCaloriesTracked, r.TotalFormChecks, r.TotalWorkoutEdits, r.LastDailyUpdate)
	if err != nil {
		slog.Error("SQLiteStore SaveTracker failed", "error", err, "subscriberID", r.SubscriberID)
		return fmt.Errorf("failed to save tracker for %s: %w", r.SubscriberID, err)
	}
	return nil
}

func (s *SQLiteStore) ListTrackers() ([]models.DailyTrackerRecord, error) {
	rows, err := s.db.Query(`
		SELECT subscriber_id, daily_message_count, daily_calories_tracked, daily_form_checks, daily_workout_edits,
		       total_message_count, total_calories_tracked, total_form_checks, total_workout_edits, last_daily_update
		FROM daily_trackers ORDER BY subscriber_id`)
	if err != nil {
		slog.Error("SQLiteStore ListTrackers query failed", "error", err)
		return nil, fmt.Errorf("failed to query trackers: %w", err)
	}
	defer rows.Close()

	var records []models.DailyTrackerRecord
	for rows.Next() {
		var r models.DailyTrackerRecord
		var lastUpdate sql.NullTime
		if err := rows.Scan(&r.SubscriberID, &r.DailyMessageCount, &r.DailyCaloriesTracked, &r.DailyFormChecks,
			&r.DailyWorkoutEdits, &r.TotalMessageCount, &r.TotalCaloriesTracked, &r.TotalFormChecks,
			&r.TotalWorkoutEdits, &lastUpdate); err != nil {
			return nil, fmt.Errorf("failed to scan tracker row: %w", err)
		}
		if lastUpdate.Valid {
			r.LastDailyUpdate = lastUpdate.Time
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracker rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) GetLastResetDate() (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM tracker_meta WHERE key = 'last_reset_date'`).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLastResetDate failed", "error", err)
		return "", fmt.Errorf("failed to query last reset date: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) SetLastResetDate(date string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO tracker_meta (key, value) VALUES ('last_reset_date', ?)`, date)
	if err != nil {
		slog.Error("SQLiteStore SetLastResetDate failed", "error", err, "date", date)
		return fmt.Errorf("failed to set last reset date: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetPendingFlag(subscriberID string, kind models.PendingKind) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO pending_flags (subscriber_id, kind, created_at) VALUES (?, ?, ?)`,
		subscriberID, kind, time.Now())
	if err != nil {
		slog.Error("SQLiteStore SetPendingFlag failed", "error", err, "subscriberID", subscriberID, "kind", kind)
		return fmt.Errorf("failed to set pending flag: %w", err)
	}
	slog.Debug("SQLiteStore SetPendingFlag succeeded", "subscriberID", subscriberID, "kind", kind)
	return nil
}

func (s *SQLiteStore) HasPendingFlag(subscriberID string, kind models.PendingKind) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM pending_flags WHERE subscriber_id = ? AND kind = ?`, subscriberID, kind).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore HasPendingFlag failed", "error", err, "subscriberID", subscriberID, "kind", kind)
		return false, fmt.Errorf("failed to query pending flag: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) ConsumePendingFlag(subscriberID string, kind models.PendingKind) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM pending_flags WHERE subscriber_id = ? AND kind = ?`, subscriberID, kind)
	if err != nil {
		slog.Error("SQLiteStore ConsumePendingFlag failed", "error", err, "subscriberID", subscriberID, "kind", kind)
		return false, fmt.Errorf("failed to consume pending flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	slog.Debug("SQLiteStore ConsumePendingFlag", "subscriberID", subscriberID, "kind", kind, "was_armed", affected > 0)
	return affected > 0, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
