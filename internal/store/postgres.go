package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/coachflow/coachflow/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by a PostgreSQL database, for
// deployments where the service does not own its host's disk.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetUser(subscriberID string) (*models.UserRecord, error) {
	var recordJSON string
	err := s.db.QueryRow(`SELECT record FROM users WHERE subscriber_id = $1`, subscriberID).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "subscriberID", subscriberID)
		return nil, fmt.Errorf("failed to query user %s: %w", subscriberID, err)
	}
	var u models.UserRecord
	if err := u.FromJSON(recordJSON); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByHandle(handle string) (*models.UserRecord, error) {
	var recordJSON string
	err := s.db.QueryRow(`SELECT record FROM users WHERE handle = $1 ORDER BY updated_at DESC LIMIT 1`, handle).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByHandle failed", "error", err, "handle", handle)
		return nil, fmt.Errorf("failed to query user by handle %s: %w", handle, err)
	}
	var u models.UserRecord
	if err := u.FromJSON(recordJSON); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) SaveUser(u models.UserRecord) error {
	if err := u.Validate(); err != nil {
		return err
	}
	recordJSON, err := u.ToJSON()
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.Exec(`
		INSERT INTO users (subscriber_id, handle, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subscriber_id) DO UPDATE SET handle = EXCLUDED.handle, record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		u.SubscriberID, u.Handle, recordJSON, now, now)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err, "subscriberID", u.SubscriberID)
		return fmt.Errorf("failed to save user %s: %w", u.SubscriberID, err)
	}
	return nil
}

func (s *PostgresStore) ListUsers() ([]models.UserRecord, error) {
	rows, err := s.db.Query(`SELECT record FROM users ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.UserRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		var u models.UserRecord
		if err := u.FromJSON(recordJSON); err != nil {
			slog.Error("PostgresStore ListUsers unmarshal failed", "error", err)
			continue
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) AddActionItem(item models.ActionItem) (int64, error) {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	if item.Status == "" {
		item.Status = models.ActionItemPending
	}
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO action_items (created_at, handle, client_name, description, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		item.Timestamp, item.Handle, item.ClientName, item.Description, item.Status).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore AddActionItem failed", "error", err, "handle", item.Handle)
		return 0, fmt.Errorf("failed to insert action item for %s: %w", item.Handle, err)
	}
	return id, nil
}

func (s *PostgresStore) ListActionItems() ([]models.ActionItem, error) {
	rows, err := s.db.Query(`SELECT id, created_at, handle, client_name, description, status FROM action_items ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListActionItems query failed", "error", err)
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	var items []models.ActionItem
	for rows.Next() {
		var it models.ActionItem
		if err := rows.Scan(&it.ID, &it.Timestamp, &it.Handle, &it.ClientName, &it.Description, &it.Status); err != nil {
			return nil, fmt.Errorf("failed to scan action item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action item rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CompleteActionItem(id int64) error {
	_, err := s.db.Exec(`UPDATE action_items SET status = $1 WHERE id = $2`, models.ActionItemCompleted, id)
	if err != nil {
		slog.Error("PostgresStore CompleteActionItem failed", "error", err, "id", id)
		return fmt.Errorf("failed to complete action item %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) GetTracker(subscriberID string) (*models.DailyTrackerRecord, error) {
	var r models.DailyTrackerRecord
	var lastUpdate sql.NullTime
	err := s.db.QueryRow(`
		SELECT subscriber_id, daily_message_count, daily_calories_tracked, daily_form_checks, daily_workout_edits,
		       total_message_count, total_calories_tracked, total_form_checks, total_workout_edits, last_daily_update
		FROM daily_trackers WHERE subscriber_id = $1`, subscriberID).Scan(
		&r.SubscriberID, &r.DailyMessageCount, &r.DailyCaloriesTracked, &r.DailyFormChecks, &r.DailyWorkoutEdits,
		&r.TotalMessageCount, &r.TotalCaloriesTracked, &r.TotalFormChecks, &r.TotalWorkoutEdits, &lastUpdate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetTracker failed", "error", err, "subscriberID", subscriberID)
		return nil, fmt.Errorf("failed to query tracker for %s: %w", subscriberID, err)
	}
	if lastUpdate.Valid {
		r.LastDailyUpdate = lastUpdate.Time
	}
	return &r, nil
}

func (s *PostgresStore) SaveTracker(r models.DailyTrackerRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_trackers (subscriber_id, daily_message_count, daily_calories_tracked,
			daily_form_checks, daily_workout_edits, total_message_count, total_calories_tracked,
			total_form_checks, total_workout_edits, last_daily_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (subscriber_id) DO UPDATE SET
			daily_message_count = EXCLUDED.daily_message_count,
			daily_calories_tracked = EXCLUDED.daily_calories_tracked,
			daily_form_checks = EXCLUDED.daily_form_checks,
			daily_workout_edits = EXCLUDED.daily_workout_edits,
			total_message_count = EXCLUDED.total_message_count,
			total_calories_tracked = EXCLUDED.total_calories_tracked,
			total_form_checks = EXCLUDED.total_form_checks,
			total_workout_edits = EXCLUDED.total_workout_edits,
			last_daily_update = EXCLUDED.last_daily_update`,
		r.SubscriberID, r.DailyMessageCount, r.DailyCaloriesTracked, r.DailyFormChecks, r.DailyWorkoutEdits,
		r.TotalMessageCount, r.TotalCaloriesTracked, r.TotalFormChecks, r.TotalWorkoutEdits, r.LastDailyUpdate)
	if err != nil {
		slog.Error("PostgresStore SaveTracker failed", "error", err, "subscriberID", r.SubscriberID)
		return fmt.Errorf("failed to save tracker for %s: %w", r.SubscriberID, err)
	}
	return nil
}

func (s *PostgresStore) ListTrackers() ([]models.DailyTrackerRecord, error) {
	rows, err := s.db.Query(`
		SELECT subscriber_id, daily_message_count, daily_calories_tracked, daily_form_checks, daily_workout_edits,
		       total_message_count, total_calories_tracked, total_form_checks, total_workout_edits, last_daily_update
		FROM daily_trackers ORDER BY subscriber_id`)
	if err != nil {
		slog.Error("PostgresStore ListTrackers query failed", "error", err)
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

func (s *PostgresStore) GetLastResetDate() (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM tracker_meta WHERE key = 'last_reset_date'`).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLastResetDate failed", "error", err)
		return "", fmt.Errorf("failed to query last reset date: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) SetLastResetDate(date string) error {
	_, err := s.db.Exec(`
		INSERT INTO tracker_meta (key, value) VALUES ('last_reset_date', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, date)
	if err != nil {
		slog.Error("PostgresStore SetLastResetDate failed", "error", err, "date", date)
		return fmt.Errorf("failed to set last reset date: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPendingFlag(subscriberID string, kind models.PendingKind) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_flags (subscriber_id, kind, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (subscriber_id, kind) DO UPDATE SET created_at = EXCLUDED.created_at`,
		subscriberID, kind, time.Now())
	if err != nil {
		slog.Error("PostgresStore SetPendingFlag failed", "error", err, "subscriberID", subscriberID, "kind", kind)
		return fmt.Errorf("failed to set pending flag: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasPendingFlag(subscriberID string, kind models.PendingKind) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM pending_flags WHERE subscriber_id = $1 AND kind = $2`, subscriberID, kind).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		slog.Error("PostgresStore HasPendingFlag failed", "error", err, "subscriberID", subscriberID, "kind", kind)
		return false, fmt.Errorf("failed to query pending flag: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ConsumePendingFlag(subscriberID string, kind models.PendingKind) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM pending_flags WHERE subscriber_id = $1 AND kind = $2`, subscriberID, kind)
	if err != nil {
		slog.Error("PostgresStore ConsumePendingFlag failed", "error", err, "subscriberID", subscriberID, "kind", kind)
		return false, fmt.Errorf("failed to consume pending flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
