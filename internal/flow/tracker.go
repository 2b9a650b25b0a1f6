package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coachflow/coachflow/internal/models"
	"github.com/coachflow/coachflow/internal/store"
)

// DailyCounterTracker maintains per-user daily and lifetime usage
// counters. The first increment after local midnight triggers the
// reset: a timestamped backup of the pre-reset records is written,
// daily counts fold into totals, and today's counts start from zero.
type DailyCounterTracker struct {
	mu        sync.Mutex
	store     store.Store
	backupDir string
	now       func() time.Time
}

// NewDailyCounterTracker creates a tracker. backupDir may be empty to
// skip pre-reset backups.
func NewDailyCounterTracker(st store.Store, backupDir string) *DailyCounterTracker {
	return &DailyCounterTracker{
		store:     st,
		backupDir: backupDir,
		now:       time.Now,
	}
}

// Increment bumps one counter for the user, running the midnight reset
// first if it is due. Tracker failures are logged, never propagated;
// usage counting must not break message processing.
func (t *DailyCounterTracker) Increment(subscriberID string, kind models.CounterKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureResetLocked(); err != nil {
		slog.Error("DailyCounterTracker.Increment reset failed", "error", err)
	}

	record, err := t.store.GetTracker(subscriberID)
	if err != nil {
		slog.Error("DailyCounterTracker.Increment load failed", "error", err, "subscriberID", subscriberID)
		return
	}
	if record == nil {
		record = &models.DailyTrackerRecord{SubscriberID: subscriberID}
	}
	record.Increment(kind, t.now())
	if err := t.store.SaveTracker(*record); err != nil {
		slog.Error("DailyCounterTracker.Increment save failed", "error", err, "subscriberID", subscriberID)
	}
}

// EnsureReset runs the midnight fold if it is due. Called by the
// scheduler sweep so counters reset even on idle days.
func (t *DailyCounterTracker) EnsureReset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ensureResetLocked()
}

func (t *DailyCounterTracker) ensureResetLocked() error {
	today := t.now().Format("2006-01-02")
	last, err := t.store.GetLastResetDate()
	if err != nil {
		return fmt.Errorf("failed to read last reset date: %w", err)
	}
	if last == today {
		return nil
	}

	records, err := t.store.ListTrackers()
	if err != nil {
		return fmt.Errorf("failed to list trackers for reset: %w", err)
	}
	if last != "" {
		if err := t.writeBackup(last, records); err != nil {
			slog.Error("DailyCounterTracker backup failed, continuing with reset", "error", err)
		}
	}
	for i := range records {
		records[i].FoldIntoTotals()
		if err := t.store.SaveTracker(records[i]); err != nil {
			return fmt.Errorf("failed to save folded tracker for %s: %w", records[i].SubscriberID, err)
		}
	}
	if err := t.store.SetLastResetDate(today); err != nil {
		return fmt.Errorf("failed to record reset date: %w", err)
	}
	slog.Info("DailyCounterTracker reset completed", "previous", last, "today", today, "users", len(records))
	return nil
}

// writeBackup snapshots the pre-reset records to a timestamped file.
func (t *DailyCounterTracker) writeBackup(lastResetDate string, records []models.DailyTrackerRecord) error {
	if t.backupDir == "" {
		return nil
	}
	if err := os.MkdirAll(t.backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	snapshot := models.TrackerSnapshot{
		LastResetDate: lastResetDate,
		Users:         make(map[string]*models.DailyTrackerRecord, len(records)),
	}
	for i := range records {
		snapshot.Users[records[i].SubscriberID] = &records[i]
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tracker snapshot: %w", err)
	}
	name := fmt.Sprintf("tracker_backup_%s.json", t.now().Format("20060102T150405"))
	path := filepath.Join(t.backupDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tracker backup: %w", err)
	}
	slog.Info("DailyCounterTracker backup written", "path", path)
	return nil
}
