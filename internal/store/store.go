// Package store provides storage backends for CoachFlow.
//
// It includes SQLite and PostgreSQL stores for user records, action items,
// daily counters and pending-request flags, plus an in-memory store used in
// tests and when no DSN is configured. Pending flags live here, in the same
// transactional store as the user records, so a flag check and its mutation
// are a single store operation.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coachflow/coachflow/internal/models"
)

// Store defines the persistence operations the orchestration engine needs.
type Store interface {
	// GetUser returns the record for a subscriber id, or (nil, nil) when no
	// record exists.
	GetUser(subscriberID string) (*models.UserRecord, error)
	// GetUserByHandle is a best-effort lookup for legacy records keyed only
	// by display handle. Returns (nil, nil) when not found.
	GetUserByHandle(handle string) (*models.UserRecord, error)
	// SaveUser inserts or replaces a user record.
	SaveUser(u models.UserRecord) error
	// ListUsers returns all user records.
	ListUsers() ([]models.UserRecord, error)

	// AddActionItem appends to the operator audit log.
	AddActionItem(item models.ActionItem) (int64, error)
	// ListActionItems returns the audit log, oldest first.
	ListActionItems() ([]models.ActionItem, error)
	// CompleteActionItem marks an audit entry completed.
	CompleteActionItem(id int64) error

	// GetTracker returns the daily counter record for a subscriber id, or
	// (nil, nil) when none exists yet.
	GetTracker(subscriberID string) (*models.DailyTrackerRecord, error)
	// SaveTracker inserts or replaces a tracker record.
	SaveTracker(r models.DailyTrackerRecord) error
	// ListTrackers returns all tracker records.
	ListTrackers() ([]models.DailyTrackerRecord, error)
	// GetLastResetDate returns the local date (YYYY-MM-DD) of the most recent
	// global counter reset, or "" when no reset was ever recorded.
	GetLastResetDate() (string, error)
	// SetLastResetDate records the date of a global counter reset.
	SetLastResetDate(date string) error

	// SetPendingFlag arms a pending-media flag for a subscriber.
	SetPendingFlag(subscriberID string, kind models.PendingKind) error
	// HasPendingFlag reports whether a pending-media flag is armed.
	HasPendingFlag(subscriberID string, kind models.PendingKind) (bool, error)
	// ConsumePendingFlag clears the flag and reports whether it was armed.
	// Check and clear happen in a single store operation.
	ConsumePendingFlag(subscriberID string, kind models.PendingKind) (bool, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures store options.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything that looks like a file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store used in tests and when no
// database DSN is configured.
type InMemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.UserRecord
	actionItems   []models.ActionItem
	nextActionID  int64
	trackers      map[string]models.DailyTrackerRecord
	lastResetDate string
	pending       map[string]bool // key: subscriberID + "/" + kind
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:        make(map[string]models.UserRecord),
		trackers:     make(map[string]models.DailyTrackerRecord),
		pending:      make(map[string]bool),
		nextActionID: 1,
	}
}

func (s *InMemoryStore) GetUser(subscriberID string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[subscriberID]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (s *InMemoryStore) GetUserByHandle(handle string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Handle == handle {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) SaveUser(u models.UserRecord) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.SubscriberID] = u
	return nil
}

func (s *InMemoryStore) ListUsers() ([]models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeenAt.Before(out[j].FirstSeenAt) })
	return out, nil
}

func (s *InMemoryStore) AddActionItem(item models.ActionItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.nextActionID
	s.nextActionID++
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	s.actionItems = append(s.actionItems, item)
	return item.ID, nil
}

func (s *InMemoryStore) ListActionItems() ([]models.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ActionItem, len(s.actionItems))
	copy(out, s.actionItems)
	return out, nil
}

func (s *InMemoryStore) CompleteActionItem(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.actionItems {
		if s.actionItems[i].ID == id {
			s.actionItems[i].Status = models.ActionItemCompleted
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) GetTracker(subscriberID string) (*models.DailyTrackerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.trackers[subscriberID]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

func (s *InMemoryStore) SaveTracker(r models.DailyTrackerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[r.SubscriberID] = r
	return nil
}

func (s *InMemoryStore) ListTrackers() ([]models.DailyTrackerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DailyTrackerRecord, 0, len(s.trackers))
	for _, r := range s.trackers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriberID < out[j].SubscriberID })
	return out, nil
}

func (s *InMemoryStore) GetLastResetDate() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResetDate, nil
}

func (s *InMemoryStore) SetLastResetDate(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResetDate = date
	return nil
}

func pendingKey(subscriberID string, kind models.PendingKind) string {
	return subscriberID + "/" + string(kind)
}

func (s *InMemoryStore) SetPendingFlag(subscriberID string, kind models.PendingKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[pendingKey(subscriberID, kind)] = true
	return nil
}

func (s *InMemoryStore) HasPendingFlag(subscriberID string, kind models.PendingKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[pendingKey(subscriberID, kind)], nil
}

func (s *InMemoryStore) ConsumePendingFlag(subscriberID string, kind models.PendingKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pendingKey(subscriberID, kind)
	armed := s.pending[key]
	delete(s.pending, key)
	return armed, nil
}

func (s *InMemoryStore) Close() error { return nil }
