package scheduler

import "testing"

func TestNewScheduler(t *testing.T) {
	s, err := NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	defer s.Stop()

	if err := s.AddDailyJob(0, 5, func() {}); err != nil {
		t.Errorf("AddDailyJob failed: %v", err)
	}
}

func TestAddDailyJobRejectsBadTime(t *testing.T) {
	s, err := NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	defer s.Stop()

	if err := s.AddDailyJob(25, 0, func() {}); err == nil {
		t.Error("expected error for out-of-range hour")
	}
}
