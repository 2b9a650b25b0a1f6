package checkin

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCheckinFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
}

func TestLoadLatest_PicksNewestByEmbeddedDate(t *testing.T) {
	dir := t.TempDir()
	writeCheckinFile(t, dir, "john_smith_2026-08-10"+FileSuffix, `{"name":"John Smith","current_weight":82.5}`)
	writeCheckinFile(t, dir, "john_smith_2026-08-24"+FileSuffix, `{"name":"John Smith","current_weight":81.2,"workouts_this_week":4}`)

	l := NewLoader(dir)
	data, err := l.LoadLatest("John Smith")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if data == nil {
		t.Fatal("expected data, got nil")
	}
	if data.CurrentWeight != 81.2 || data.WorkoutsThisWeek != 4 {
		t.Errorf("expected newest file's contents, got %+v", data)
	}
}

func TestLoadLatest_SwappedNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeCheckinFile(t, dir, "smith_john_2026-08-24"+FileSuffix, `{"name":"Smith John"}`)

	l := NewLoader(dir)
	data, err := l.LoadLatest("John Smith")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if data == nil {
		t.Fatal("expected swapped-order file to match")
	}
}

func TestLoadLatest_NoMatch(t *testing.T) {
	dir := t.TempDir()
	writeCheckinFile(t, dir, "jane_doe_2026-08-24"+FileSuffix, `{"name":"Jane Doe"}`)

	l := NewLoader(dir)
	data, err := l.LoadLatest("John Smith")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil for unmatched client, got %+v", data)
	}
}

func TestLoadLatest_MissingDirectory(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "does-not-exist"))
	data, err := l.LoadLatest("John Smith")
	if err != nil {
		t.Fatalf("missing directory must not error: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil for missing directory, got %+v", data)
	}
}

func TestLoadLatest_BadDateSkipped(t *testing.T) {
	dir := t.TempDir()
	writeCheckinFile(t, dir, "john_smith_not-a-date"+FileSuffix, `{"name":"John Smith"}`)
	writeCheckinFile(t, dir, "john_smith_2026-08-17"+FileSuffix, `{"name":"John Smith","current_weight":83}`)

	l := NewLoader(dir)
	data, err := l.LoadLatest("John Smith")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if data == nil || data.CurrentWeight != 83 {
		t.Errorf("expected dated file to win over undated one, got %+v", data)
	}
}

func TestLoadLatest_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeCheckinFile(t, dir, "john_smith_2026-08-24"+FileSuffix, `{"name": truncated`)

	l := NewLoader(dir)
	if _, err := l.LoadLatest("John Smith"); err == nil {
		t.Error("expected parse error for malformed file")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"John Smith", "john_smith"},
		{"  Alex  ", "alex"},
		{"Mary Jane Watson", "mary_jane_watson"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
