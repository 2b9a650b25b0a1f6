// Package checkin reads the weekly check-in data files dropped on disk
// by the check-in collection process. Files are named by normalized
// client name plus an ISO date plus a fixed suffix, for example
// "john_smith_2026-08-24_fitness_wrapped_data.json".
package checkin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FileSuffix is the fixed trailing segment of every check-in file name.
const FileSuffix = "_fitness_wrapped_data.json"

var fileDatePattern = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2})` + regexp.QuoteMeta(FileSuffix) + `$`)

// Data is the subset of the check-in file the prompt templates use.
// Unknown fields are ignored so the collection process can evolve
// its output without breaking this reader.
type Data struct {
	ClientName        string        `json:"name"`
	Date              string        `json:"date"`
	WeightHistory     []float64     `json:"weight_history"`
	CurrentWeight     float64       `json:"current_weight"`
	WorkoutsThisWeek  int           `json:"workouts_this_week"`
	TotalReps         int           `json:"total_reps"`
	TotalSets         int           `json:"total_sets"`
	TotalWeightLifted float64       `json:"total_weight_lifted"`
	WeeklySummary     string        `json:"weekly_summary"`
	TopExercises      []TopExercise `json:"top_exercises"`
}

// TopExercise is one entry in the file's best-lift leaderboard.
type TopExercise struct {
	Name          string  `json:"name"`
	ImprovementPC float64 `json:"improvement_percent"`
}

// Loader finds and parses the newest check-in file for a client.
type Loader struct {
	dir string
}

// NewLoader creates a loader over the given data directory.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadLatest returns the newest check-in data for the named client, or
// (nil, nil) when no file matches. Name matching is fuzzy: the
// normalized client name is tried as-is and with first/last order
// swapped; among matches the newest embedded date wins.
func (l *Loader) LoadLatest(clientName string) (*Data, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("checkin.Loader data directory missing", "dir", l.dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read check-in directory: %w", err)
	}

	candidates := nameCandidates(clientName)
	var bestPath string
	var bestDate time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileSuffix) {
			continue
		}
		date, ok := embeddedDate(entry.Name())
		if !ok {
			slog.Warn("checkin.Loader skipping file with unparseable date", "file", entry.Name())
			continue
		}
		if !matchesAny(entry.Name(), candidates) {
			continue
		}
		if bestPath == "" || date.After(bestDate) {
			bestPath = entry.Name()
			bestDate = date
		}
	}
	if bestPath == "" {
		slog.Debug("checkin.Loader no file for client", "client", clientName)
		return nil, nil
	}

	raw, err := os.ReadFile(filepath.Join(l.dir, bestPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read check-in file %s: %w", bestPath, err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("checkin.Loader file unparseable", "file", bestPath, "error", err)
		return nil, fmt.Errorf("failed to parse check-in file %s: %w", bestPath, err)
	}
	slog.Debug("checkin.Loader loaded", "file", bestPath, "client", clientName)
	return &data, nil
}

// NormalizeName lowercases a client name and joins its words with
// underscores, matching the collection process's file naming.
func NormalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "_")
}

// nameCandidates returns the normalized name plus, for two-part names,
// the swapped first/last order.
func nameCandidates(clientName string) []string {
	normalized := NormalizeName(clientName)
	if normalized == "" {
		return nil
	}
	candidates := []string{normalized}
	parts := strings.Split(normalized, "_")
	if len(parts) == 2 {
		candidates = append(candidates, parts[1]+"_"+parts[0])
	}
	return candidates
}

func matchesAny(filename string, candidates []string) bool {
	for _, c := range candidates {
		if strings.HasPrefix(filename, c+"_") {
			return true
		}
	}
	return false
}

func embeddedDate(filename string) (time.Time, bool) {
	m := fileDatePattern.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
