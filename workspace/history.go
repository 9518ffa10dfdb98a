package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Record is one run outcome appended to a user's session history.
// One record per file: appenders never contend on a shared file, so
// parallel suite runs for the same user cannot corrupt the history.
type Record struct {
	Test        string    `msgpack:"test"`
	Domain      string    `msgpack:"domain"`
	AppID       string    `msgpack:"app_id"`
	Username    string    `msgpack:"username"`
	Passed      bool      `msgpack:"passed"`
	ExitCode    int       `msgpack:"exit_code"`
	DurationMs  int64     `msgpack:"duration_ms"`
	Error       string    `msgpack:"error,omitempty"`
	ExtractPass string    `msgpack:"extract_pass,omitempty"`
	At          time.Time `msgpack:"at"`
}

// Stats aggregates a slice of history records.
type Stats struct {
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	AvgDurationMs int64   `json:"avg_duration_ms"`
	PassRate      float64 `json:"pass_rate"`
}

// AppendHistory writes one record into the user's sessions directory.
func (w *Workspace) AppendHistory(domain, appID, userID string, rec *Record) error {
	dir := w.SessionsDir(domain, appID, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	// CreateTemp gives a unique name; the suffix distinguishes records
	// written within the same timestamp.
	f, err := os.CreateTemp(dir, rec.At.UTC().Format("20060102T150405")+"-*.run")
	if err != nil {
		return fmt.Errorf("create history record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write history record: %w", err)
	}
	return f.Close()
}

// History reads one user's records, oldest first.
func (w *Workspace) History(domain, appID, userID string) ([]Record, error) {
	return readRecords(filepath.Join(w.SessionsDir(domain, appID, userID), "*.run"))
}

// HistoryForApp reads records across all of an app's users, oldest first.
func (w *Workspace) HistoryForApp(domain, appID string) ([]Record, error) {
	return readRecords(filepath.Join(w.AppDir(domain, appID), "users", "*", "sessions", "*.run"))
}

func readRecords(pattern string) ([]Record, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read history record %s: %w", p, err)
		}
		var rec Record
		if err := msgpack.Unmarshal(data, &rec); err != nil {
			// A torn write from a crashed run; skip rather than fail
			// the whole aggregation.
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].At.Before(records[j].At) })
	return records, nil
}

// Summarize aggregates records into stats.
func Summarize(records []Record) Stats {
	s := Stats{Total: len(records)}
	if s.Total == 0 {
		return s
	}

	var totalMs int64
	for _, r := range records {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		totalMs += r.DurationMs
	}
	s.AvgDurationMs = totalMs / int64(s.Total)
	s.PassRate = float64(s.Passed) / float64(s.Total)
	return s
}
