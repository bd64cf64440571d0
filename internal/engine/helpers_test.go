package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coffersTech/actionlog/internal/logging"
	"github.com/coffersTech/actionlog/internal/model"
	"github.com/coffersTech/actionlog/internal/storage"
)

var sweepNow = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

const week = 7 * 24 * time.Hour

func fixedClock() time.Time { return sweepNow }

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func action(ts, user string) model.LogEntry {
	return model.LogEntry{Timestamp: ts, UserName: user, CompanyID: "acme", Event: "click", Details: "d", Level: model.LevelInfo}
}

func writeRaw(t *testing.T, s *storage.Store, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(s.Root(), name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeEntries(t *testing.T, s *storage.Store, name string, entries ...model.LogEntry) {
	t.Helper()
	c := model.Sequence(entries)
	if len(entries) == 1 {
		c = model.Single(entries[0])
	}
	if _, err := s.Append(name, c, storage.MergeOverwrite); err != nil {
		t.Fatal(err)
	}
}

func exists(s *storage.Store, name string) bool {
	_, err := os.Stat(filepath.Join(s.Root(), name))
	return err == nil
}

func newSweeper(s *storage.Store) *Sweeper {
	sw := NewSweeper(s, week, logging.Nop())
	sw.now = fixedClock
	return sw
}
