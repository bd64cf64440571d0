package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coffersTech/actionlog/internal/logging"
	"github.com/coffersTech/actionlog/internal/model"
	"github.com/coffersTech/actionlog/internal/storage"
)

func newEngine(t *testing.T, sweepOnWrite bool) *Engine {
	t.Helper()
	e := New(newStore(t), Options{
		Retention:    week,
		SweepOnWrite: sweepOnWrite,
		Now:          func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) },
	}, logging.Nop())
	e.Bootstrap()
	return e
}

func TestEngine_SaveThenReadOnce(t *testing.T) {
	e := newEngine(t, true)
	entry := model.LogEntry{
		Timestamp: "2025-01-15T10:00:00.000Z",
		UserName:  "u1",
		CompanyID: "c1",
		Event:     "login",
		Details:   "ok",
		Level:     model.LevelInfo,
	}

	res, err := e.Save("test", model.Single(entry), storage.MergeOverwrite)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.FileName != "test.json" {
		t.Errorf("Expected test.json, got %s", res.FileName)
	}

	all := e.Index().All()
	count := 0
	for _, got := range all {
		if got == entry {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected the entry exactly once, got %d (%v)", count, all)
	}
}

func TestEngine_SaveFillsDefaults(t *testing.T) {
	e := newEngine(t, false)
	entry := model.LogEntry{UserName: "u", CompanyID: "c", Event: "e", Details: "d"}

	if _, err := e.Save("defaults", model.Single(entry), storage.MergeOverwrite); err != nil {
		t.Fatal(err)
	}
	got := e.Index().All()[0]
	if got.Level != model.LevelInfo {
		t.Errorf("Expected level info, got %q", got.Level)
	}
	if got.Timestamp != "2025-01-15T12:00:00.000Z" {
		t.Errorf("Expected server timestamp, got %q", got.Timestamp)
	}
}

func TestEngine_SaveRejectsInvalid(t *testing.T) {
	e := newEngine(t, false)

	tests := []struct {
		name    string
		content model.Content
		field   string
	}{
		{"empty", model.Sequence(nil), "logData"},
		{"missing user", model.Single(model.LogEntry{CompanyID: "c", Event: "e", Details: "d"}), "userName"},
		{"bad level", model.Single(model.LogEntry{UserName: "u", CompanyID: "c", Event: "e", Details: "d", Level: "fatal"}), "level"},
		{"bad timestamp", model.Single(model.LogEntry{Timestamp: "yesterday", UserName: "u", CompanyID: "c", Event: "e", Details: "d"}), "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Save("rejected", tt.content, storage.MergeOverwrite)
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if !strings.HasSuffix(ve.Field, tt.field) {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}

	if names, _ := e.Store().List(); len(names) != 0 {
		t.Errorf("Expected no files written, got %v", names)
	}
	if e.Index().Len() != 0 {
		t.Errorf("Expected empty index, got %d", e.Index().Len())
	}
}

func TestEngine_SaveRejectsTraversal(t *testing.T) {
	e := newEngine(t, false)
	_, err := e.Save("../../etc/passwd", model.Single(action("2025-01-15T00:00:00Z", "u")), storage.MergeOverwrite)
	if !errors.Is(err, storage.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied, got %v", err)
	}
}

func TestEngine_SweepOnWrite(t *testing.T) {
	e := newEngine(t, true)

	if _, err := e.Save("old", model.Single(action("2025-01-01T00:00:00Z", "u")), storage.MergeOverwrite); err != nil {
		t.Fatal(err)
	}
	// the write itself is swept straight away
	if names, _ := e.Store().List(); len(names) != 0 {
		t.Errorf("Expected old file swept, got %v", names)
	}
	if e.Index().Len() != 0 {
		t.Errorf("Expected index to reflect the sweep, got %d entries", e.Index().Len())
	}
}

func TestEngine_AppendMode(t *testing.T) {
	e := newEngine(t, false)
	for i := 0; i < 3; i++ {
		if _, err := e.Save("stream", model.Single(action("2025-01-15T00:00:00Z", "u")), storage.MergeAppend); err != nil {
			t.Fatal(err)
		}
	}
	if e.Index().Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", e.Index().Len())
	}
}

func TestEngine_Upload(t *testing.T) {
	e := newEngine(t, false)

	if _, err := e.Upload("", model.Sequence(nil)); err == nil {
		t.Error("Expected an error for empty upload")
	}

	res, err := e.Upload("", model.Sequence([]model.LogEntry{action("2025-01-14T00:00:00Z", "a"), action("2025-01-14T01:00:00Z", "b")}))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(res.FileName, "uploaded-") || res.Entries != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if e.Index().Len() != 2 {
		t.Errorf("Expected 2 indexed entries, got %d", e.Index().Len())
	}
}

func TestEngine_DeleteRefreshesIndex(t *testing.T) {
	e := newEngine(t, false)
	if _, err := e.Save("gone", model.Single(action("2025-01-14T00:00:00Z", "u")), storage.MergeOverwrite); err != nil {
		t.Fatal(err)
	}
	if err := e.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if e.Index().Len() != 0 {
		t.Errorf("Expected empty index after delete, got %d", e.Index().Len())
	}
	if err := e.Delete("gone"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEngine_Cleanup(t *testing.T) {
	e := newEngine(t, false)
	_, _ = e.Save("old", model.Single(action("2025-01-02T00:00:00Z", "u")), storage.MergeOverwrite)
	_, _ = e.Save("new", model.Single(action("2025-01-14T00:00:00Z", "u")), storage.MergeOverwrite)

	res := e.Cleanup()
	if res.DeletedCount != 1 || res.DeletedFiles[0] != "old.json" {
		t.Errorf("unexpected cleanup result: %+v", res)
	}
	if e.Index().Len() != 1 {
		t.Errorf("Expected 1 entry left, got %d", e.Index().Len())
	}
}

func TestEngine_Stats(t *testing.T) {
	e := newEngine(t, false)
	_, _ = e.Save("s", model.Single(action("2025-01-14T00:00:00Z", "u")), storage.MergeOverwrite)

	st := e.Stats()
	if st.TotalEntries != 1 || st.Files != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.DiskUsage <= 0 {
		t.Errorf("Expected positive disk usage, got %d", st.DiskUsage)
	}
}

func TestEngine_RunCleanerStops(t *testing.T) {
	e := newEngine(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.RunCleaner(ctx, 10*time.Millisecond)
		close(done)
	}()

	_, _ = e.Save("old", model.Single(action("2025-01-02T00:00:00Z", "u")), storage.MergeOverwrite)

	deadline := time.After(2 * time.Second)
	for {
		names, _ := e.Store().List()
		if len(names) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduled sweep did not remove old file")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleaner did not stop after cancel")
	}
}

func TestEngine_UploadRejectsExistingName(t *testing.T) {
	e := newEngine(t, false)
	entries := model.Sequence([]model.LogEntry{action("2025-01-14T00:00:00Z", "a")})

	if _, err := e.Upload("imported", entries); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	_, err := e.Upload("imported", model.Sequence([]model.LogEntry{action("2025-01-14T01:00:00Z", "b")}))
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "fileName" {
		t.Fatalf("Expected fileName ValidationError, got %v", err)
	}

	c, _ := e.Store().Read("imported")
	if c.Len() != 1 || c.Entries[0].UserName != "a" {
		t.Errorf("Expected the first upload untouched, got %+v", c.Entries)
	}
}

func TestEngine_ConcurrentSavesVisibleAfterward(t *testing.T) {
	e := newEngine(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("s%d", i)
			if _, err := e.Save(name, model.Single(action("2025-01-15T00:00:00Z", name)), storage.MergeOverwrite); err != nil {
				t.Errorf("Save %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	if e.Index().Len() != 8 {
		t.Errorf("Expected all 8 saves indexed, got %d", e.Index().Len())
	}
}
