package engine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coffersTech/actionlog/internal/metrics"
	"github.com/coffersTech/actionlog/internal/model"
	"github.com/rs/zerolog"
)

// Source is the read side of the log store used to rebuild the index.
type Source interface {
	List() ([]string, error)
	Read(name string) (model.Content, error)
}

// Filter narrows Index.Search. Zero values match everything.
type Filter struct {
	Level     model.Level
	UserName  string
	CompanyID string
	Event     string // substring match
	Since     time.Time
	Until     time.Time
}

// Index is an in-memory snapshot of every entry in every log file, newest
// first. It is only ever replaced wholesale by Rebuild, never patched, so it
// always matches the disk as of the last rebuild.
type Index struct {
	// rebuildMu serialises whole rebuilds so a rebuild that listed the
	// files earlier can never swap in after a later one.
	rebuildMu sync.Mutex
	mu        sync.RWMutex

	entries []model.LogEntry
	times   []time.Time // parsed timestamps, zero when unparseable
	files   int

	rebuiltAt time.Time
	logger    zerolog.Logger
}

// NewIndex returns an empty index.
func NewIndex(logger zerolog.Logger) *Index {
	return &Index{logger: logger}
}

// Rebuild re-reads every file from src and swaps in the new snapshot.
// Files that fail to read or parse are logged and skipped.
func (ix *Index) Rebuild(src Source) error {
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()

	start := time.Now()
	names, err := src.List()
	if err != nil {
		return err
	}

	var entries []model.LogEntry
	files := 0
	for _, name := range names {
		c, err := src.Read(name)
		if err != nil {
			ix.logger.Warn().Err(err).Str("file", name).Msg("skipping file during index rebuild")
			metrics.FileError("rebuild")
			continue
		}
		files++
		entries = append(entries, c.Entries...)
	}

	times := make([]time.Time, len(entries))
	for i := range entries {
		if t, ok := entries[i].Time(); ok {
			times[i] = t
		}
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return newer(times[order[a]], times[order[b]])
	})

	sortedEntries := make([]model.LogEntry, len(entries))
	sortedTimes := make([]time.Time, len(entries))
	for i, idx := range order {
		sortedEntries[i] = entries[idx]
		sortedTimes[i] = times[idx]
	}

	ix.mu.Lock()
	ix.entries = sortedEntries
	ix.times = sortedTimes
	ix.files = files
	ix.rebuiltAt = time.Now()
	ix.mu.Unlock()

	elapsed := time.Since(start)
	metrics.ObserveRebuild(len(sortedEntries), elapsed)
	ix.logger.Debug().Int("entries", len(sortedEntries)).Int("files", files).Dur("took", elapsed).Msg("index rebuilt")
	return nil
}

// newer orders valid timestamps descending and unparseable ones last.
func newer(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.After(b)
}

// All returns a copy of every indexed entry, newest first.
func (ix *Index) All() []model.LogEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]model.LogEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// RebuiltAt reports when the current snapshot was taken.
func (ix *Index) RebuiltAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.rebuiltAt
}

// Search returns up to limit entries matching filter, newest first.
// limit <= 0 means no limit.
func (ix *Index) Search(filter Filter, limit int) []model.LogEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	result := make([]model.LogEntry, 0)
	for i, e := range ix.entries {
		if limit > 0 && len(result) >= limit {
			break
		}
		if filter.Level != "" && !strings.EqualFold(string(e.Level), string(filter.Level)) {
			continue
		}
		if filter.UserName != "" && e.UserName != filter.UserName {
			continue
		}
		if filter.CompanyID != "" && e.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Event != "" && !strings.Contains(strings.ToLower(e.Event), strings.ToLower(filter.Event)) {
			continue
		}
		ts := ix.times[i]
		if !filter.Since.IsZero() && (ts.IsZero() || ts.Before(filter.Since)) {
			continue
		}
		if !filter.Until.IsZero() && (ts.IsZero() || ts.After(filter.Until)) {
			continue
		}
		result = append(result, e)
	}
	return result
}
