package engine

import (
	"errors"
	"time"

	"github.com/coffersTech/actionlog/internal/metrics"
	"github.com/coffersTech/actionlog/internal/storage"
	"github.com/rs/zerolog"
)

// SweepStore is the part of the log store the sweeper needs. DeleteIfExpired
// must re-check expiry under the same lock that guards writes, so a save that
// lands between listing and deletion is never removed.
type SweepStore interface {
	List() ([]string, error)
	DeleteIfExpired(name string, cutoff time.Time, archive func(fileName string, raw []byte) error) (time.Time, bool, error)
}

// Archiver keeps a copy of a file before the sweeper deletes it.
type Archiver interface {
	Archive(fileName string, raw []byte, at time.Time) (string, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	DeletedCount int      `json:"deletedCount"`
	DeletedFiles []string `json:"deletedFiles"`
}

// Sweeper deletes log files whose oldest entry is older than the retention
// window. Deletion is whole-file.
type Sweeper struct {
	store     SweepStore
	retention time.Duration
	archiver  Archiver
	now       func() time.Time
	logger    zerolog.Logger
}

// NewSweeper creates a sweeper. A retention of zero or less disables it.
func NewSweeper(store SweepStore, retention time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Retention returns the configured window.
func (s *Sweeper) Retention() time.Duration { return s.retention }

// Sweep evaluates every file once. A failure on one file is logged and does
// not stop the others.
func (s *Sweeper) Sweep() SweepResult {
	result := SweepResult{DeletedFiles: []string{}}
	if s.retention <= 0 {
		return result
	}

	names, err := s.store.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep: failed to list log files")
		return result
	}

	now := s.now()
	cutoff := now.Add(-s.retention)

	var archive func(string, []byte) error
	if s.archiver != nil {
		archive = func(fileName string, raw []byte) error {
			_, err := s.archiver.Archive(fileName, raw, now)
			return err
		}
	}

	for _, name := range names {
		oldest, deleted, err := s.store.DeleteIfExpired(name, cutoff, archive)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn().Err(err).Str("file", name).Msg("sweep: skipping file, kept on disk")
				metrics.FileError("sweep")
			}
			continue
		}
		if !deleted {
			continue
		}

		s.logger.Info().Str("file", name).Time("oldest", oldest).Msg("expired file deleted")
		result.DeletedFiles = append(result.DeletedFiles, name)
	}

	result.DeletedCount = len(result.DeletedFiles)
	return result
}
