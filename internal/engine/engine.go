package engine

import (
	"context"
	"errors"
	"time"

	"github.com/coffersTech/actionlog/internal/metrics"
	"github.com/coffersTech/actionlog/internal/model"
	"github.com/coffersTech/actionlog/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sweep triggers, used as log fields and metric labels.
const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerWrite     = "write"
	TriggerManual    = "manual"
)

// Options configures an Engine.
type Options struct {
	Retention    time.Duration
	SweepOnWrite bool
	Archiver     Archiver
	// Now overrides the clock used for retention and default timestamps.
	Now func() time.Time
}

// Engine ties the log store, the retention sweeper and the in-memory index
// together. Every mutation is followed by a full index rebuild.
type Engine struct {
	store        *storage.Store
	index        *Index
	sweeper      *Sweeper
	sweepOnWrite bool
	now          func() time.Time
	logger       zerolog.Logger
}

// New creates an Engine over store. Call Bootstrap before serving reads.
func New(store *storage.Store, opts Options, logger zerolog.Logger) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sw := NewSweeper(store, opts.Retention, logger.With().Str("component", "sweeper").Logger())
	sw.now = now
	sw.archiver = opts.Archiver

	return &Engine{
		store:        store,
		index:        NewIndex(logger.With().Str("component", "index").Logger()),
		sweeper:      sw,
		sweepOnWrite: opts.SweepOnWrite,
		now:          now,
		logger:       logger,
	}
}

// Store returns the underlying log store.
func (e *Engine) Store() *storage.Store { return e.store }

// Index returns the in-memory index.
func (e *Engine) Index() *Index { return e.index }

// Bootstrap runs the startup sweep and the first index build.
func (e *Engine) Bootstrap() SweepResult {
	res := e.sweep(TriggerStartup)
	e.rebuild()
	return res
}

// Save validates content and writes it to the named stream.
func (e *Engine) Save(name string, content model.Content, mode storage.MergeMode) (storage.WriteResult, error) {
	if content.Len() == 0 {
		return storage.WriteResult{}, &model.ValidationError{Field: "logData", Message: "must contain at least one entry"}
	}
	if err := model.PrepareAll(content.Entries, e.now()); err != nil {
		return storage.WriteResult{}, err
	}

	res, err := e.store.Append(name, content, mode)
	if err != nil {
		return storage.WriteResult{}, err
	}
	metrics.AddEntriesWritten(content.Len())
	e.logger.Debug().Str("file", res.FileName).Int("entries", content.Len()).Str("mode", string(mode)).Msg("log saved")

	if e.sweepOnWrite {
		e.sweep(TriggerWrite)
	}
	e.rebuild()
	return res, nil
}

// Upload stores imported entries under a new file. An empty name gets a
// generated one; a name that already exists is rejected.
func (e *Engine) Upload(name string, content model.Content) (storage.WriteResult, error) {
	if content.Len() == 0 {
		return storage.WriteResult{}, &model.ValidationError{Field: "logsData", Message: "must contain at least one entry"}
	}
	if name == "" {
		name = "uploaded-" + uuid.NewString()
	}
	res, err := e.Save(name, content, storage.MergeCreate)
	if errors.Is(err, storage.ErrExists) {
		return storage.WriteResult{}, &model.ValidationError{Field: "fileName", Message: "already exists"}
	}
	return res, err
}

// Delete removes one stream and refreshes the index.
func (e *Engine) Delete(name string) error {
	if err := e.store.Delete(name); err != nil {
		return err
	}
	e.logger.Info().Str("file", name).Msg("log file deleted")
	e.rebuild()
	return nil
}

// Cleanup runs an on-demand sweep.
func (e *Engine) Cleanup() SweepResult {
	res := e.sweep(TriggerManual)
	e.rebuild()
	return res
}

// RunCleaner sweeps every interval until ctx is cancelled.
func (e *Engine) RunCleaner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info().Dur("retention", e.sweeper.Retention()).Dur("interval", interval).Msg("cleaner started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep(TriggerScheduled)
			e.rebuild()
		}
	}
}

func (e *Engine) sweep(trigger string) SweepResult {
	res := e.sweeper.Sweep()
	metrics.ObserveSweep(trigger, res.DeletedCount)
	if res.DeletedCount > 0 || trigger != TriggerWrite {
		e.logger.Info().Str("trigger", trigger).Int("deleted", res.DeletedCount).Strs("files", res.DeletedFiles).Msg("retention sweep finished")
	}
	return res
}

func (e *Engine) rebuild() {
	if err := e.index.Rebuild(e.store); err != nil {
		e.logger.Error().Err(err).Msg("index rebuild failed")
	}
}
