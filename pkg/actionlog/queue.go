package actionlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	DefaultBatchSize    = 10
	DefaultBatchTimeout = 5 * time.Second
	DefaultStream       = "user-actions"

	defaultDeliveryTimeout = 30 * time.Second
)

// Sender delivers one batch for one stream.
type Sender interface {
	SendBatch(ctx context.Context, stream string, entries []Entry) error
}

// QueueOptions configures a Queue. Zero values take the defaults.
type QueueOptions struct {
	BatchSize     int
	BatchTimeout  time.Duration
	DefaultStream string
	// OnError receives delivery errors from timer-triggered flushes, which
	// have no caller to return to.
	OnError func(error)
	Now     func() time.Time
}

func (o *QueueOptions) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = DefaultBatchTimeout
	}
	if o.DefaultStream == "" {
		o.DefaultStream = DefaultStream
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Queue groups entries per stream and hands them to a Sender when a stream
// reaches BatchSize, when the batch timer fires, on Flush or on Close.
// Delivery is at most once: a failed batch is dropped, not re-queued.
type Queue struct {
	sender Sender
	opts   QueueOptions

	mu      sync.Mutex
	pending map[string][]Entry
	count   int
	timer   *time.Timer
	closed  bool
}

func NewQueue(sender Sender, opts QueueOptions) *Queue {
	opts.setDefaults()
	return &Queue{
		sender:  sender,
		opts:    opts,
		pending: make(map[string][]Entry),
	}
}

// Enqueue adds e to stream ("" means the default stream). When the stream's
// batch is full it is delivered before Enqueue returns and the delivery error
// is returned.
func (q *Queue) Enqueue(ctx context.Context, e Entry, stream string) error {
	if stream == "" {
		stream = q.opts.DefaultStream
	}
	if e.Timestamp == "" {
		e.Timestamp = FormatTime(q.opts.Now())
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending[stream] = append(q.pending[stream], e)
	q.count++

	if len(q.pending[stream]) < q.opts.BatchSize {
		if q.timer == nil {
			q.timer = time.AfterFunc(q.opts.BatchTimeout, q.onTimer)
		}
		q.mu.Unlock()
		return nil
	}

	batch := q.pending[stream]
	delete(q.pending, stream)
	q.count -= len(batch)
	if q.count == 0 {
		q.stopTimer()
	}
	q.mu.Unlock()

	return q.sender.SendBatch(ctx, stream, batch)
}

// Flush delivers everything pending. It makes no call when nothing is
// pending. Errors from individual streams are joined.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	q.stopTimer()
	if q.count == 0 {
		q.mu.Unlock()
		return nil
	}
	batches := q.pending
	q.pending = make(map[string][]Entry)
	q.count = 0
	q.mu.Unlock()

	streams := make([]string, 0, len(batches))
	for s := range batches {
		streams = append(streams, s)
	}
	sort.Strings(streams)

	var errs []error
	for _, s := range streams {
		if err := q.sender.SendBatch(ctx, s, batches[s]); err != nil {
			errs = append(errs, fmt.Errorf("stream %s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the timer, refuses further entries and flushes what is left.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	return q.Flush(ctx)
}

// Len returns the number of pending entries across all streams.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) onTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDeliveryTimeout)
	defer cancel()
	if err := q.Flush(ctx); err != nil && q.opts.OnError != nil {
		q.opts.OnError(err)
	}
}

// stopTimer must be called with q.mu held.
func (q *Queue) stopTimer() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}
