package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"github.com/meridianhq/meridian-go/internal/kvstore"
)

// queuePrefix namespaces queue records in the durable store. Record keys
// are queuePrefix + ULID; the lexicographic key order is the enqueue order,
// which is how Load recovers FIFO order after a restart.
const queuePrefix = "queue/"

// defaultMaxAttempts is the replay ceiling per queued item.
const defaultMaxAttempts = 5

// QueuedRequest is a descriptor parked for replay, with its identity,
// enqueue time, and retry counter.
type QueuedRequest struct {
	ID         string     `json:"id"`
	Descriptor Descriptor `json:"descriptor"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	Attempts   int        `json:"attempts"`
}

// Outcome is the terminal result of a queued request: the replay response
// on success, or the error that removed it from the queue.
type Outcome struct {
	Response *Response
	Err      error
}

// replayFunc dispatches a queued descriptor. The client wires this to its
// pipeline with queueing disabled, so a replay that fails on connectivity
// reports the failure instead of re-enqueueing a duplicate.
type replayFunc func(ctx context.Context, d Descriptor) (*Response, error)

// Queue is the durable FIFO of requests that failed purely on
// connectivity. Every mutation is flushed to the store synchronously with
// the in-memory change, so a crash never loses or duplicates more than the
// single in-flight item.
type Queue struct {
	store       kvstore.Store
	clock       clockwork.Clock
	logger      *slog.Logger
	maxAttempts int
	replay      replayFunc

	mu       sync.Mutex
	items    []*QueuedRequest
	waiters  map[string]chan Outcome
	draining bool
}

// NewQueue creates a queue over store. maxAttempts <= 0 selects the
// default ceiling. Call Load to restore items persisted by a previous
// process before the first Drain.
func NewQueue(store kvstore.Store, maxAttempts int, clock clockwork.Clock, logger *slog.Logger) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		store:       store,
		clock:       clock,
		logger:      logger,
		maxAttempts: maxAttempts,
		waiters:     make(map[string]chan Outcome),
	}
}

// setReplay installs the dispatch function. Done by the client during
// construction; the queue never dispatches on its own before this.
func (q *Queue) setReplay(fn replayFunc) {
	q.replay = fn
}

// Load restores persisted queue records in enqueue order. Records that no
// longer decode are deleted rather than wedging the queue forever.
func (q *Queue) Load(ctx context.Context) error {
	keys, err := q.store.Keys(ctx, queuePrefix)
	if err != nil {
		return fmt.Errorf("api: listing queue records: %w", err)
	}

	var items []*QueuedRequest

	for _, key := range keys {
		data, err := q.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("api: reading queue record %s: %w", key, err)
		}

		var rec QueuedRequest
		if err := json.Unmarshal(data, &rec); err != nil {
			q.logger.Warn("dropping corrupt queue record",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)

			if delErr := q.store.Delete(ctx, key); delErr != nil {
				return fmt.Errorf("api: deleting corrupt queue record %s: %w", key, delErr)
			}

			continue
		}

		items = append(items, &rec)
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()

	if len(items) > 0 {
		q.logger.Info("restored offline queue", slog.Int("items", len(items)))
	}

	return nil
}

// Enqueue persists d as a new queued request and appends it to the replay
// order. The returned channel delivers the item's terminal Outcome if the
// caller is still listening when it resolves.
func (q *Queue) Enqueue(ctx context.Context, d Descriptor) (*QueuedRequest, <-chan Outcome, error) {
	rec := &QueuedRequest{
		ID:         ulid.Make().String(),
		Descriptor: d,
		EnqueuedAt: q.clock.Now(),
	}

	if err := q.persist(ctx, rec); err != nil {
		return nil, nil, err
	}

	outcome := make(chan Outcome, 1)

	q.mu.Lock()
	q.items = append(q.items, rec)
	q.waiters[rec.ID] = outcome
	depth := len(q.items)
	q.mu.Unlock()

	q.logger.Info("request queued for retry",
		slog.String("id", rec.ID),
		slog.String("method", d.Method),
		slog.String("path", d.Path),
		slog.Int("queue_depth", depth),
	)

	return rec, outcome, nil
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Items returns a snapshot of the queue in replay order.
func (q *Queue) Items() []QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]QueuedRequest, len(q.items))
	for i, rec := range q.items {
		out[i] = *rec
	}

	return out
}

// Clear removes every queued item. Waiters are resolved with ErrCancelled.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, rec := range items {
		if err := q.store.Delete(ctx, queuePrefix+rec.ID); err != nil {
			return fmt.Errorf("api: clearing queue record %s: %w", rec.ID, err)
		}

		q.deliver(rec.ID, Outcome{Err: fmt.Errorf("api: queue cleared: %w", ErrCancelled)})
	}

	return nil
}

// Drain replays queued items strictly in enqueue order, one at a time.
// Invoked on the offline-to-online transition and available directly for
// operator tooling.
//
// Per item: success removes it and delivers the response. A connectivity
// failure increments its retry counter — below the ceiling the item stays
// at the head and the drain stops (a later item is never attempted before
// an earlier one that is still retryable); at the ceiling the item is
// dropped with a terminal failure. Any other failure is deterministic on
// replay, so the item is dropped and its error delivered immediately.
//
// Concurrent calls collapse: a Drain while one is running returns nil.
func (q *Queue) Drain(ctx context.Context) error {
	if q.replay == nil {
		return fmt.Errorf("api: queue has no replay function")
	}

	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}

	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return nil
		}

		head := q.items[0]
		q.mu.Unlock()

		resp, err := q.replay(ctx, head.Descriptor)
		if err == nil {
			if removeErr := q.remove(ctx, head); removeErr != nil {
				return removeErr
			}

			q.deliver(head.ID, Outcome{Response: resp})

			q.logger.Info("queued request replayed",
				slog.String("id", head.ID),
				slog.String("path", head.Descriptor.Path),
			)

			continue
		}

		if !isConnectivity(err) {
			// Deterministic failure: replaying again cannot change the
			// answer, so surface it now and move on.
			if removeErr := q.remove(ctx, head); removeErr != nil {
				return removeErr
			}

			q.deliver(head.ID, Outcome{Err: err})

			q.logger.Warn("queued request failed terminally",
				slog.String("id", head.ID),
				slog.String("path", head.Descriptor.Path),
				slog.String("error", err.Error()),
			)

			continue
		}

		head.Attempts++

		if head.Attempts >= q.maxAttempts {
			if removeErr := q.remove(ctx, head); removeErr != nil {
				return removeErr
			}

			q.deliver(head.ID, Outcome{
				Err: fmt.Errorf("api: dropped after %d attempts: %w", head.Attempts, err),
			})

			q.logger.Warn("queued request exhausted retries",
				slog.String("id", head.ID),
				slog.String("path", head.Descriptor.Path),
				slog.Int("attempts", head.Attempts),
			)

			continue
		}

		// Still offline. Persist the incremented counter and wait for the
		// next transition; the head keeps its place in line.
		if persistErr := q.persist(ctx, head); persistErr != nil {
			return persistErr
		}

		q.logger.Info("drain paused, network still unavailable",
			slog.String("id", head.ID),
			slog.Int("attempts", head.Attempts),
		)

		return nil
	}
}

// persist flushes one record to the durable store.
func (q *Queue) persist(ctx context.Context, rec *QueuedRequest) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("api: encoding queue record %s: %w", rec.ID, err)
	}

	if err := q.store.Set(ctx, queuePrefix+rec.ID, data); err != nil {
		return fmt.Errorf("api: persisting queue record %s: %w", rec.ID, err)
	}

	return nil
}

// remove deletes rec from the store and the in-memory order.
func (q *Queue) remove(ctx context.Context, rec *QueuedRequest) error {
	if err := q.store.Delete(ctx, queuePrefix+rec.ID); err != nil {
		return fmt.Errorf("api: deleting queue record %s: %w", rec.ID, err)
	}

	q.mu.Lock()
	for i, it := range q.items {
		if it.ID == rec.ID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	return nil
}

// deliver resolves the waiter for id, or logs when nobody is listening.
func (q *Queue) deliver(id string, out Outcome) {
	q.mu.Lock()
	ch, ok := q.waiters[id]
	if ok {
		delete(q.waiters, id)
	}
	q.mu.Unlock()

	if !ok {
		// Enqueued by a previous process; there is no caller to notify.
		if out.Err != nil {
			q.logger.Warn("no listener for queued request outcome",
				slog.String("id", id),
				slog.String("error", out.Err.Error()),
			)
		}

		return
	}

	ch <- out
}
