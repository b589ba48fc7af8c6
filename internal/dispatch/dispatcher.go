// Package dispatch fans inbound events out to a fixed pool of workers. Events
// of one chat always land on the same worker and are handled in order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/manolo/internal/transport"
)

const (
	DefaultWorkers   = 8
	DefaultQueueSize = 64
)

// ErrStopped is returned when events are submitted to a stopped dispatcher.
var ErrStopped = errors.New("dispatcher stopped")

// Dispatcher routes events to per-shard queues.
type Dispatcher struct {
	handle  transport.Handler
	shards  []chan transport.Event
	running atomic.Bool
	done    chan struct{}
}

// New creates a dispatcher with the given number of workers and per-worker
// queue capacity. Non-positive values select the defaults.
func New(handle transport.Handler, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	shards := make([]chan transport.Event, workers)
	for i := range shards {
		shards[i] = make(chan transport.Event, queueSize)
	}
	return &Dispatcher{handle: handle, shards: shards, done: make(chan struct{})}
}

// Run starts the workers and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatcher already running")
	}
	defer close(d.done)

	g, gctx := errgroup.WithContext(ctx)
	for i, jobs := range d.shards {
		g.Go(func() error {
			d.work(gctx, i, jobs)
			return nil
		})
	}
	slog.Info("Dispatcher started", "workers", len(d.shards))
	err := g.Wait()
	slog.Info("Dispatcher stopped")
	return err
}

func (d *Dispatcher) work(ctx context.Context, shard int, jobs <-chan transport.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-jobs:
			d.safeHandle(ctx, shard, ev)
		}
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, shard int, ev transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked",
				"shard", shard,
				"chat_id", ev.ChatID,
				"kind", ev.Kind.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	d.handle(ctx, ev)
}

func (d *Dispatcher) shardFor(chatID int64) chan transport.Event {
	return d.shards[uint64(chatID)%uint64(len(d.shards))]
}

// Submit queues ev, blocking while its shard is full.
func (d *Dispatcher) Submit(ctx context.Context, ev transport.Event) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	case d.shardFor(ev.ChatID) <- ev:
		return nil
	}
}

// Handler adapts Submit to a transport.Handler, logging dropped events.
func (d *Dispatcher) Handler() transport.Handler {
	return func(ctx context.Context, ev transport.Event) {
		if err := d.Submit(ctx, ev); err != nil && ctx.Err() == nil {
			slog.Warn("Event dropped", "chat_id", ev.ChatID, "kind", ev.Kind.String(), "error", err)
		}
	}
}
