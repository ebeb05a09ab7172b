// Package broadcaster fans a single stream of store.Change events out to
// many session subscribers, dropping the oldest queued event for any
// consumer that falls behind rather than blocking the publisher (§4.4) —
// the Go analog of the original's tokio::sync::broadcast channel, which has
// no off-the-shelf equivalent in this module's dependency set.
package broadcaster

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/store"
)

// Broadcaster is a single-producer, multi-consumer fan-out of store.Change
// events. The zero value is not usable; construct with New.
type Broadcaster struct {
	log *zap.Logger

	mu       sync.Mutex
	subs     map[uint64]chan store.Change
	nextID   uint64
	capacity int

	// OnOverflow, if set, is invoked whenever a subscriber's queue was full
	// and the oldest pending event had to be dropped to admit a new one.
	OnOverflow func()
}

// New constructs a Broadcaster whose per-subscriber queues hold at most
// capacity events before the oldest is dropped to make room.
func New(log *zap.Logger, capacity int) *Broadcaster {
	if capacity < 1 {
		capacity = 1
	}
	return &Broadcaster{
		log:      log,
		subs:     make(map[uint64]chan store.Change),
		capacity: capacity,
	}
}

// Subscribe registers a new consumer and returns its event channel along
// with an Unsubscribe func that must be called exactly once when the
// consumer is done (typically via defer in the session loop).
func (b *Broadcaster) Subscribe() (<-chan store.Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan store.Change, b.capacity)
	b.subs[id] = ch

	return ch, func() { b.unsubscribe(id) }
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// publish delivers c to every current subscriber, dropping the oldest
// queued event for any subscriber whose queue is already full.
func (b *Broadcaster) publish(c store.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
			select {
			case <-ch:
				if b.OnOverflow != nil {
					b.OnOverflow()
				}
			default:
			}
			select {
			case ch <- c:
			default:
				// Consumer drained nothing usable in time; skip rather than block.
			}
		}
	}
}

// Run consumes changes until ctx is cancelled or changes closes, publishing
// each to all current subscribers. It mirrors the original's
// broadcast_changes task (§4.4): a queue-depth warning in place of a hard
// error for a slow consumer, a clean return on shutdown, a logged skip for a
// malformed change payload, and — for a listener failure wrapping
// store.ErrListenerClosed — calling cancel to tear down the whole process
// before returning that error.
func (b *Broadcaster) Run(ctx context.Context, cancel context.CancelFunc, changes <-chan store.Change, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				// The feed queues its final error before closing changes; a
				// fatal one still cancels rather than reading as a clean exit.
				select {
				case err := <-errs:
					if errors.Is(err, store.ErrListenerClosed) {
						b.log.Error("change listener failed, cancelling shutdown", zap.Error(err))
						cancel()
						return err
					}
				default:
				}
				return nil
			}
			if n := b.subscriberCount(); n > 0 && b.queueDepth() >= b.capacity {
				b.log.Warn("broadcast queue near capacity, may drop events for slow subscribers")
			}
			b.publish(c)
		case err, ok := <-errs:
			if !ok {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, store.ErrListenerClosed) {
				b.log.Error("change listener failed, cancelling shutdown", zap.Error(err))
				cancel()
				return err
			}
			b.log.Warn("change listener payload error, continuing", zap.Error(err))
		}
	}
}

func (b *Broadcaster) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// queueDepth reports the deepest backlog among current subscribers, used
// only to decide whether to log the overflow warning.
func (b *Broadcaster) queueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	max := 0
	for _, ch := range b.subs {
		if n := len(ch); n > max {
			max = n
		}
	}
	return max
}
