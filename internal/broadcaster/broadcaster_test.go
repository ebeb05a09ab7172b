package broadcaster

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/store"
)

func TestSubscribeReceivesPublishedChange(t *testing.T) {
	b := New(zap.NewNop(), 4)
	ch, cancel := b.Subscribe()
	defer cancel()

	changes := make(chan store.Change, 1)
	errs := make(chan error)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	done := make(chan struct{})
	go func() {
		b.Run(ctx, stop, changes, errs)
		close(done)
	}()

	want := store.Change{ID: 1, NewX: 2, NewY: 3}
	changes <- want

	select {
	case got := <-ch:
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published change")
	}

	stop()
	<-done
}

func TestOverflowDropsOldestNotNewest(t *testing.T) {
	b := New(zap.NewNop(), 2)
	ch, cancel := b.Subscribe()
	defer cancel()

	var overflowed int
	b.OnOverflow = func() { overflowed++ }

	b.publish(store.Change{ID: 1})
	b.publish(store.Change{ID: 2})
	b.publish(store.Change{ID: 3})

	if overflowed == 0 {
		t.Error("expected at least one overflow drop")
	}

	first := <-ch
	if first.ID == 1 {
		t.Error("expected the oldest event (ID 1) to have been dropped")
	}
}

func TestRunCancelsOnListenerClosedError(t *testing.T) {
	b := New(zap.NewNop(), 4)

	changes := make(chan store.Change)
	errs := make(chan error, 1)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var cancelled bool
	cancel := func() { cancelled = true }

	errs <- store.ErrListenerClosed
	err := b.Run(ctx, cancel, changes, errs)

	if !errors.Is(err, store.ErrListenerClosed) {
		t.Errorf("Run returned %v, want ErrListenerClosed", err)
	}
	if !cancelled {
		t.Error("expected Run to invoke cancel on a fatal listener error")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(zap.NewNop(), 2)
	ch, cancel := b.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after cancel")
	}
}
