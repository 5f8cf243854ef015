package docstore

import (
	"context"
	"testing"
	"time"
)

func newTestListener() *listener {
	return &listener{watchers: make(map[string]map[chan struct{}]struct{})}
}

func TestListenerFansOutByHousehold(t *testing.T) {
	l := newTestListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a1 := l.watch(ctx, "hA")
	a2 := l.watch(ctx, "hA")
	b := l.watch(ctx, "hB")
	for _, ch := range []<-chan struct{}{a1, a2, b} {
		waitSignal(t, ch)
	}

	l.notify("hA")
	waitSignal(t, a1)
	waitSignal(t, a2)
	select {
	case <-b:
		t.Error("hB watcher signalled for hA change")
	default:
	}

	l.broadcast()
	waitSignal(t, b)
}

func TestListenerReleasesWatchOnCancel(t *testing.T) {
	l := newTestListener()
	ctx, cancel := context.WithCancel(context.Background())

	ch := l.watch(ctx, "h1")
	if got := l.count(); got != 1 {
		t.Fatalf("watchers = %d, want 1", got)
	}
	cancel()

	deadline := time.After(time.Second)
	for l.count() != 0 {
		select {
		case <-deadline:
			t.Fatal("watcher not released")
		case <-time.After(5 * time.Millisecond):
		}
	}
	<-ch
	if _, ok := <-ch; ok {
		t.Error("expected channel closed")
	}
	l.notify("h1")
}
