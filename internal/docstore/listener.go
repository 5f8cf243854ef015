package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
)

const (
	listenRetryBase = time.Second
	listenRetryMax  = 30 * time.Second
)

// listener owns one connection outside the pool that LISTENs on
// householdChannel and fans notifications out to per-household watchers.
type listener struct {
	config *pgx.ConnConfig
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func startListener(config *pgx.ConnConfig, logger *slog.Logger) *listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &listener{
		config:   config,
		logger:   logger,
		watchers: make(map[string]map[chan struct{}]struct{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

func (l *listener) stop() {
	l.cancel()
	<-l.done
}

func newListenBackoff() retry.Backoff {
	return retry.WithCappedDuration(listenRetryMax, retry.NewExponential(listenRetryBase))
}

func (l *listener) run(ctx context.Context) {
	defer close(l.done)

	backoff := newListenBackoff()
	for {
		connected, err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("household listener", "error", err)
		if connected {
			backoff = newListenBackoff()
		}

		wait, _ := backoff.Next()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// listen holds the connection until it fails or ctx ends. It reports whether
// LISTEN was established.
func (l *listener) listen(ctx context.Context) (bool, error) {
	conn, err := pgx.ConnectConfig(ctx, l.config)
	if err != nil {
		return false, fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+householdChannel); err != nil {
		return false, fmt.Errorf("listen: %w", err)
	}
	// Changes made while disconnected were not delivered.
	l.broadcast()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("wait for notification: %w", err)
		}
		l.notify(n.Payload)
	}
}

func (l *listener) watch(ctx context.Context, id string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}

	l.mu.Lock()
	set, ok := l.watchers[id]
	if !ok {
		set = make(map[chan struct{}]struct{})
		l.watchers[id] = set
	}
	set[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.watchers[id], ch)
		if len(l.watchers[id]) == 0 {
			delete(l.watchers, id)
		}
		close(ch)
	}()
	return ch
}

func (l *listener) notify(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.watchers[id] {
		signal(ch)
	}
}

func (l *listener) broadcast() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, set := range l.watchers {
		for ch := range set {
			signal(ch)
		}
	}
}

func (l *listener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, set := range l.watchers {
		n += len(set)
	}
	return n
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
