package changefeed

import "context"

// Watch emits load's result once immediately and again after every change
// published on topic. Changes that arrive while the consumer is busy collapse
// into a single reload. Load failures are logged and skipped. The channel is
// closed when ctx is cancelled.
func Watch[T any](ctx context.Context, h *Hub, topic string, load func(context.Context) (T, error)) <-chan T {
	notify, unsubscribe := h.Subscribe(topic)
	out := make(chan T)

	go func() {
		defer close(out)
		defer unsubscribe()

		emit := func() bool {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				h.logger.Error("load snapshot", "topic", topic, "error", err)
				return true
			}
			select {
			case out <- v:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()

	return out
}
