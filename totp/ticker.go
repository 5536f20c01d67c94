package totp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Ticker recomputes the current code on a fixed interval and hands it to a
// callback. Once Stop returns no further callbacks run.
//
// The callback runs on the ticker's goroutine and must not call Stop, which
// waits for that goroutine to exit. To end the ticker from inside the
// callback, cancel the context given to Start.
type Ticker struct {
	secret   string
	interval time.Duration
	fn       func(Code)
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewTicker returns a ticker for secret. An interval <= 0 defaults to one
// second.
func NewTicker(secret string, interval time.Duration, fn func(Code)) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{
		secret:   secret,
		interval: interval,
		fn:       fn,
		now:      time.Now,
	}
}

// Start emits the current code immediately and then once per interval until
// ctx is cancelled or Stop is called. It validates the secret up front.
func (t *Ticker) Start(ctx context.Context) error {
	if _, err := DecodeSecret(t.secret); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil || t.stopped {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
	return nil
}

func (t *Ticker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	for {
		code, err := CodeAt(t.secret, t.now())
		if err != nil {
			slog.Warn("totp ticker stopped", slog.String("error", err.Error()))
			return
		}
		// Cancellation wins over a pending emit.
		select {
		case <-ctx.Done():
			return
		default:
		}
		t.fn(code)

		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// Stop cancels the ticker and waits for its goroutine to exit. It is safe to
// call more than once and before Start, but not from the callback.
func (t *Ticker) Stop() {
	t.mu.Lock()
	t.stopped = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
