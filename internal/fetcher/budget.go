package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RequestBudget tracks GitHub's rate-limit headers and blocks callers once the
// remaining quota is spent, until the advertised reset (or Retry-After) passes.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	probed    bool
	now       func() time.Time
	changed   chan struct{}
	logger    *zap.Logger
}

func NewRequestBudget(logger *zap.Logger) *RequestBudget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestBudget{
		remaining: 5000,
		reset:     time.Now().Add(time.Hour),
		now:       time.Now,
		changed:   make(chan struct{}),
		logger:    logger,
	}
}

func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire takes one request from the budget, waiting if necessary.
func (b *RequestBudget) Acquire(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Acquire: nil context")
	}
	if b == nil {
		return fmt.Errorf("Acquire: nil RequestBudget")
	}

	for {
		b.mu.Lock()
		now := b.now()

		var until time.Time
		switch {
		case now.Before(b.cooldown):
			until = b.cooldown
		case b.remaining > 0:
			b.remaining--
			b.mu.Unlock()
			return nil
		case !now.Before(b.reset):
			// Reset has passed but no fresh headers were seen yet: let one
			// request through to learn the new quota.
			if !b.probed {
				b.probed = true
				b.mu.Unlock()
				return nil
			}
		default:
			until = b.reset
		}
		ch := b.changed
		b.mu.Unlock()

		if err := b.wait(ctx, ch, until, now); err != nil {
			return err
		}
	}
}

func (b *RequestBudget) wait(ctx context.Context, changed <-chan struct{}, until, now time.Time) error {
	if until.IsZero() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			return nil
		}
	}

	d := until.Sub(now)
	if d < 0 {
		d = 0
	}
	b.logger.Warn("github rate limit reached; waiting", zap.Duration("wait", d), zap.Time("until", until))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
		return nil
	case <-timer.C:
		return nil
	}
}

// UpdateFromResponse reads Retry-After and X-RateLimit-* headers.
func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if b == nil || resp == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false

	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		until := b.now().Add(time.Duration(seconds) * time.Second)
		if until.After(b.cooldown) {
			b.cooldown = until
			changed = true
		}
	}

	if val, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil && val >= 0 {
		if b.remaining != val {
			b.remaining = val
			changed = true
		}
	}

	if val, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && val > 0 {
		reset := time.Unix(val, 0)
		if !b.reset.Equal(reset) {
			b.reset = reset
			changed = true
		}
	}

	if changed {
		b.probed = false
		close(b.changed)
		b.changed = make(chan struct{})
	}
}
