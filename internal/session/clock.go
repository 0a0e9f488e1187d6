package session

import "context"

// Clock is the session countdown. It owns no goroutine: the owner calls Tick
// once per real second and the clock decides whether anything happens.
type Clock struct {
	remaining int
	running   bool

	onTick   func(ctx context.Context, remaining int)
	onExpire func(ctx context.Context)
}

// NewClock creates a stopped clock. Either callback may be nil.
func NewClock(onTick func(ctx context.Context, remaining int), onExpire func(ctx context.Context)) *Clock {
	return &Clock{onTick: onTick, onExpire: onExpire}
}

// Start arms the countdown. A non-positive initial value expires at once.
func (c *Clock) Start(ctx context.Context, initialSeconds int) {
	c.remaining = initialSeconds
	c.running = true
	if c.remaining <= 0 {
		c.remaining = 0
		c.expire(ctx)
	}
}

// Stop freezes the countdown. Safe to call from within the expiry callback.
func (c *Clock) Stop() {
	c.running = false
}

// Tick advances the countdown by one second while running.
func (c *Clock) Tick(ctx context.Context) {
	if !c.running {
		return
	}
	c.remaining--
	if c.remaining < 0 {
		c.remaining = 0
	}
	if c.onTick != nil {
		c.onTick(ctx, c.remaining)
	}
	if c.remaining == 0 && c.running {
		c.expire(ctx)
	}
}

// Remaining returns the seconds left on the countdown.
func (c *Clock) Remaining() int { return c.remaining }

// Running reports whether the countdown is live.
func (c *Clock) Running() bool { return c.running }

func (c *Clock) expire(ctx context.Context) {
	c.running = false
	if c.onExpire != nil {
		c.onExpire(ctx)
	}
}
