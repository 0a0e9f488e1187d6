package session

import "time"

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickSource supplies the current time and one-second tickers. Production
// code uses SystemTime; tests substitute a manual source.
type TickSource interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// SystemTime is the TickSource backed by the runtime clock.
type SystemTime struct{}

func (SystemTime) Now() time.Time { return time.Now() }

func (SystemTime) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
