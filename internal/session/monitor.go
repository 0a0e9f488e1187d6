package session

import "context"

// Monitor counts visibility losses while armed. It reports counts only; the
// threshold policy lives with the Orchestrator.
type Monitor struct {
	armed  bool
	hidden bool
	count  int

	onViolation func(ctx context.Context, count int)
}

// NewMonitor creates a disarmed monitor.
func NewMonitor(onViolation func(ctx context.Context, count int)) *Monitor {
	return &Monitor{onViolation: onViolation}
}

// Arm starts counting. A hide seen while disarmed does not carry over.
func (m *Monitor) Arm() {
	m.armed = true
	m.hidden = false
}

func (m *Monitor) Disarm() { m.armed = false }

// Armed reports whether hide signals are being counted.
func (m *Monitor) Armed() bool { return m.armed }

// Hidden records a "became hidden" signal. Repeats without an intervening
// Visible are the same hide event and are not counted again.
func (m *Monitor) Hidden(ctx context.Context) bool {
	if m.hidden {
		return false
	}
	m.hidden = true
	if !m.armed {
		return false
	}
	m.count++
	if m.onViolation != nil {
		m.onViolation(ctx, m.count)
	}
	return true
}

// Visible records the page returning to the foreground.
func (m *Monitor) Visible() {
	m.hidden = false
}

// Count returns the total number of violations recorded.
func (m *Monitor) Count() int { return m.count }

// restore seeds the count from a checkpoint. Counts never decrease.
func (m *Monitor) restore(count int) {
	if count > m.count {
		m.count = count
	}
}
