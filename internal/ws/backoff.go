package ws

import "time"

// Backoff paces reconnect dials and counts consecutive failures. A Limit of
// zero retries forever.
type Backoff struct {
	Base  time.Duration
	Max   time.Duration
	Limit int

	failures int
}

func NewBackoff(base, max time.Duration, limit int) *Backoff {
	return &Backoff{Base: base, Max: max, Limit: limit}
}

// Fail records a failed dial and returns the delay before the next one.
func (b *Backoff) Fail() time.Duration {
	d := b.Base << b.failures
	if d > b.Max || d <= 0 {
		d = b.Max
	}
	b.failures++
	return d
}

// Exhausted reports whether Limit consecutive dials have failed.
func (b *Backoff) Exhausted() bool {
	return b.Limit > 0 && b.failures >= b.Limit
}

func (b *Backoff) Failures() int { return b.failures }

// Reset is called once a connection has been established.
func (b *Backoff) Reset() {
	b.failures = 0
}
