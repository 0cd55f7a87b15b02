package reconciler

import "time"

// Backoff computes exponentially increasing retry delays, capped at Max.
// Not concurrency-safe; each worker owns one.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	attempt int
}

// Next returns the delay for the next retry and advances the sequence.
func (b *Backoff) Next() time.Duration {
	d := b.Initial << b.attempt
	if d <= 0 || d > b.Max {
		d = b.Max
	} else {
		b.attempt++
	}
	return d
}

// Reset restarts the sequence after a success.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempts returns how many delays have been handed out since the last
// Reset, capped attempts excluded.
func (b *Backoff) Attempts() int {
	return b.attempt
}
