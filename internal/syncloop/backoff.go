package syncloop

import (
	"time"
)

// Backoff decides how long to wait after a failed poll.
type Backoff interface {
	Next() time.Duration
	Reset()
}

type fixed time.Duration

// Fixed waits the same interval after every failure, forever.
func Fixed(d time.Duration) Backoff {
	return fixed(d)
}

func (f fixed) Next() time.Duration { return time.Duration(f) }
func (f fixed) Reset()              {}

type exponential struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// Exponential doubles the wait after each consecutive failure up to max and
// starts over after a successful poll.
func Exponential(initial, max time.Duration) Backoff {
	if max < initial {
		max = initial
	}
	return &exponential{initial: initial, max: max}
}

func (e *exponential) Next() time.Duration {
	if e.current == 0 {
		e.current = e.initial
		return e.current
	}
	e.current = min(e.current*2, e.max)
	return e.current
}

func (e *exponential) Reset() {
	e.current = 0
}
