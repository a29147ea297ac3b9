package callback

import "time"

// Policy holds the retry backoff tuning for the callback exchange flow.
// Network-class failures grow the delay geometrically up to the cap; any
// other retryable failure resets it to the base, since the growing delay
// exists to stop hammering an unreachable server, not a reachable one that
// returned an error.
type Policy struct {
	Base   time.Duration
	Growth float64
	Max    time.Duration
}

// DefaultPolicy is the documented default: 2s base, 1.5x growth, 10s cap.
var DefaultPolicy = Policy{
	Base:   2 * time.Second,
	Growth: 1.5,
	Max:    10 * time.Second,
}

// Next returns the wait before the upcoming retry and the delay state to
// carry into the attempt after that. current is the delay accumulated so
// far (starts at Base); networkClass selects growth versus reset.
func (p Policy) Next(current time.Duration, networkClass bool) (wait, next time.Duration) {
	if p.Base <= 0 {
		p = DefaultPolicy
	}
	if !networkClass {
		return p.Base, p.Base
	}
	if current <= 0 {
		current = p.Base
	}
	wait = current
	if wait > p.Max {
		wait = p.Max
	}
	next = time.Duration(float64(wait) * p.Growth)
	if next > p.Max {
		next = p.Max
	}
	return wait, next
}
