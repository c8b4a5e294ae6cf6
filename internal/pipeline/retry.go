package pipeline

import "time"

// RetryPolicy is the pure retry decision for one slot: given how many
// attempts have already failed, either wait and try again or give up.
// Delays double from BaseDelay and cap at MaxDelay. It holds no transport
// state, so it tests without network calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the production defaults: 3 attempts, 200ms
// doubling to a 5s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Retry reports whether another attempt is allowed after `failed` failed
// attempts, and the delay to wait before it.
func (p RetryPolicy) Retry(failed int) (time.Duration, bool) {
	if failed >= p.MaxAttempts {
		return 0, false
	}
	delay := p.BaseDelay
	for i := 1; i < failed; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}
