package resilience

import "time"

// RetryPolicy retries transient failures, e.g. an audio device briefly held
// by another process. Backoff grows linearly with the attempt number.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	p := RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 2
	}
	if p.Backoff <= 0 {
		p.Backoff = 200 * time.Millisecond
	}
	return p
}

// Do runs fn until it succeeds or attempts are exhausted, returning the
// last error.
func (r RetryPolicy) Do(fn func() error) error {
	var err error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(r.Backoff * time.Duration(attempt))
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
