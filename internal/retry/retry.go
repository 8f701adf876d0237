// Package retry provides the bounded-retry-with-fallback pattern shared by
// the intensity refresh and the durable-write flush.
package retry

import (
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config bounds a retry sequence.
type Config struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Delay is the pause between consecutive tries.
	Delay time.Duration
}

// Sleeper pauses between attempts. Tests inject a no-op.
type Sleeper func(time.Duration)

// Do runs op until it succeeds or cfg.Attempts is exhausted. It returns nil
// on the first success, or ErrExhausted wrapped around the last failure.
func Do(cfg Config, sleep Sleeper, op func() error) error {
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt < cfg.Attempts {
			sleep(cfg.Delay)
		}
	}
	return errors.Join(ErrExhausted, lastErr)
}

// Value runs fetch until it yields a value or cfg.Attempts is exhausted; on
// exhaustion it returns fallback() instead. The second return reports whether
// the value came from a successful fetch.
func Value(cfg Config, sleep Sleeper, fetch func() (float64, error), fallback func() float64) (float64, bool) {
	var value float64
	err := Do(cfg, sleep, func() error {
		v, err := fetch()
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return fallback(), false
	}
	return value, true
}
