package services

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when the condition never became true within the
// configured deadline.
var ErrPollTimeout = errors.New("poll timed out")

// PollConfig controls a backoff poll loop. Interval grows by Multiplier every
// tick until it hits Cap.
type PollConfig struct {
	Initial    time.Duration
	Cap        time.Duration
	Multiplier float64
	Timeout    time.Duration
}

// DefaultPollConfig matches the cadence clients use to watch a print job:
// fast first checks while the master render usually lands, then settling to a
// steady three second tick.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Initial:    600 * time.Millisecond,
		Cap:        3000 * time.Millisecond,
		Multiplier: 1.5,
		Timeout:    5 * time.Minute,
	}
}

// PollUntil calls check on the backoff schedule until it reports done, errors,
// the context is cancelled, or the timeout lapses. The first check runs after
// the initial interval, not immediately.
func PollUntil(ctx context.Context, cfg PollConfig, check func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(cfg.Timeout)
	interval := cfg.Initial

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrPollTimeout
		}

		interval = time.Duration(float64(interval) * cfg.Multiplier)
		if interval > cfg.Cap {
			interval = cfg.Cap
		}
	}
}
