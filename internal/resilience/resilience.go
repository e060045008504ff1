package resilience

import (
	"context"
	"time"

	"github.com/idaholeg/mediaportal/internal/domain"
	log "github.com/sirupsen/logrus"
)

// Guard runs fn and reports whether it succeeded. Failures are logged at the
// given level and never propagated; callers keep their fallback value when
// Guard returns false.
func Guard(op string, level log.Level, fn func() error) bool {
	if err := fn(); err != nil {
		log.StandardLogger().WithFields(log.Fields{
			"operation": op,
			"error":     err,
		}).Log(level, "operation failed, using fallback")
		return false
	}
	return true
}

// RetryPolicy retries a unit of work on allow-listed error kinds with
// multiplicative backoff. A policy with MaxAttempts of one (or an empty
// allow-list) propagates the first failure immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     float64
	Retryable   []domain.Kind
}

// Do invokes fn until it succeeds, a non-retryable error occurs, or
// MaxAttempts is exhausted. The last error is surfaced unchanged.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			log.WithFields(log.Fields{
				"operation": op,
				"attempt":   attempt,
				"attempts":  attempts,
				"error":     err,
			}).Error("final retry attempt failed")
			return err
		}

		log.WithFields(log.Fields{
			"operation": op,
			"attempt":   attempt,
			"attempts":  attempts,
			"delay":     delay,
			"error":     err,
		}).Warn("retrying after failure")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * p.Backoff)
	}
	return err
}

func (p RetryPolicy) retryable(err error) bool {
	kind := domain.KindOf(err)
	for _, allowed := range p.Retryable {
		if kind == allowed {
			return true
		}
	}
	return false
}

// WithCleanup runs fn and, on failure, logs the error and runs cleanup.
// Cleanup failures are logged and never propagated. When reraise is false the
// original error is suppressed.
func WithCleanup(op string, reraise bool, cleanup func(), fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	log.WithFields(log.Fields{
		"operation": op,
		"error":     err,
	}).Error("operation failed")

	if cleanup != nil {
		runCleanup(op, cleanup)
	}
	if reraise {
		return err
	}
	return nil
}

func runCleanup(op string, cleanup func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"operation": op,
				"panic":     r,
			}).Error("cleanup failed")
		}
	}()
	cleanup()
}
