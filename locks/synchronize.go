package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/projlock/metrics"
)

var errWaitReused = errors.New("lock wait called more than once")

// Synchronize runs body while holding the named lock from r.
//
// The lock is tried once without blocking. If it is contended, the blocking
// wait is handed to opts.OnWait (or run directly when OnWait is nil) and is
// bounded by the effective timeout. body runs exactly once, only while the
// lock is held, and the lock is released on every exit path including
// panics. Errors from body are returned unchanged. Acquisition failures
// match ErrTimeout or ErrIO, or are ctx.Err().
func Synchronize[T any](ctx context.Context, r *Registry, name string, opts Options, body func() (T, error)) (T, error) {
	var zero T

	if body == nil {
		return zero, fmt.Errorf("synchronize %q: nil body", name)
	}

	timeout := opts.EffectiveTimeout()
	if timeout <= 0 {
		metrics.LockOperationsTotal.WithLabelValues("acquire", "timeout").Inc()
		return zero, fmt.Errorf("acquire lock %q: non-positive timeout %s: %w", name, timeout, ErrTimeout)
	}

	l, err := r.Resolve(name)
	if err != nil {
		return zero, err
	}

	return synchronize(ctx, l, timeout, opts.OnWait, r.logger, body)
}

// Do is Synchronize for bodies without a result.
func (r *Registry) Do(ctx context.Context, name string, opts Options, body func() error) error {
	if body == nil {
		return fmt.Errorf("synchronize %q: nil body", name)
	}

	_, err := Synchronize(ctx, r, name, opts, func() (struct{}, error) {
		return struct{}{}, body()
	})
	return err
}

func synchronize[T any](
	ctx context.Context,
	l Locker,
	timeout time.Duration,
	onWait WaitFunc,
	logger *zap.Logger,
	body func() (T, error),
) (result T, err error) {
	acquired := false
	defer func() {
		// Only the call that acquired may release; the handle can be shared
		if !acquired {
			return
		}
		if releaseErr := l.Release(); releaseErr != nil {
			logger.Warn("Failed to release lock",
				zap.String("lock", l.Name()),
				zap.Error(releaseErr))
		}
	}()

	acquired, err = l.TryAcquire()
	if err != nil {
		return result, err
	}

	if !acquired {
		acquired, err = waitForLock(ctx, l, timeout, onWait)
		if err != nil {
			return result, err
		}
	}

	start := time.Now()
	defer func() {
		metrics.LockHoldDuration.WithLabelValues(l.Name()).Observe(time.Since(start).Seconds())
	}()

	return body()
}

// waitForLock runs the blocking acquisition through onWait. The returned
// bool reports whether the lock ended up held, independently of err: an
// observer may fail after the wait succeeded, and the lock must still be
// released.
func waitForLock(ctx context.Context, l Locker, timeout time.Duration, onWait WaitFunc) (bool, error) {
	metrics.LockContentionsTotal.WithLabelValues(l.Name()).Inc()
	start := time.Now()
	defer func() {
		metrics.LockWaitDuration.WithLabelValues(l.Name()).Observe(time.Since(start).Seconds())
	}()

	var (
		waited  bool
		waitErr error
	)
	wait := func() error {
		if waited {
			return errWaitReused
		}
		waited = true
		waitErr = l.Acquire(ctx, timeout)
		return waitErr
	}

	if onWait == nil {
		err := wait()
		return err == nil, err
	}

	err := onWait(wait)
	if !waited {
		err = wait()
	} else if waitErr != nil {
		err = waitErr
	}

	return waited && waitErr == nil, err
}
