package locks

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"

	"github.com/ebogdum/projlock/internal/pathutil"
	"github.com/ebogdum/projlock/metrics"
)

// FileLock is one named lock backed by the file dir/name.
//
// Holding a FileLock takes two locks: an in-process gate, so goroutines
// sharing the handle exclude each other, and an exclusive flock on the
// backing file, so other processes and other handles on the same path are
// excluded. The lock file is never removed.
type FileLock struct {
	dir          string
	name         string
	path         string
	pollInterval time.Duration
	fl           osLock

	// gate has capacity one; a send takes the in-process slot
	gate chan struct{}

	mu   sync.Mutex
	held bool
}

var _ Locker = (*FileLock)(nil)

// osLock is the part of *flock.Flock used by FileLock.
type osLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// NewFileLock creates a handle for dir/name. No file system access happens until
// the first acquisition attempt.
func NewFileLock(dir, name string, pollInterval time.Duration) (*FileLock, error) {
	path, err := pathutil.SafeJoin(dir, name)
	if err != nil {
		return nil, err
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &FileLock{
		dir:          dir,
		name:         name,
		path:         path,
		pollInterval: pollInterval,
		fl:           flock.New(path),
		gate:         make(chan struct{}, 1),
	}, nil
}

// Name returns the lock name.
func (l *FileLock) Name() string { return l.name }

// Path returns the backing file path.
func (l *FileLock) Path() string { return l.path }

// Held reports whether this handle currently holds the lock.
func (l *FileLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// TryAcquire makes one non-blocking acquisition attempt.
func (l *FileLock) TryAcquire() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}

	select {
	case l.gate <- struct{}{}:
	default:
		return false, nil
	}

	locked, err := l.fl.TryLock()
	if err != nil {
		<-l.gate
		metrics.LockOperationsTotal.WithLabelValues("acquire", "failure").Inc()
		return false, &IOError{Op: "lock", Path: l.path, Err: err}
	}
	if !locked {
		<-l.gate
		return false, nil
	}

	l.markHeld()
	return true, nil
}

// Acquire blocks until the lock is held or timeout elapses. A non-positive
// timeout fails with ErrTimeout without waiting.
func (l *FileLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		metrics.LockOperationsTotal.WithLabelValues("acquire", "timeout").Inc()
		return fmt.Errorf("acquire lock %q: %w", l.name, ErrTimeout)
	}

	if err := l.ensureDir(); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case l.gate <- struct{}{}:
	case <-waitCtx.Done():
		return l.waitErr(ctx, timeout)
	}

	locked, err := l.pollFile(ctx, waitCtx)
	if err != nil {
		<-l.gate
		metrics.LockOperationsTotal.WithLabelValues("acquire", "failure").Inc()
		return &IOError{Op: "lock", Path: l.path, Err: err}
	}
	if !locked {
		<-l.gate
		return l.waitErr(ctx, timeout)
	}

	l.markHeld()
	return nil
}

// pollFile retries the flock at the poll interval until waitCtx is done. A
// final attempt is made at the deadline unless ctx itself was cancelled.
func (l *FileLock) pollFile(ctx, waitCtx context.Context) (bool, error) {
	limiter := rate.NewLimiter(rate.Every(l.pollInterval), 1)
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			// Wait refuses early when the next slot is past the deadline
			<-waitCtx.Done()
			break
		}

		locked, err := l.fl.TryLock()
		if err != nil || locked {
			return locked, err
		}
	}

	if ctx.Err() != nil {
		return false, nil
	}
	return l.fl.TryLock()
}

// Release drops the lock. It is a no-op when the handle is not held.
// If the OS unlock fails the handle stays held, so a later Release can retry.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return nil
	}

	if err := l.fl.Unlock(); err != nil {
		metrics.LockOperationsTotal.WithLabelValues("release", "failure").Inc()
		return &IOError{Op: "unlock", Path: l.path, Err: err}
	}

	l.held = false
	<-l.gate
	metrics.ActiveLocks.Dec()

	metrics.LockOperationsTotal.WithLabelValues("release", "success").Inc()
	return nil
}

func (l *FileLock) markHeld() {
	l.mu.Lock()
	l.held = true
	l.mu.Unlock()

	metrics.LockOperationsTotal.WithLabelValues("acquire", "success").Inc()
	metrics.ActiveLocks.Inc()
}

func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		metrics.LockOperationsTotal.WithLabelValues("acquire", "failure").Inc()
		return &IOError{Op: "mkdir", Path: l.dir, Err: err}
	}
	return nil
}

func (l *FileLock) waitErr(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		metrics.LockOperationsTotal.WithLabelValues("acquire", "cancelled").Inc()
		return err
	}

	metrics.LockOperationsTotal.WithLabelValues("acquire", "timeout").Inc()
	return fmt.Errorf("acquire lock %q within %s: %w", l.name, timeout, ErrTimeout)
}
