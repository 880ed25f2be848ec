// Package locks provides named advisory locks backed by files in a lock
// directory. A lock held through this package excludes every other holder
// of the same name, in this process or any other, until it is released.
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebogdum/projlock/internal/pathutil"
)

// DefaultLockTimeout is used when neither an override nor a per-call default is given.
const DefaultLockTimeout = 300 * time.Second

// DefaultPollInterval is the delay between acquisition attempts while a lock is contended.
const DefaultPollInterval = 100 * time.Millisecond

var (
	// ErrTimeout is returned when a lock could not be acquired within the effective timeout.
	ErrTimeout = errors.New("lock timeout exceeded")
	// ErrIO is matched by every *IOError.
	ErrIO = errors.New("lock file I/O failure")
	// ErrInvalidName is returned for names that cannot address a file in the lock directory.
	ErrInvalidName = pathutil.ErrInvalidName
)

// IOError reports a failure to prepare, open or lock the backing file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrIO) true for any IOError.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// Locker defines the acquisition contract of a single named lock
type Locker interface {
	// Name returns the lock name
	Name() string

	// TryAcquire makes one non-blocking attempt.
	// Returns false with a nil error when the lock is held elsewhere.
	TryAcquire() (bool, error)

	// Acquire blocks until the lock is held, the timeout elapses (ErrTimeout)
	// or ctx is done.
	Acquire(ctx context.Context, timeout time.Duration) error

	// Release drops the lock. Releasing an unheld lock is a no-op.
	Release() error
}

// WaitFunc wraps the blocking wait of a contended acquisition. It must call
// wait exactly once and return its error unchanged.
type WaitFunc func(wait func() error) error

// Options configures one synchronized section.
type Options struct {
	// Timeout is an externally supplied override (command line, environment).
	Timeout *time.Duration
	// DefaultTimeout is the caller's own default, used when Timeout is nil.
	DefaultTimeout *time.Duration
	// OnWait, if set, is invoked once when the lock is contended.
	OnWait WaitFunc
}

// Duration returns a pointer to d, for use in Options.
func Duration(d time.Duration) *time.Duration {
	return &d
}

// EffectiveTimeout applies override > call default > DefaultLockTimeout.
func (o Options) EffectiveTimeout() time.Duration {
	switch {
	case o.Timeout != nil:
		return *o.Timeout
	case o.DefaultTimeout != nil:
		return *o.DefaultTimeout
	default:
		return DefaultLockTimeout
	}
}
