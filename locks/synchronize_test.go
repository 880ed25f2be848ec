package locks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ebogdum/projlock/metrics"
)

// countingLocker counts successful acquisitions and releases of the wrapped lock.
type countingLocker struct {
	Locker
	acquires atomic.Int32
	releases atomic.Int32
}

func (c *countingLocker) TryAcquire() (bool, error) {
	ok, err := c.Locker.TryAcquire()
	if ok {
		c.acquires.Add(1)
	}
	return ok, err
}

func (c *countingLocker) Acquire(ctx context.Context, timeout time.Duration) error {
	err := c.Locker.Acquire(ctx, timeout)
	if err == nil {
		c.acquires.Add(1)
	}
	return err
}

func (c *countingLocker) Release() error {
	c.releases.Add(1)
	return c.Locker.Release()
}

// failingReleaseLocker frees the wrapped lock but reports the release as failed.
type failingReleaseLocker struct {
	*countingLocker
}

var errReleaseFailed = errors.New("unlock failed")

func (f *failingReleaseLocker) Release() error {
	_ = f.countingLocker.Release()
	return errReleaseFailed
}

// holdLock takes name in dir through a separate handle and releases it after d.
func holdLock(t *testing.T, dir, name string, d time.Duration) *FileLock {
	t.Helper()
	holder := newTestLock(t, dir, name)
	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	if d > 0 {
		time.AfterFunc(d, func() { _ = holder.Release() })
	}
	return holder
}

func countingWait(calls *atomic.Int32) WaitFunc {
	return func(wait func() error) error {
		calls.Add(1)
		return wait()
	}
}

func TestOptions_EffectiveTimeout(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		expected time.Duration
	}{
		{
			name:     "fallback",
			expected: 300 * time.Second,
		},
		{
			name:     "call default",
			opts:     Options{DefaultTimeout: Duration(10 * time.Second)},
			expected: 10 * time.Second,
		},
		{
			name:     "override wins over call default",
			opts:     Options{Timeout: Duration(time.Second), DefaultTimeout: Duration(10 * time.Second)},
			expected: time.Second,
		},
		{
			name:     "explicit zero override",
			opts:     Options{Timeout: Duration(0), DefaultTimeout: Duration(10 * time.Second)},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.opts.EffectiveTimeout())
		})
	}
}

func TestSynchronize_Uncontended(t *testing.T) {
	r := NewRegistry(t.TempDir(), testPollInterval, nil)
	var waits, runs atomic.Int32

	start := time.Now()
	got, err := Synchronize(context.Background(), r, "build", Options{OnWait: countingWait(&waits)}, func() (string, error) {
		runs.Add(1)
		return "built", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "built", got)
	assert.Equal(t, int32(1), runs.Load())
	assert.Zero(t, waits.Load(), "observer must not run without contention")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	l, err := r.Resolve("build")
	require.NoError(t, err)
	assert.False(t, l.Held(), "lock must be released after the body")
}

func TestSynchronize_NonPositiveTimeout(t *testing.T) {
	r := NewRegistry(t.TempDir(), testPollInterval, nil)

	for _, timeout := range []time.Duration{0, -time.Minute} {
		var runs atomic.Int32
		start := time.Now()
		_, err := Synchronize(context.Background(), r, "build", Options{Timeout: Duration(timeout)}, func() (int, error) {
			runs.Add(1)
			return 0, nil
		})

		require.ErrorIs(t, err, ErrTimeout)
		assert.Zero(t, runs.Load())
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	}
}

func TestSynchronize_WaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testPollInterval, nil)

	const hold = 150 * time.Millisecond
	holdLock(t, dir, "build", hold)

	var waits, runs atomic.Int32
	start := time.Now()
	got, err := Synchronize(context.Background(), r, "build", Options{
		Timeout: Duration(2 * time.Second),
		OnWait:  countingWait(&waits),
	}, func() (time.Duration, error) {
		runs.Add(1)
		return time.Since(start), nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, hold)
	assert.Less(t, got, 2*time.Second)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(1), waits.Load(), "observer runs once per contended call")
}

func TestSynchronize_TimesOutWhileHeld(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testPollInterval, nil)
	holder := holdLock(t, dir, "build", 0)

	var waits, runs atomic.Int32
	_, err := Synchronize(context.Background(), r, "build", Options{
		DefaultTimeout: Duration(100 * time.Millisecond),
		OnWait:         countingWait(&waits),
	}, func() (int, error) {
		runs.Add(1)
		return 1, nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, runs.Load())
	assert.Equal(t, int32(1), waits.Load())
	assert.True(t, holder.Held(), "a timed out call must not release another holder's lock")
}

func TestSynchronize_BodyErrorReleasesOnce(t *testing.T) {
	l := newTestLock(t, t.TempDir(), "build")
	counted := &countingLocker{Locker: l}
	bodyErr := errors.New("stage failed")

	for i := 0; i < 3; i++ {
		_, err := synchronize(context.Background(), counted, time.Second, nil, zap.NewNop(), func() (int, error) {
			return 0, bodyErr
		})
		assert.Same(t, bodyErr, err, "body error must pass through unchanged")
	}

	assert.Equal(t, int32(3), counted.acquires.Load())
	assert.Equal(t, counted.acquires.Load(), counted.releases.Load())
	assert.False(t, l.Held())
}

func TestSynchronize_TimeoutDoesNotRelease(t *testing.T) {
	dir := t.TempDir()
	holdLock(t, dir, "build", 0)

	counted := &countingLocker{Locker: newTestLock(t, dir, "build")}
	_, err := synchronize(context.Background(), counted, 50*time.Millisecond, nil, zap.NewNop(), func() (int, error) {
		t.Fatal("body must not run")
		return 0, nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, counted.acquires.Load())
	assert.Zero(t, counted.releases.Load())
}

func TestSynchronize_PanicReleases(t *testing.T) {
	r := NewRegistry(t.TempDir(), testPollInterval, nil)

	assert.Panics(t, func() {
		_ = r.Do(context.Background(), "build", Options{}, func() error {
			panic("boom")
		})
	})

	l, err := r.Resolve("build")
	require.NoError(t, err)
	assert.False(t, l.Held())

	require.NoError(t, r.Do(context.Background(), "build", Options{Timeout: Duration(time.Second)}, func() error {
		return nil
	}))
}

func TestSynchronize_ObserverSkippingWaitStillAcquires(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testPollInterval, nil)
	holdLock(t, dir, "build", 50*time.Millisecond)

	var runs atomic.Int32
	err := r.Do(context.Background(), "build", Options{
		Timeout: Duration(time.Second),
		OnWait:  func(func() error) error { return nil },
	}, func() error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), runs.Load())
}

func TestSynchronize_ObserverCannotHideTimeout(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testPollInterval, nil)
	holdLock(t, dir, "build", 0)

	err := r.Do(context.Background(), "build", Options{
		Timeout: Duration(50 * time.Millisecond),
		OnWait: func(wait func() error) error {
			_ = wait()
			return nil
		},
	}, func() error {
		t.Fatal("body must not run")
		return nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSynchronize_ObserverErrorAfterAcquireReleases(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testPollInterval, nil)
	holdLock(t, dir, "build", 30*time.Millisecond)
	observerErr := errors.New("spinner broke")

	err := r.Do(context.Background(), "build", Options{
		Timeout: Duration(time.Second),
		OnWait: func(wait func() error) error {
			if err := wait(); err != nil {
				return err
			}
			return observerErr
		},
	}, func() error {
		t.Fatal("body must not run")
		return nil
	})

	assert.ErrorIs(t, err, observerErr)
	l, err := r.Resolve("build")
	require.NoError(t, err)
	assert.False(t, l.Held())
}

func TestSynchronize_SerializesGoroutines(t *testing.T) {
	r := NewRegistry(t.TempDir(), testPollInterval, nil)

	var inside, maxInside atomic.Int32
	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			done <- r.Do(context.Background(), "build", Options{Timeout: Duration(5 * time.Second)}, func() error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestSynchronize_InvalidName(t *testing.T) {
	r := NewRegistry(t.TempDir(), testPollInterval, nil)

	err := r.Do(context.Background(), "a/b", Options{}, func() error { return nil })
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSynchronize_RecordsContention(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testPollInterval, nil)
	name := "metrics-contention"
	before := testutil.ToFloat64(metrics.LockContentionsTotal.WithLabelValues(name))

	holdLock(t, dir, name, 30*time.Millisecond)
	require.NoError(t, r.Do(context.Background(), name, Options{Timeout: Duration(time.Second)}, func() error {
		return nil
	}))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LockContentionsTotal.WithLabelValues(name)))
}

func TestSynchronize_ReleaseFailureIsLoggedOnly(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	l := &failingReleaseLocker{&countingLocker{Locker: newTestLock(t, t.TempDir(), "build")}}

	got, err := synchronize(context.Background(), l, time.Second, nil, logger, func() (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	bodyErr := errors.New("body failed")
	got, err = synchronize(context.Background(), l, time.Second, nil, logger, func() (int, error) {
		return 0, bodyErr
	})
	assert.Same(t, bodyErr, err)
	assert.Equal(t, 0, got)

	assert.Equal(t, int32(2), l.acquires.Load())
	assert.Equal(t, int32(2), l.releases.Load())

	warnings := logs.FilterMessage("Failed to release lock").AllUntimed()
	require.Len(t, warnings, 2, "one warning per failed release")
	for _, entry := range warnings {
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, "build", entry.ContextMap()["lock"])
		assert.Equal(t, errReleaseFailed.Error(), entry.ContextMap()["error"])
	}
}
