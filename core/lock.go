package core

import (
	"context"
	"time"

	"github.com/ebogdum/projlock/locks"
)

// MessageWaitingResourceLock is shown while a lock is contended; data: name.
const MessageWaitingResourceLock = "process.waiting_resource_lock"

// Lock runs body while holding the named project lock.
//
// The timeout is the configured override when one was given explicitly,
// otherwise callDefault, otherwise the configured default timeout. While the
// lock is contended the engine's observer reports the wait.
func (e *Engine) Lock(ctx context.Context, name string, callDefault *time.Duration, body func() error) error {
	return e.registry.Do(ctx, name, e.lockOptions(name, callDefault), body)
}

// LockValue is Engine.Lock for bodies returning a value.
func LockValue[T any](ctx context.Context, e *Engine, name string, callDefault *time.Duration, body func() (T, error)) (T, error) {
	return locks.Synchronize(ctx, e.registry, name, e.lockOptions(name, callDefault), body)
}

func (e *Engine) lockOptions(name string, callDefault *time.Duration) locks.Options {
	opts := locks.Options{
		DefaultTimeout: callDefault,
	}

	if e.cfg.Lock.TimeoutSet {
		opts.Timeout = locks.Duration(e.cfg.Lock.Timeout)
	}
	if opts.DefaultTimeout == nil {
		opts.DefaultTimeout = locks.Duration(e.cfg.Lock.DefaultTimeout)
	}

	message := e.translator.Translate(MessageWaitingResourceLock, map[string]string{"name": name})
	opts.OnWait = e.observer(name, message)

	return opts
}
