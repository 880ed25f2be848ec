package log

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/projlock/locks"
)

// WaitObserver returns a locks.WaitFunc that reports a contended lock through
// logger. message is logged once when the wait begins, a progress line every
// progressInterval while still blocked (disabled when <= 0), and the outcome
// with the total wait when it ends. The wait's error is returned unchanged.
func WaitObserver(logger *zap.Logger, message string, fields []zap.Field, progressInterval time.Duration) locks.WaitFunc {
	return func(wait func() error) error {
		logger.Info(message, fields...)

		start := time.Now()
		done := make(chan struct{})
		stopped := make(chan struct{})

		go func() {
			defer close(stopped)
			if progressInterval <= 0 {
				<-done
				return
			}

			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					logger.Info("Still waiting for lock",
						append(fields, zap.Duration("waited", time.Since(start)))...)
				}
			}
		}()

		err := wait()
		close(done)
		<-stopped

		waited := zap.Duration("waited", time.Since(start))
		switch {
		case err == nil:
			logger.Debug("Lock acquired after wait", append(fields, waited)...)
		case errors.Is(err, locks.ErrTimeout):
			logger.Warn("Gave up waiting for lock", append(fields, waited, zap.Error(err))...)
		default:
			logger.Error("Lock wait failed", append(fields, waited, zap.Error(err))...)
		}

		return err
	}
}
