package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is a backing service with a cheap round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports the backing service unhealthy when Ping fails.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// GoroutineCountCheck reports unhealthy when more than threshold goroutines
// are running, which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
