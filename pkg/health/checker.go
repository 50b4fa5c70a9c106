package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/richxcame/driver-verification/pkg/common"
)

// DefaultTimeout bounds a single dependency probe.
const DefaultTimeout = 2 * time.Second

// Pinger is satisfied by pgxpool.Pool, the redis client wrapper and the
// object storage client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a dependency through its Ping method.
func PingCheck(name string, p Pinger) common.Check {
	return func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("%s is not configured", name)
		}
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	}
}

// ConnectedCheck reports the state of a long-lived connection such as the
// NATS client, which has no request/response ping.
func ConnectedCheck(name string, connected func() bool) common.Check {
	return func(context.Context) error {
		if !connected() {
			return fmt.Errorf("%s is disconnected", name)
		}
		return nil
	}
}

// Cached memoizes a check result for ttl. Readiness probes hit the object
// store on every call otherwise.
func Cached(check common.Check, ttl time.Duration) common.Check {
	var (
		mu        sync.Mutex
		lastCheck time.Time
		lastErr   error
	)
	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if !lastCheck.IsZero() && time.Since(lastCheck) < ttl {
			return lastErr
		}
		lastErr = check(ctx)
		lastCheck = time.Now()
		return lastErr
	}
}
