// internal/retry/retry.go
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jwthecolorist/sunspec-scan/internal/pool"
)

// Health is the per-reader connection record. Mutated only by the
// scheduler loop; Snapshot hands out copies.
type Health struct {
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastError           time.Time
	CurrentDelay        time.Duration
}

// Config tunes one scheduler.
type Config struct {
	// Interval is the steady re-execution period while healthy.
	Interval time.Duration

	// BaseDelay seeds the backoff after the first failure.
	BaseDelay time.Duration

	// CapDelay bounds backoff growth. Retries themselves are unbounded.
	CapDelay time.Duration
}

const (
	defaultInterval  = 30 * time.Second
	defaultBaseDelay = time.Second
	defaultCapDelay  = 30 * time.Second
)

// NextDelay computes the backoff after the given consecutive-failure
// count: base*2^(failures-1), capped.
func NextDelay(base, cap time.Duration, failures int) time.Duration {
	if failures < 1 {
		return base
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}

// Scheduler drives a periodic action: fixed interval while succeeding,
// one-shot capped exponential backoff while failing, instant recovery
// on the first success. Cycles never overlap because the next one is
// scheduled only after the prior fully settles.
type Scheduler struct {
	cfg Config
	log *logrus.Logger

	mu     sync.Mutex
	health Health
}

func New(cfg Config, log *logrus.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.CapDelay <= 0 {
		cfg.CapDelay = defaultCapDelay
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{cfg: cfg, log: log}
}

// Snapshot returns a copy of the current health counters.
func (s *Scheduler) Snapshot() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

func (s *Scheduler) recordSuccess() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.ConsecutiveFailures = 0
	s.health.LastSuccess = time.Now()
	s.health.CurrentDelay = 0
	return s.cfg.Interval
}

func (s *Scheduler) recordFailure() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.ConsecutiveFailures++
	s.health.LastError = time.Now()
	s.health.CurrentDelay = NextDelay(s.cfg.BaseDelay, s.cfg.CapDelay, s.health.ConsecutiveFailures)
	return s.health.CurrentDelay
}

// Run executes action until ctx is done. It blocks; run it on its own
// goroutine, one per reader.
func (s *Scheduler) Run(ctx context.Context, action func(context.Context) error) {
	for {
		var wait time.Duration

		err := action(ctx)
		switch {
		case err == nil:
			wait = s.recordSuccess()
		case pool.IsTimeout(err):
			// Expected signature of transient network loss.
			wait = s.recordFailure()
			s.log.Debugf("read cycle timed out, retrying in %s: %v", wait, err)
		default:
			wait = s.recordFailure()
			s.log.Warnf("read cycle failed (%d consecutive), retrying in %s: %v",
				s.Snapshot().ConsecutiveFailures, wait, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
