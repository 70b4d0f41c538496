// Package ratelimit implements client-side request pacing for the
// ClinicalTrials.gov API. The API publishes no rate limit headers; it asks
// integrators to keep request rates modest (about one request per second),
// so the interval is enforced locally and, when a Redis client is provided,
// shared across processes.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyToken is the shared pacing token. Whoever sets it owns the
// current interval slot.
const RedisKeyToken = "ctgov:pacer:token"

// Prometheus metrics for request pacing.
var (
	ctgovPacerWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_pacer_waits_total",
		Help: "Total number of requests delayed by the pacer",
	})

	ctgovPacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ctgov_pacer_wait_seconds",
		Help:    "Time spent waiting for a pacing slot",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Pacer enforces a minimum interval between outbound requests.
type Pacer struct {
	interval time.Duration
	redis    *redis.Client
	logger   zerolog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a pacer with the given minimum interval. redisClient is
// optional; when set, the interval is coordinated across processes.
func NewPacer(interval time.Duration, redisClient *redis.Client, logger zerolog.Logger) *Pacer {
	return &Pacer{
		interval: interval,
		redis:    redisClient,
		logger:   logger,
	}
}

// Wait blocks until the next request is allowed or ctx is cancelled.
// A nil pacer or non-positive interval never blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return nil
	}

	start := time.Now()
	var err error
	if p.redis != nil {
		err = p.waitShared(ctx)
	} else {
		err = p.waitLocal(ctx)
	}

	if waited := time.Since(start); err == nil && waited > time.Millisecond {
		ctgovPacerWaitsTotal.Inc()
		ctgovPacerWaitSeconds.Observe(waited.Seconds())
		p.logger.Debug().Dur("waited", waited).Msg("Request paced")
	}
	return err
}

// waitLocal serializes callers in this process. The mutex is held across the
// sleep so concurrent callers line up one interval apart.
func (p *Pacer) waitLocal(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if wait := p.interval - time.Since(p.last); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	p.last = time.Now()
	return nil
}

// waitShared acquires the Redis pacing token. The token expires after one
// interval, so at most one request per interval is admitted across every
// process sharing the Redis instance.
func (p *Pacer) waitShared(ctx context.Context) error {
	poll := p.interval / 4
	if poll < 50*time.Millisecond {
		poll = 50 * time.Millisecond
	}

	for {
		ok, err := p.redis.SetNX(ctx, RedisKeyToken, 1, p.interval).Result()
		if err != nil {
			// Redis being down must not stop the client; degrade to
			// process-local pacing.
			p.logger.Warn().Err(err).Msg("Shared pacing unavailable, falling back to local")
			return p.waitLocal(ctx)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
