package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	ctgovRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	ctgovRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// retryFixedDelay executes fn until it succeeds, waiting the configured fixed
// delay between attempts, up to MaxRetries total attempts. One call to fn is
// one page request; a failure on one page never re-runs earlier pages.
//
// Retries are aborted early when ctx is cancelled, surfaced as
// ErrContextCancelled. After the last failed attempt the last underlying
// error is wrapped in ErrRetryExhausted.
func (c *Client) retryFixedDelay(ctx context.Context, endpoint string, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(c.config.RetryDelay),
			uint64(c.config.MaxRetries-1),
		),
		ctx,
	)

	attempt := 0
	var lastClass ErrorClass

	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastClass = errorClassOf(err)
		ctgovRetriesTotal.WithLabelValues(string(lastClass)).Inc()

		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Str("error_class", string(lastClass)).
			Int("attempt", attempt).
			Int("max_attempts", c.config.MaxRetries).
			Dur("retry_delay", c.config.RetryDelay).
			Msg("Request attempt failed")

		return err
	}, policy)

	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Msg("Context cancelled during retry")
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	}

	ctgovRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("max_attempts", c.config.MaxRetries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
}

// errorClassOf extracts the error class from an APIError. Transport failures
// never carry an APIError and classify as network errors.
func errorClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}
