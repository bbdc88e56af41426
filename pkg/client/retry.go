package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	crmRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	crmRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	crmRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"kind"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the initial request.
	MaxRetries int

	// BaseBackoff is the first backoff duration; it doubles each attempt.
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration:
// 3 retries with 1s, 2s, 4s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
	}
}

// attemptResult carries one attempt's outcome back to the retry loop.
// retryAfter is a server-supplied wait (Retry-After header) that overrides
// the computed backoff for that attempt when positive.
type attemptResult struct {
	retryAfter time.Duration
	err        error
}

// retryWithBackoff executes fn with exponential backoff on transient
// failures. Terminal failures return immediately. Exhausting the budget
// surfaces the last transient error wrapped in ErrRetryExhausted so the
// caller never sees a silent empty result.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() attemptResult) error {
	var lastErr error
	backoff := cfg.BaseBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		res := fn()
		if res.err == nil {
			if attempt > 0 {
				logger.Info().
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = res.err

		apiErr, ok := AsAPIError(res.err)
		if !ok || !apiErr.Transient() {
			return lastErr
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		wait := backoff
		if res.retryAfter > 0 {
			wait = res.retryAfter
		}

		crmRetriesTotal.WithLabelValues(string(apiErr.Kind)).Inc()
		crmRetryBackoffSeconds.WithLabelValues(string(apiErr.Kind)).Observe(wait.Seconds())

		logger.Debug().
			Str("kind", string(apiErr.Kind)).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("kind", string(apiErr.Kind)).
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff *= 2
	}

	kind := KindUnknown
	if apiErr, ok := AsAPIError(lastErr); ok {
		kind = apiErr.Kind
	}
	crmRetryExhaustedTotal.WithLabelValues(string(kind)).Inc()
	logger.Warn().
		Str("kind", string(kind)).
		Int("max_retries", cfg.MaxRetries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxRetries+1, lastErr)
}
