package broker

import (
	"context"
	"math"
	"time"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

// RetryConfig holds configuration for the retry decorator.
type RetryConfig struct {
	MaxRetries     int     `yaml:"max_retries"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	BackoffFactor  float64 `yaml:"backoff_factor"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialDelayMs: 500,
		MaxDelayMs:     10_000,
		BackoffFactor:  2.0,
	}
}

// retryingBroker wraps a Broker and retries transient failures with
// exponential backoff. Rejections and validation failures pass through
// untouched.
type retryingBroker struct {
	inner domain.Broker
	cfg   RetryConfig
}

// WithRetry decorates a broker with transient-failure retries.
func WithRetry(inner domain.Broker, cfg RetryConfig) domain.Broker {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &retryingBroker{inner: inner, cfg: cfg}
}

func (r *retryingBroker) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	var snapshot *domain.AccountSnapshot
	err := r.retry(ctx, func() error {
		var err error
		snapshot, err = r.inner.GetAccountSnapshot(ctx)
		return err
	})
	return snapshot, err
}

func (r *retryingBroker) GetQuote(ctx context.Context, stockCode string) (float64, error) {
	var price float64
	err := r.retry(ctx, func() error {
		var err error
		price, err = r.inner.GetQuote(ctx, stockCode)
		return err
	})
	return price, err
}

func (r *retryingBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	var result *domain.OrderResult
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.inner.SubmitOrder(ctx, req)
		return err
	})
	return result, err
}

func (r *retryingBroker) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == r.cfg.MaxRetries || !domain.IsTransient(err) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}
	return lastErr
}

func (r *retryingBroker) delay(attempt int) time.Duration {
	initial := time.Duration(r.cfg.InitialDelayMs) * time.Millisecond
	ceiling := time.Duration(r.cfg.MaxDelayMs) * time.Millisecond

	delay := initial
	if attempt > 0 {
		delay = time.Duration(float64(initial) * math.Pow(r.cfg.BackoffFactor, float64(attempt)))
	}
	if ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return delay
}
