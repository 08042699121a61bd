package sheets

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/fundwise/steward/internal/models"
)

// RetryConfig configures retry behavior for transient store errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a ClientInterface with automatic retry on transient errors.
type RetryClient struct {
	inner  ClientInterface
	config *RetryConfig
}

// NewRetryClient creates a RetryClient that wraps the given client.
func NewRetryClient(inner ClientInterface, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

// backoff computes the delay for the given attempt with jitter.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry executes fn with retry logic. Only retries transient errors.
func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt < rc.config.MaxRetries {
			d := rc.backoff(attempt)
			if err := sleep(ctx, d); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

func (rc *RetryClient) GetRows(ctx context.Context, table models.Table) (rows []models.Row, err error) {
	err = rc.retry(ctx, "get rows", func() error {
		rows, err = rc.inner.GetRows(ctx, table)
		return err
	})
	return
}

func (rc *RetryClient) AppendRows(ctx context.Context, table models.Table, rows []models.Row) error {
	// Note: appends are not retried. A retry after an ambiguous network
	// failure could land the same rows twice.
	return rc.inner.AppendRows(ctx, table, rows)
}

func (rc *RetryClient) UpdateRow(ctx context.Context, table models.Table, rowIndex int, row models.Row) error {
	// Row updates are idempotent overwrites, safe to retry.
	return rc.retry(ctx, "update row", func() error {
		return rc.inner.UpdateRow(ctx, table, rowIndex, row)
	})
}

func (rc *RetryClient) Ping(ctx context.Context) error {
	return rc.retry(ctx, "ping", func() error {
		return rc.inner.Ping(ctx)
	})
}
