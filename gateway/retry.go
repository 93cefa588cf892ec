package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/internal/metrics"
)

// BackoffPolicy bounds retries of transient node failures with
// exponential backoff and jitter.
type BackoffPolicy struct {
	Base        time.Duration
	Factor      float64
	Jitter      float64
	MaxAttempts int
}

// DefaultBackoffPolicy is 200ms base, doubling, three attempts.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:        200 * time.Millisecond,
		Factor:      2,
		Jitter:      0.2,
		MaxAttempts: 3,
	}
}

// Do runs attempt until it succeeds, fails terminally, or the attempt
// budget is exhausted. Errors are classified first; only transient
// ones are retried. The returned error is always classified.
func (p BackoffPolicy) Do(ctx context.Context, attempt func(ctx context.Context) error) error {
	backoff := p.Base
	var lastErr error

	for i := 0; i < p.MaxAttempts; i++ {
		if i > 0 {
			metrics.GatewayRetries.Inc()

			jitter := time.Duration(float64(backoff) * p.Jitter * (rand.Float64()*2 - 1))
			select {
			case <-ctx.Done():
				return Classify(ctx.Err())
			case <-time.After(backoff + jitter):
			}

			backoff = time.Duration(float64(backoff) * p.Factor)
		}

		err := Classify(attempt(ctx))
		if err == nil {
			return nil
		}
		if !core.Transient(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}

// Classify maps raw node errors onto the gateway error taxonomy.
// Errors already carrying a taxonomy sentinel pass through unchanged;
// anything that does not look transient or like a revert is returned
// as-is and treated as terminal.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, core.ErrRpcUnavailable),
		errors.Is(err, core.ErrRpcTimeout),
		errors.Is(err, core.ErrContractReverted),
		errors.Is(err, core.ErrGasEstimationFailed):
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", core.ErrRpcTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", core.ErrRpcTimeout, err)
		}
		return fmt.Errorf("%w: %v", core.ErrRpcUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "revert"):
		return fmt.Errorf("%w: %v", core.ErrContractReverted, err)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "service unavailable"):
		return fmt.Errorf("%w: %v", core.ErrRpcUnavailable, err)
	}

	return err
}
