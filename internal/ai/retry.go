package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// retryPolicy is the exponential backoff shared by the HTTP runtimes.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// newRetryPolicy fills non-positive settings from the def policy.
func newRetryPolicy(attempts int, base, ceiling time.Duration, def retryPolicy) retryPolicy {
	if attempts > 0 {
		def.maxAttempts = attempts
	}
	if base > 0 {
		def.baseDelay = base
	}
	if ceiling > 0 {
		def.maxDelay = ceiling
	}
	return def
}

// attemptResult tells the retry loop what to do after one try.
type attemptResult struct {
	err        error
	retryable  bool
	retryAfter time.Duration // server hint; overrides backoff when > 0
}

// do runs fn until it succeeds, returns a non-retryable error, or attempts
// run out. Waits honor ctx.
func (p retryPolicy) do(ctx context.Context, fn func(attempt int) attemptResult) error {
	backoff := p.baseDelay
	var last error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := fn(attempt)
		if res.err == nil {
			return nil
		}
		last = res.err
		if !res.retryable || attempt == p.maxAttempts {
			break
		}
		wait := res.retryAfter
		if wait <= 0 {
			wait = withJitter(backoff)
			if p.maxDelay > 0 && wait > p.maxDelay {
				wait = p.maxDelay
			}
			backoff *= 2
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// retryAfter reads the Retry-After header as seconds or an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := parseRetryAfterSeconds(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}
