// Package invoke wraps point-to-point calls between services with retry,
// circuit-breaker, and timeout policies.
package invoke

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cadence/observability"
	"github.com/xraph/cadence/signature"
)

// maxResponseBody caps response body retention per call.
const maxResponseBody = 64 * 1024

// Policy bounds one resilient call.
type Policy struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int

	// Backoff is the constant delay between attempts.
	Backoff time.Duration

	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int

	// Cooldown is how long an open circuit waits before allowing a probe.
	Cooldown time.Duration
}

// DefaultPolicy returns the default resilience policy.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		Backoff:          1 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Result holds the outcome of a completed call.
type Result struct {
	StatusCode int
	Body       []byte
	LatencyMs  int
}

// OK reports whether the response status is 2xx.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Invoker performs resilient HTTP calls to named target services.
type Invoker struct {
	client  *http.Client
	breaker *Breaker
	policy  Policy
	secret  string
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewInvoker creates an invoker with the given policy. secret, when
// non-empty, signs every request so internal routes can authenticate callers.
func NewInvoker(policy Policy, secret string, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultPolicy().Timeout
	}
	return &Invoker{
		// Per-attempt deadlines come from the context; the client itself
		// stays unbounded.
		client:  &http.Client{},
		breaker: NewBreaker(policy.FailureThreshold, policy.Cooldown),
		policy:  policy,
		secret:  secret,
		logger:  logger,
	}
}

// SetObservability attaches metrics and tracing instruments.
func (inv *Invoker) SetObservability(m *observability.Metrics, t *observability.Tracer) {
	inv.metrics = m
	inv.tracer = t
}

// Breaker exposes the circuit breaker, for introspection and tests.
func (inv *Invoker) Breaker() *Breaker { return inv.breaker }

// Do performs a resilient call to the named target service.
//
// Failure classification:
//   - circuit open → ErrCircuitOpen immediately, no network I/O,
//     no retries while open
//   - network error, timeout, 5xx, 429 → transient: counted against the
//     breaker and retried up to MaxRetries with constant backoff
//   - any other HTTP response → returned to the caller as-is; the breaker
//     records a success because the target answered coherently
func (inv *Invoker) Do(ctx context.Context, target, method, url string, payload []byte) (*Result, error) {
	var span trace.Span
	if inv.tracer != nil {
		ctx, span = inv.tracer.StartInvokeSpan(ctx, target, method, url)
	}

	res, attempts, err := inv.do(ctx, target, method, url, payload)

	if span != nil {
		status := 0
		errMsg := ""
		if res != nil {
			status = res.StatusCode
		}
		if err != nil {
			errMsg = err.Error()
		}
		inv.tracer.EndInvokeSpan(span, status, attempts, errMsg)
	}
	return res, err
}

func (inv *Invoker) do(ctx context.Context, target, method, url string, payload []byte) (*Result, int, error) {
	var lastErr error
	var lastRes *Result

	for attempt := 0; attempt <= inv.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastRes, attempt, ctx.Err()
			case <-time.After(inv.policy.Backoff):
			}
		}

		if !inv.breaker.Allow(target) {
			inv.record(target, "circuit_open", 0)
			// Fail fast; retrying against an open circuit is pointless.
			return nil, attempt, fmt.Errorf("%w: %s", ErrCircuitOpen, target)
		}

		res, err := inv.attempt(ctx, method, url, payload)
		switch {
		case err != nil:
			inv.breaker.OnFailure(target)
			inv.record(target, "error", 0)
			lastErr = err
			lastRes = nil
			inv.logger.DebugContext(ctx, "invoke attempt failed",
				"target", target, "attempt", attempt+1, "error", err)

		case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
			inv.breaker.OnFailure(target)
			inv.record(target, "upstream_error", float64(res.LatencyMs)/1000.0)
			lastErr = fmt.Errorf("invoke: %s %s: status %d", method, url, res.StatusCode)
			lastRes = res
			inv.logger.DebugContext(ctx, "invoke attempt failed",
				"target", target, "attempt", attempt+1, "status", res.StatusCode)

		default:
			// The target answered coherently, even if with a 4xx.
			inv.breaker.OnSuccess(target)
			inv.record(target, "ok", float64(res.LatencyMs)/1000.0)
			return res, attempt + 1, nil
		}
	}

	return lastRes, inv.policy.MaxRetries + 1, fmt.Errorf("invoke: %s: retries exhausted: %w", target, lastErr)
}

// attempt performs one bounded HTTP attempt.
func (inv *Invoker) attempt(ctx context.Context, method, url string, payload []byte) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, inv.policy.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("invoke: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Cadence/1.0")

	if inv.secret != "" {
		ts := time.Now().Unix()
		req.Header.Set(signature.HeaderSignature, signature.Sign(payload, inv.secret, ts))
		req.Header.Set(signature.HeaderTimestamp, strconv.FormatInt(ts, 10))
	}

	start := time.Now()
	resp, err := inv.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return nil, fmt.Errorf("invoke: read response: %w", readErr)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		LatencyMs:  int(latency),
	}, nil
}

func (inv *Invoker) record(target, status string, latencySeconds float64) {
	if inv.metrics != nil {
		inv.metrics.RecordInvoke(target, status, latencySeconds)
	}
}
