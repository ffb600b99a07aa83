package kanjialive

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Default backoff parameters for the retrying client.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffCeiling = 30 * time.Second
)

// BackoffPolicy computes retry delays. Delays grow exponentially from the
// initial value, are capped at the ceiling, and carry a small random jitter
// so synchronized clients fan out. A server-provided Retry-After hint
// overrides the computed delay but never exceeds the ceiling.
type BackoffPolicy struct {
	initial time.Duration
	ceiling time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// BackoffOption configures a BackoffPolicy.
type BackoffOption func(*BackoffPolicy)

// WithBackoffRand injects the random source used for jitter. Tests use a
// seeded source to make delays deterministic.
func WithBackoffRand(rng *rand.Rand) BackoffOption {
	return func(p *BackoffPolicy) {
		p.rng = rng
	}
}

// WithBackoffLogger sets the logger used to report ceiling-clamped hints.
func WithBackoffLogger(logger *slog.Logger) BackoffOption {
	return func(p *BackoffPolicy) {
		p.logger = logger
	}
}

// NewBackoffPolicy creates a policy with the given initial delay and
// ceiling. Non-positive values fall back to the defaults.
func NewBackoffPolicy(initial, ceiling time.Duration, opts ...BackoffOption) *BackoffPolicy {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if ceiling <= 0 {
		ceiling = DefaultBackoffCeiling
	}
	if ceiling < initial {
		ceiling = initial
	}

	p := &BackoffPolicy{
		initial: initial,
		ceiling: ceiling,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p
}

// Delay returns how long to wait before the retry following failed attempt
// number attempt (1-based). When the server supplied a Retry-After hint in
// seconds, the hint wins, clamped to the ceiling; a clamped hint is logged
// at warning level because it usually means the upstream is asking for more
// patience than this client is configured to give.
//
// Without a hint the delay is min(initial * 2^(attempt-1), ceiling) plus a
// jitter drawn uniformly from [0, 10% of the base delay).
func (p *BackoffPolicy) Delay(attempt int, hintSeconds *int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	if hintSeconds != nil && *hintSeconds >= 0 {
		hinted := time.Duration(*hintSeconds) * time.Second
		if hinted > p.ceiling {
			p.logger.Warn("retry-after hint exceeds backoff ceiling, clamping",
				"hint", hinted,
				"ceiling", p.ceiling)
			return p.ceiling
		}
		return hinted
	}

	base := p.initial
	for i := 1; i < attempt; i++ {
		base *= 2
		if base >= p.ceiling {
			base = p.ceiling
			break
		}
	}
	if base > p.ceiling {
		base = p.ceiling
	}

	return base + p.jitter(base)
}

// jitter draws a uniform duration from [0, base/10).
func (p *BackoffPolicy) jitter(base time.Duration) time.Duration {
	span := int64(base) / 10
	if span <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rng.Int63n(span))
}
