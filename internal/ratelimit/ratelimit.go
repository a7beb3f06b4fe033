// Package ratelimit enforces the per-subject, per-window quotas of the
// pipeline's RateLimit stage: a durable counter (SQL or Redis) backed by an
// in-process token-bucket fast path, so a single noisy caller never needs a
// round trip to the counter store to be turned away.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

// Tier is one of the three counter tables: the default authenticated tier,
// a stricter tier for unauthenticated ("anonymous") callers, and a looser
// tier for read-only polling endpoints.
type Tier string

const (
	TierDefault   Tier = "rl_default"
	TierAnonymous Tier = "rl_anonymous"
	TierPolling   Tier = "rl_polling"
)

// Window is one of the three counter granularities a Tier is checked against.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
)

func (w Window) duration() time.Duration {
	switch w {
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

func (w Window) truncate(t time.Time) time.Time {
	switch w {
	case WindowHour:
		return t.Truncate(time.Hour)
	case WindowDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	default:
		return t.Truncate(time.Minute)
	}
}

// Limits is the {minute, hour, day} quota triple a Tier is checked against.
type Limits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

func (l Limits) forWindow(w Window) int {
	switch w {
	case WindowHour:
		return l.PerHour
	case WindowDay:
		return l.PerDay
	default:
		return l.PerMinute
	}
}

// Counter is the durable increment-and-read backend a Limiter checks against
// once the in-process fast path doesn't already reject the request. It is
// satisfied by store.Store directly, or by a Redis-backed implementation for
// multi-instance deployments.
type Counter interface {
	IncrementCounter(ctx context.Context, table, subject string, windowStart time.Time) (int, error)
	DecrementCounter(ctx context.Context, table, subject string, windowStart time.Time) error
}

var _ Counter = (*store.SQLStore)(nil)

// bucket identifies one durable counter an Allow call incremented, so a
// caller can later release it if the request it gated turned out to fail.
type bucket struct {
	table       string
	windowStart time.Time
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Window     Window
	Limit      int
	Count      int
	RetryAfter time.Duration

	subject string
	buckets []bucket
}

// Release decrements every durable counter this Decision's Allow call
// incremented. The RateLimit pipeline stage calls this when the wrapped
// handler returned a non-2xx response, so failed requests never consume a
// caller's quota: rate counters only count successes.
func (l *Limiter) Release(ctx context.Context, d Decision) error {
	for _, b := range d.buckets {
		if err := l.counter.DecrementCounter(ctx, b.table, d.subject, b.windowStart); err != nil {
			return fmt.Errorf("ratelimit: release %s: %w", b.table, err)
		}
	}
	return nil
}

// Limiter enforces per-tier quotas. One Limiter is shared across the
// process; the in-process bucket map is keyed by (tier, subject).
type Limiter struct {
	counter Counter
	limits  map[Tier]Limits

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New builds a Limiter backed by counter (store.Store or a Redis adapter),
// with the default per-tier limits drawn from config.
func New(counter Counter, defaultLimits, anonymousLimits, pollingLimits Limits) *Limiter {
	return &Limiter{
		counter: counter,
		limits: map[Tier]Limits{
			TierDefault:   defaultLimits,
			TierAnonymous: anonymousLimits,
			TierPolling:   pollingLimits,
		},
		buckets: map[string]*rate.Limiter{},
	}
}

// Allow checks the in-process fast path first (cheap, no I/O); if it permits
// the request, it then checks and increments the durable minute/hour/day
// counters. The durable counters are the ones enforced; the in-process
// bucket exists only to shed obviously-over-quota traffic before it reaches
// the store. The durable counters are incremented here, before the
// response is known; the caller calls Release when the response is not a
// 2xx, which undoes those increments (the in-process token is not
// returned).
func (l *Limiter) Allow(ctx context.Context, tier Tier, subject string, now time.Time) (Decision, error) {
	limits, ok := l.limits[tier]
	if !ok {
		return Decision{}, fmt.Errorf("ratelimit: unknown tier %q", tier)
	}

	if !l.fastPathAllows(tier, subject, limits) {
		return Decision{Allowed: false, Window: WindowMinute, Limit: limits.PerMinute, RetryAfter: time.Second}, nil
	}

	d := Decision{Allowed: true, subject: subject}

	for _, w := range []Window{WindowMinute, WindowHour, WindowDay} {
		limit := limits.forWindow(w)
		if limit <= 0 {
			continue
		}
		table := string(tier) + "_" + string(w)
		bucketStart := w.truncate(now)
		count, err := l.counter.IncrementCounter(ctx, table, subject, bucketStart)
		if err != nil {
			return Decision{}, fmt.Errorf("ratelimit: increment %s/%s: %w", tier, w, err)
		}
		d.buckets = append(d.buckets, bucket{table: table, windowStart: bucketStart})
		if count > limit {
			retryAfter := bucketStart.Add(w.duration()).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
			d.Allowed = false
			d.Window = w
			d.Limit = limit
			d.Count = count
			d.RetryAfter = retryAfter
			return d, nil
		}
	}

	return d, nil
}

func (l *Limiter) fastPathAllows(tier Tier, subject string, limits Limits) bool {
	if limits.PerMinute <= 0 {
		return true
	}
	key := string(tier) + ":" + subject

	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(limits.PerMinute)/60, limits.PerMinute)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}
