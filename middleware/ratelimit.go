package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jack4Code/pipeline"
)

// RateLimitConfig configures the rate limiting unit.
type RateLimitConfig struct {
	// Rate is the refill rate in requests per second.
	Rate float64 `mapstructure:"rate"`
	// Burst is the bucket size.
	Burst int `mapstructure:"burst"`
	// PerClient keeps one bucket per remote host instead of one in total.
	PerClient bool `mapstructure:"per_client"`
	// MaxClients caps the per-client buckets held at once. When the cap is
	// reached the least recently used bucket is dropped. Defaults to 10000.
	MaxClients int `mapstructure:"max_clients"`
}

func (c *RateLimitConfig) ApplyDefaults() {
	if c.Rate == 0 {
		c.Rate = 10
	}
	if c.Burst == 0 {
		c.Burst = int(math.Ceil(c.Rate))
	}
	if c.MaxClients == 0 {
		c.MaxClients = 10000
	}
}

func (c *RateLimitConfig) Validate() error {
	if c.Rate < 0 {
		return errors.New("rate must not be negative")
	}
	if c.Burst < 0 {
		return errors.New("burst must not be negative")
	}
	if c.MaxClients < 0 {
		return errors.New("max_clients must not be negative")
	}
	return nil
}

// sweepInterval bounds how often a group scans for refilled buckets when
// it is below its cap.
const sweepInterval = time.Minute

// limiterStore keeps token buckets across dispatches. Units with the same
// rate, burst and cap share one bucket group.
type limiterStore struct {
	mu     sync.Mutex
	groups map[string]*bucketGroup
	now    func() time.Time
}

func newLimiterStore() *limiterStore {
	return &limiterStore{
		groups: make(map[string]*bucketGroup),
		now:    time.Now,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketGroup holds the buckets of one rate/burst/cap combination, keyed by
// client host ("" when not per client).
type bucketGroup struct {
	limit     rate.Limit
	burst     int
	max       int
	buckets   map[string]*bucket
	lastSweep time.Time
}

func (s *limiterStore) group(cfg RateLimitConfig) *bucketGroup {
	key := fmt.Sprintf("%g/%d/%d", cfg.Rate, cfg.Burst, cfg.MaxClients)
	g, ok := s.groups[key]
	if !ok {
		g = &bucketGroup{
			limit:   rate.Limit(cfg.Rate),
			burst:   cfg.Burst,
			max:     cfg.MaxClients,
			buckets: make(map[string]*bucket),
		}
		s.groups[key] = g
	}
	return g
}

// allow takes a token from client's bucket.
func (s *limiterStore) allow(cfg RateLimitConfig, client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	g := s.group(cfg)

	b, ok := g.buckets[client]
	if !ok {
		if len(g.buckets) >= g.max || now.Sub(g.lastSweep) >= sweepInterval {
			g.sweep(now)
		}
		if len(g.buckets) >= g.max {
			g.evictOldest()
		}
		b = &bucket{limiter: rate.NewLimiter(g.limit, g.burst)}
		g.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets that have refilled completely; a new bucket would
// behave the same.
func (g *bucketGroup) sweep(now time.Time) {
	g.lastSweep = now
	for client, b := range g.buckets {
		if b.limiter.TokensAt(now) >= float64(g.burst) {
			delete(g.buckets, client)
		}
	}
}

func (g *bucketGroup) evictOldest() {
	var oldest string
	var oldestSeen time.Time
	first := true
	for client, b := range g.buckets {
		if first || b.lastSeen.Before(oldestSeen) {
			oldest, oldestSeen, first = client, b.lastSeen, false
		}
	}
	if !first {
		delete(g.buckets, oldest)
	}
}

// size returns the number of buckets held across all groups.
func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, g := range s.groups {
		n += len(g.buckets)
	}
	return n
}

// middleware returns a unit that answers 429 once the bucket is empty,
// without calling next.
func (s *limiterStore) middleware(cfg RateLimitConfig) pipeline.Middleware {
	cfg.ApplyDefaults()
	retryAfter := strconv.Itoa(int(math.Ceil(1 / cfg.Rate)))

	return pipeline.MiddlewareFunc(func(ctx context.Context, r *http.Request, next pipeline.Handler) (pipeline.Response, error) {
		client := ""
		if cfg.PerClient {
			client = clientHost(r)
		}

		if !s.allow(cfg, client) {
			return withHeaders(
				pipeline.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"}),
				http.Header{"Retry-After": {retryAfter}},
			), nil
		}
		return next.Handle(ctx, r)
	})
}

// RateLimit returns a standalone rate limiting unit with its own buckets,
// for use with pipeline.Chain or as an instance descriptor.
func RateLimit(cfg RateLimitConfig) pipeline.Middleware {
	return newLimiterStore().middleware(cfg)
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
