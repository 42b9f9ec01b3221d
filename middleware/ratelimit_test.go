package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jack4Code/pipeline"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*limiterStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newLimiterStore()
	s.now = clock.now
	return s, clock
}

func nextOK() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, r *http.Request) (pipeline.Response, error) {
		return pipeline.Text(http.StatusOK, "ok"), nil
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestLimiterStore_BoundedByMaxClients(t *testing.T) {
	s, _ := newTestStore()
	unit := s.middleware(RateLimitConfig{Rate: 1, Burst: 5, PerClient: true, MaxClients: 100})

	for i := 0; i < 5000; i++ {
		addr := fmt.Sprintf("[2001:db8::%x]:443", i)
		resp, err := unit.Process(context.Background(), requestFrom(addr), nextOK())
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if pipeline.StatusOf(resp) != http.StatusOK {
			t.Fatalf("client %d: status = %d, want 200", i, pipeline.StatusOf(resp))
		}
	}

	if n := s.size(); n > 100 {
		t.Errorf("buckets held = %d, want at most 100", n)
	}
}

func TestLimiterStore_SweepsRefilledBuckets(t *testing.T) {
	s, clock := newTestStore()
	unit := s.middleware(RateLimitConfig{Rate: 10, Burst: 2, PerClient: true})

	for i := 0; i < 10; i++ {
		unit.Process(context.Background(), requestFrom(fmt.Sprintf("10.0.0.%d:1234", i)), nextOK())
	}
	if n := s.size(); n != 10 {
		t.Fatalf("buckets held = %d, want 10", n)
	}

	clock.advance(sweepInterval)
	unit.Process(context.Background(), requestFrom("10.0.1.1:1234"), nextOK())

	if n := s.size(); n != 1 {
		t.Errorf("buckets held after sweep = %d, want 1", n)
	}
}

func TestLimiterStore_KeepsDrainedBuckets(t *testing.T) {
	s, clock := newTestStore()
	unit := s.middleware(RateLimitConfig{Rate: 0.001, Burst: 1, PerClient: true})

	busy := requestFrom("10.0.0.1:1234")
	if resp, _ := unit.Process(context.Background(), busy, nextOK()); pipeline.StatusOf(resp) != http.StatusOK {
		t.Fatalf("first status = %d, want 200", pipeline.StatusOf(resp))
	}

	// A sweep must not forget a bucket that is still refilling.
	clock.advance(sweepInterval)
	unit.Process(context.Background(), requestFrom("10.0.0.2:1234"), nextOK())

	if resp, _ := unit.Process(context.Background(), busy, nextOK()); pipeline.StatusOf(resp) != http.StatusTooManyRequests {
		t.Errorf("status after sweep = %d, want 429", pipeline.StatusOf(resp))
	}
}

func TestLimiterStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, clock := newTestStore()
	cfg := RateLimitConfig{Rate: 0.001, Burst: 1, PerClient: true, MaxClients: 2}
	unit := s.middleware(cfg)

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		unit.Process(context.Background(), requestFrom(addr), nextOK())
		clock.advance(time.Second)
	}
	unit.Process(context.Background(), requestFrom("10.0.0.3:1"), nextOK())

	cfg.ApplyDefaults()
	g := s.group(cfg)
	if _, ok := g.buckets["10.0.0.1"]; ok {
		t.Error("oldest bucket was kept")
	}
	for _, host := range []string{"10.0.0.2", "10.0.0.3"} {
		if _, ok := g.buckets[host]; !ok {
			t.Errorf("bucket for %s was dropped", host)
		}
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{"defaults", RateLimitConfig{}, false},
		{"negative rate", RateLimitConfig{Rate: -1, Burst: 1}, true},
		{"negative burst", RateLimitConfig{Rate: 1, Burst: -1}, true},
		{"negative max clients", RateLimitConfig{MaxClients: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
