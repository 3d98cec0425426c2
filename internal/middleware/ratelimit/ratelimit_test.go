package ratelimit

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAllowRefillsOverTime(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := New(Config{RequestsPerMinute: 3})
	defer rl.Stop()
	rl.now = clk.now

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	if ok, remaining := rl.Allow("1.2.3.4"); ok || remaining != 0 {
		t.Fatalf("expected rejection after budget, got %v %d", ok, remaining)
	}
	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Fatalf("other clients have their own bucket")
	}

	clk.advance(20 * time.Second)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatalf("expected one token after refill interval")
	}
	if ok, _ := rl.Allow("1.2.3.4"); ok {
		t.Fatalf("only one token should have been refilled")
	}

	clk.advance(time.Hour)
	if _, remaining := rl.Allow("1.2.3.4"); remaining != 2 {
		t.Fatalf("refill must cap at the budget, remaining %d", remaining)
	}
}

func TestEvictIdle(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Now()}
	rl := New(Config{RequestsPerMinute: 10})
	defer rl.Stop()
	rl.now = clk.now

	rl.Allow("idle")
	clk.advance(11 * time.Minute)
	rl.Allow("active")
	rl.evictIdle(10 * time.Minute)

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.buckets["idle"]; ok {
		t.Fatalf("idle bucket not evicted")
	}
	if _, ok := rl.buckets["active"]; !ok {
		t.Fatalf("active bucket evicted")
	}
}

func TestMiddlewareRejectsAfterBudget(t *testing.T) {
	t.Parallel()

	rl := New(Config{RequestsPerMinute: 2})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware(func(c *fiber.Ctx) string { return c.Get("X-Client") }))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Client", "owner-1")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		codes = append(codes, resp.StatusCode)
		if i == 2 && resp.Header.Get("Retry-After") == "" {
			t.Fatalf("missing Retry-After header")
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != fiber.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Client", "owner-2")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("second client should pass: %v %v", resp.StatusCode, err)
	}
}
