package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// ratePolicy binds a limit to the request attribute it is counted against.
type ratePolicy struct {
	limit  int
	window time.Duration
	keyFor func(*Router, *http.Request) string
}

var (
	// Login attempts are counted per client address, before any token exists.
	policyLogin  = ratePolicy{limit: 12, window: time.Minute, keyFor: func(_ *Router, req *http.Request) string { return clientAddressKey(req) }}
	policyRead   = ratePolicy{limit: 240, window: time.Minute, keyFor: (*Router).principalKey}
	policyWrite  = ratePolicy{limit: 60, window: time.Minute, keyFor: (*Router).principalKey}
	policyLookup = ratePolicy{limit: 120, window: time.Minute, keyFor: (*Router).principalKey}
	policyStream = ratePolicy{limit: 30, window: 30 * time.Second, keyFor: (*Router).principalKey}
)

// limited applies policy to next under the route label used for metrics.
func (r *Router) limited(route string, policy ratePolicy, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.limiter == nil || policy.limit <= 0 {
			next(w, req)
			return
		}
		key := policy.keyFor(r, req)
		if key == "" {
			key = clientAddressKey(req)
		}
		decision := r.limiter.Allow(key, policy.limit, policy.window)
		r.applyRateHeaders(w, policy.limit, decision)
		if decision.allowed {
			next(w, req)
			return
		}
		r.metrics.recordRateLimitHit(route, keyClass(key))
		writeKind(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
	}
}

// authenticated requires a valid token before the policy is consulted, so
// the counter can be keyed by principal.
func (r *Router) authenticated(route string, policy ratePolicy, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limited(route, policy, next))
}

func (r *Router) principalKey(req *http.Request) string {
	principal, ok := principalFromContext(req.Context())
	switch {
	case !ok:
		return ""
	case principal.IsAdmin():
		return "admin:" + principal.Username
	case principal.LoginID != "":
		return "login:" + principal.LoginID
	}
	return ""
}

func clientAddressKey(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// keyClass keeps metric cardinality low: "admin", "login" or "ip".
func keyClass(key string) string {
	if class, _, ok := strings.Cut(key, ":"); ok && class != "" {
		return class
	}
	return "unknown"
}

// memoryRateLimiter keeps one counter per key. Expired counters are dropped
// lazily every sweepEvery calls.
type memoryRateLimiter struct {
	mu         sync.Mutex
	counters   map[string]*windowCounter
	calls      int
	sweepEvery int
	now        func() time.Time
}

type windowCounter struct {
	hits  int
	until time.Time
}

// NewMemoryRateLimiter returns a process-local limiter.
func NewMemoryRateLimiter() RateLimiter {
	return &memoryRateLimiter{
		counters:   make(map[string]*windowCounter),
		sweepEvery: 1024,
		now:        time.Now,
	}
}

func (m *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls%m.sweepEvery == 0 {
		for k, c := range m.counters {
			if now.After(c.until) {
				delete(m.counters, k)
			}
		}
	}

	counter, ok := m.counters[key]
	if !ok || now.After(counter.until) {
		counter = &windowCounter{until: now.Add(window)}
		m.counters[key] = counter
	}
	if counter.hits >= limit {
		return rateDecision{allowed: false, count: counter.hits, windowEnd: counter.until}
	}
	counter.hits++
	return rateDecision{allowed: true, count: counter.hits, windowEnd: counter.until}
}

func (m *memoryRateLimiter) Close() {}
