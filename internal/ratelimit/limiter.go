// SPDX-License-Identifier: MIT

// Package ratelimit throttles credential-guessing endpoints per client IP.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cinegate",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"scope"},
)

// Config holds rate limiting configuration
type Config struct {
	Scope string     // metric label, e.g. "login"
	Rate  rate.Limit // tokens per second per key
	Burst int

	// Keys idle longer than IdleTTL are forgotten.
	IdleTTL time.Duration

	// Forwarding headers are honoured only for peers inside these networks.
	TrustedProxies []*net.IPNet
}

// DefaultLoginConfig allows a burst of 5 attempts, then one every 5 seconds.
func DefaultLoginConfig() Config {
	return Config{
		Scope:   "login",
		Rate:    0.2,
		Burst:   5,
		IdleTTL: 10 * time.Minute,
	}
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	config Config
	now    func() time.Time

	mu          sync.Mutex
	keys        map[string]*entry
	lastCleanup time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now as the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a new rate limiter with the given config
func New(config Config, opts ...Option) *Limiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	l := &Limiter{
		config: config,
		now:    time.Now,
		keys:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup = l.now()
	return l
}

// Allow consumes a token for key and reports whether the request may proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	e, ok := l.keys[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.config.Rate, l.config.Burst)}
		l.keys[key] = e
	}
	e.lastSeen = now

	if !e.lim.AllowN(now, 1) {
		rateLimitExceeded.WithLabelValues(l.config.Scope).Inc()
		return false
	}
	return true
}

// RetryAfter estimates how long key has to wait for the next token.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.keys[key]
	if !ok {
		return 0
	}
	now := l.now()
	r := e.lim.ReserveN(now, 1)
	defer r.CancelAt(now)
	return r.DelayFrom(now)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// cleanupLocked forgets idle keys at most once per IdleTTL.
func (l *Limiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.config.IdleTTL {
		return
	}
	for k, e := range l.keys {
		if now.Sub(e.lastSeen) >= l.config.IdleTTL {
			delete(l.keys, k)
		}
	}
	l.lastCleanup = now
}

// Middleware rejects requests over the per-IP limit with reject. A
// Retry-After header is set before reject runs.
func (l *Limiter) Middleware(reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, l.config.TrustedProxies)
			if !l.Allow(ip) {
				secs := int(l.RetryAfter(ip).Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the address requests are keyed on. X-Forwarded-For and
// X-Real-IP are only read when the direct peer is a trusted proxy; otherwise
// the socket address wins so clients cannot pick their own bucket.
func ClientIP(r *http.Request, trusted []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}

	// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return host
}

func isTrusted(host string, trusted []*net.IPNet) bool {
	if len(trusted) == 0 {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseCIDRs parses CIDR or bare IP entries. A bare IP becomes a /32 or /128
// network; blank entries are skipped.
func ParseCIDRs(entries []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, raw := range entries {
		e := strings.TrimSpace(raw)
		if e == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			out = append(out, n)
			continue
		}
		ip := net.ParseIP(e)
		if ip == nil {
			return nil, fmt.Errorf("invalid proxy entry %q (must be CIDR or IP)", e)
		}
		bits := 128
		if v4 := ip.To4(); v4 != nil {
			ip, bits = v4, 32
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out, nil
}
