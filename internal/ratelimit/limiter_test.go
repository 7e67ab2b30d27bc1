// SPDX-License-Identifier: MIT

package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return New(cfg, WithClock(clk.now)), clk
}

func TestLimiterBurstAndRefill(t *testing.T) {
	l, clk := newTestLimiter(DefaultLoginConfig())

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("203.0.113.1") {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
	assert.Equal(t, 5*time.Second, l.RetryAfter("203.0.113.1"))

	// other clients have their own bucket
	assert.True(t, l.Allow("203.0.113.2"))

	clk.advance(5 * time.Second)
	assert.True(t, l.Allow("203.0.113.1"))
	assert.False(t, l.Allow("203.0.113.1"))
}

func TestLimiterForgetsIdleKeys(t *testing.T) {
	l, clk := newTestLimiter(Config{Scope: "test", Rate: 1, Burst: 1, IdleTTL: time.Minute})

	for _, ip := range []string{"a", "b", "c"} {
		l.Allow(ip)
	}
	require.Equal(t, 3, l.Len())

	clk.advance(30 * time.Second)
	l.Allow("a")
	assert.Equal(t, 3, l.Len(), "cleanup runs at most once per ttl")

	clk.advance(40 * time.Second)
	l.Allow("d")
	assert.Equal(t, 2, l.Len(), "only a and d were seen within the ttl")
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(Config{Scope: "test", Rate: 0.1, Burst: 2})
	h := l.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "10", last.Header().Get("Retry-After"))
}

func TestMiddlewareIgnoresSpoofedForwardedFor(t *testing.T) {
	l, _ := newTestLimiter(Config{Scope: "test", Rate: 0.1, Burst: 2})
	h := l.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	limited := 0
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 4, limited, "one socket shares one bucket whatever the header says")
	assert.Equal(t, 1, l.Len())
}

func TestMiddlewareTrustedProxyForwardsClient(t *testing.T) {
	trusted, err := ParseCIDRs([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	l, _ := newTestLimiter(Config{Scope: "test", Rate: 0.1, Burst: 1, TrustedProxies: trusted})
	h := l.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code, client)
	}
	assert.Equal(t, 2, l.Len())
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseCIDRs([]string{"10.0.0.0/8", "::1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "untrusted peer ignores X-Forwarded-For",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "untrusted peer ignores X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.2"},
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "trusted proxy, first X-Forwarded-For hop",
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.1 , 10.0.0.2"},
			remoteAddr: "10.0.0.1:12345",
			want:       "203.0.113.1",
		},
		{
			name:       "trusted proxy, X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.2"},
			remoteAddr: "[::1]:8080",
			want:       "203.0.113.2",
		},
		{
			name:       "trusted proxy without headers",
			headers:    map[string]string{},
			remoteAddr: "10.9.9.9:54321",
			want:       "10.9.9.9",
		},
		{
			name:       "remote addr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100",
			want:       "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			req.RemoteAddr = tt.remoteAddr

			assert.Equal(t, tt.want, ClientIP(req, trusted))
		})
	}
}

func TestParseCIDRs(t *testing.T) {
	nets, err := ParseCIDRs([]string{"10.0.0.0/8", " 192.0.2.7 ", "", "2001:db8::/32"})
	require.NoError(t, err)
	require.Len(t, nets, 3)
	assert.Equal(t, "192.0.2.7/32", nets[1].String())

	_, err = ParseCIDRs([]string{"proxy.local"})
	assert.Error(t, err)
}
