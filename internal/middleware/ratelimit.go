package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

const rateLimitWindow = time.Minute

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps a token bucket per client in process memory.
type MemoryLimiter struct {
	rpm     int
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func NewMemoryLimiter(rpm int) *MemoryLimiter {
	return &MemoryLimiter{rpm: rpm, clients: map[string]*clientLimiter{}}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.rpm <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	client, exists := l.clients[key]
	if !exists {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(rateLimitWindow/time.Duration(l.rpm)), l.rpm),
		}
		l.clients[key] = client
	}
	client.lastSeen = time.Now()
	l.gcLocked()

	return client.limiter.Allow(), nil
}

func (l *MemoryLimiter) gcLocked() {
	if len(l.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range l.clients {
		if client.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// RedisLimiter counts requests per client in fixed one-minute windows shared
// by every instance.
type RedisLimiter struct {
	client *redis.Client
	rpm    int
	prefix string
}

func NewRedisLimiter(client *redis.Client, rpm int) *RedisLimiter {
	return &RedisLimiter{client: client, rpm: rpm, prefix: "gamify:ratelimit"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		// NX keeps the window fixed and re-arms a key whose expiry was lost.
		pipe.ExpireNX(ctx, redisKey, rateLimitWindow)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("redis rate limit: %w", err)
	}

	count := incr.Val()
	return count <= int64(l.rpm), nil
}

type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware returns nil-safe middleware; a nil limiter lets
// every request through.
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := m.limiter.Allow(r.Context(), ClientIP(r))
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
		}

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP prefers proxy headers over the socket address.
func ClientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
