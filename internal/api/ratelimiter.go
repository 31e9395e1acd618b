package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter grants requests per client key. When a request is refused it
// reports how long the client should wait.
type rateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// minIdleTTL is the shortest time a client's bucket is kept after its last request.
const minIdleTTL = time.Minute

// clientLimiter keeps one token bucket per client, the way the hosted
// ProvStore throttles each API user separately. Buckets idle for longer than
// it takes them to refill are dropped, since a fresh bucket behaves the same.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(ratePerSecond float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	idleTTL := minIdleTTL
	if ratePerSecond > 0 {
		if refill := time.Duration(float64(burst) / ratePerSecond * float64(time.Second)); refill > idleTTL {
			idleTTL = refill
		}
	}
	return &clientLimiter{
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		buckets: make(map[string]*clientBucket),
	}
}

func (c *clientLimiter) Allow(key string) (bool, time.Duration) {
	now := c.now()
	bucket := c.bucket(key, now)

	reservation := bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (c *clientLimiter) bucket(key string, now time.Time) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= c.idleTTL {
		c.sweep(now)
	}

	entry, ok := c.buckets[key]
	if !ok {
		entry = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweep drops idle buckets. Callers hold c.mu.
func (c *clientLimiter) sweep(now time.Time) {
	for key, entry := range c.buckets {
		if now.Sub(entry.lastSeen) >= c.idleTTL {
			delete(c.buckets, key)
		}
	}
	c.lastSweep = now
}

func (c *clientLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// clientKey identifies the caller by API user, falling back to the remote host.
func clientKey(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, authorizationScheme) {
		credential := strings.TrimSpace(strings.TrimPrefix(header, authorizationScheme))
		if user, _, ok := strings.Cut(credential, ":"); ok && user != "" {
			return "user:" + user
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

func retryAfterSeconds(wait time.Duration) string {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// rateLimitMiddleware answers 429 once a client's request budget is spent.
func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, wait := limiter.Allow(clientKey(r))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", retryAfterSeconds(wait))
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
