package ws

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 30 * time.Minute

// RateLimiter hands out one token bucket per key. Buckets that have not
// been used for a while are dropped.
type RateLimiter struct {
	limiters        *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond float64
	burst           int
}

// NewRateLimiter starts the bucket cache. Call the returned function to
// stop its expiry goroutine.
func NewRateLimiter(refillPerSecond float64, burst int) (*RateLimiter, func()) {
	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
	)
	go limiters.Start()

	return &RateLimiter{
		limiters:        limiters,
		refillPerSecond: refillPerSecond,
		burst:           burst,
	}, limiters.Stop
}

// Allow consumes a token for key, reporting false if none is available.
func (l *RateLimiter) Allow(key string) bool {
	item, _ := l.limiters.GetOrSet(key, rate.NewLimiter(rate.Limit(l.refillPerSecond), l.burst))
	return item.Value().Allow()
}

func ipKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ip: %s", host)
}

func playerKey(id string) string {
	return fmt.Sprintf("player: %.64s", id)
}
