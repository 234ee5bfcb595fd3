package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"zapihook/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// MAX_TRACKED_SOURCES limita quantos IPs o guard acompanha ao mesmo tempo.
const MAX_TRACKED_SOURCES = 4096

const DEFAULT_RATE_LIMIT_PER_MINUTE = 120
const DEFAULT_BODY_LIMIT_BYTES = 256 * 1024

var (
	ErrRateLimited     = errors.New("too_many_requests")
	ErrPayloadTooLarge = errors.New("payload_too_large")
)

// RateLimitError carries how long the source should wait. It matches
// ErrRateLimited with errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

type sourceLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IngressGuard rejects webhook calls before any parsing: a token bucket per
// source and a cap on the body size.
type IngressGuard struct {
	perMinute int
	maxBytes  int64
	clock     clockwork.Clock

	mu      sync.Mutex
	sources map[string]*sourceLimiter
}

func NewIngressGuard(perMinute int, maxBytes int64, clock clockwork.Clock) *IngressGuard {
	if perMinute <= 0 {
		perMinute = DEFAULT_RATE_LIMIT_PER_MINUTE
	}
	if maxBytes <= 0 {
		maxBytes = DEFAULT_BODY_LIMIT_BYTES
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IngressGuard{
		perMinute: perMinute,
		maxBytes:  maxBytes,
		clock:     clock,
		sources:   make(map[string]*sourceLimiter),
	}
}

// Admit decide se a requisição entra. bodyBytes < 0 significa tamanho
// desconhecido (chunked); nesse caso o corte fica com o MaxBytesReader.
func (g *IngressGuard) Admit(source string, bodyBytes int64) error {
	now := g.clock.Now()

	g.mu.Lock()
	entry, ok := g.sources[source]
	if !ok {
		if len(g.sources) >= MAX_TRACKED_SOURCES {
			g.prune(now)
		}
		entry = &sourceLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(g.perMinute)/60), g.perMinute),
		}
		g.sources[source] = entry
	}
	entry.lastSeen = now
	reservation := entry.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
	}
	g.mu.Unlock()

	if delay > 0 {
		return &RateLimitError{RetryAfter: delay}
	}
	if bodyBytes > g.maxBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

// prune must be called with mu held. Sources idle for a minute have a full
// bucket again, so dropping them loses nothing.
func (g *IngressGuard) prune(now time.Time) {
	for k, e := range g.sources {
		if now.Sub(e.lastSeen) >= time.Minute {
			delete(g.sources, k)
		}
	}
	for len(g.sources) >= MAX_TRACKED_SOURCES {
		for k := range g.sources {
			delete(g.sources, k)
			break
		}
	}
}

func (g *IngressGuard) MaxBytes() int64 {
	return g.maxBytes
}

// Handler adapta o guard para o gin. Depois de admitida, o corpo fica
// limitado a MaxBytes também durante a leitura.
func (g *IngressGuard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := g.Admit(c.ClientIP(), c.Request.ContentLength)

		var limited *RateLimitError
		switch {
		case errors.As(err, &limited):
			metrics.WebhookRequests.WithLabelValues("rate_limited").Inc()
			seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": ErrRateLimited.Error()})
			return
		case errors.Is(err, ErrPayloadTooLarge):
			metrics.WebhookRequests.WithLabelValues("payload_too_large").Inc()
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": ErrPayloadTooLarge.Error()})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, g.maxBytes)
		c.Next()
	}
}
