package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"salonbook/internal/access"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const ContextIdentity = "identity"

// AuthMiddleware verifies the Bearer token and stores the caller's identity.
func AuthMiddleware(verifier *access.TokenVerifier, accessSvc *access.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "missing_authorization_header", "Sign in to continue.")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "invalid_authorization_header", "Expected a Bearer token.")
			return
		}

		userID, phone, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			unauthorized(c, "invalid_token", "Your session is invalid or has expired.")
			return
		}

		c.Set(ContextIdentity, accessSvc.WithPhone(userID, phone))
		c.Next()
	}
}

func identityFrom(c *gin.Context) access.Identity {
	id, _ := c.MustGet(ContextIdentity).(access.Identity)
	return id
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds a limiter per client IP.
type rateLimiterStore struct {
	limiters map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	idle     time.Duration
	mu       sync.Mutex
	now      func() time.Time
}

func newRateLimiterStore(rps float64, burst int) *rateLimiterStore {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &rateLimiterStore{
		limiters: make(map[string]*clientLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// getLimiter returns the limiter for ip and drops limiters idle for too long.
func (s *rateLimiterStore) getLimiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, cl := range s.limiters {
		if now.Sub(cl.lastSeen) > s.idle {
			delete(s.limiters, k)
		}
	}

	cl, ok := s.limiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(rps float64, burst int, logger zerolog.Logger) gin.HandlerFunc {
	store := newRateLimiterStore(rps, burst)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.getLimiter(ip).Allow() {
			logger.Warn().Str("ip", ip).Str("path", c.FullPath()).Msg("rate limit exceeded")
			writeError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Try again later.")
			return
		}
		c.Next()
	}
}

// RequestLogger logs each request through zerolog.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
