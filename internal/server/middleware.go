package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/fenggwsx/NovaMind/internal/auth"
	"github.com/fenggwsx/NovaMind/internal/config"
	"github.com/fenggwsx/NovaMind/internal/metrics"
)

const claimsKey = "claims"

func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// allowCORS lets the browser frontend call the API from another origin.
func allowCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

const (
	// limiterIdleTTL is how long an unused client bucket is kept.
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per client key and forgets keys
// that stay idle longer than limiterIdleTTL.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	cfg       config.RateLimitConfig
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterPool(cfg config.RateLimitConfig) *limiterPool {
	return &limiterPool{m: make(map[string]*limiterEntry), cfg: cfg, now: time.Now}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	p.sweepLocked(now)
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	rps := p.cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := p.cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	p.m[key] = &limiterEntry{limiter: l, lastSeen: now}
	return l
}

// sweepLocked drops idle entries, at most once per limiterSweepInterval.
func (p *limiterPool) sweepLocked(now time.Time) {
	if now.Sub(p.lastSweep) < limiterSweepInterval {
		return
	}
	p.lastSweep = now
	for key, e := range p.m {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(p.m, key)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (a *App) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.limiters.Allow(c.ClientIP()) {
			a.logger.WarnContext(c.Request.Context(), "rate limited", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)
			abortWithError(c, http.StatusTooManyRequests, "Too many requests, please slow down")
			return
		}
		c.Next()
	}
}

// bearerClaims verifies an optional bearer token. Requests without one pass
// through unchanged.
func (a *App) bearerClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid authorization header")
			return
		}
		claims, err := a.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			a.logger.InfoContext(c.Request.Context(), "token rejected", "error", err, "client_ip", c.ClientIP())
			abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// authorizeOwner rejects a request whose token belongs to someone other than userID.
// A token matches when userID is either its user id or its email.
func (a *App) authorizeOwner(c *gin.Context, userID string) bool {
	value, ok := c.Get(claimsKey)
	if !ok {
		return true
	}
	claims := value.(*auth.Claims)
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == claims.UserID || strings.EqualFold(userID, claims.Email) {
		return true
	}
	abortWithError(c, http.StatusUnauthorized, "Token does not match userId")
	return false
}
