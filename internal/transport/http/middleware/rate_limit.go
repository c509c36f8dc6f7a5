package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/ecotrack-accounts/internal/core/port"
	appLogger "github.com/arklim/ecotrack-accounts/internal/infra/logger"
)

const (
	rateLimitProblemType  = "https://ecotrack.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// IdentifierFunc extracts the value a rule is scoped to. Returning false skips the rule.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule allows Limit requests per identifier within a sliding Window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces RateLimitRules against a shared store. It fails open when the
// store errors.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// ProblemDetails is the RFC 9457 body returned with 429 responses.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// window is the state of one rule for the current request.
type window struct {
	rule      string
	allowed   bool
	limit     int
	remaining int
	reset     time.Time
	now       time.Time
}

func (w window) retryAfterSeconds() int {
	return max(int(math.Ceil(w.reset.Sub(w.now).Seconds())), 0)
}

// tighter reports whether w should be advertised instead of other: blocked beats
// allowed, then fewer remaining, then earlier reset.
func (w window) tighter(other window) bool {
	if w.allowed != other.allowed {
		return !w.allowed
	}
	if w.remaining != other.remaining {
		return w.remaining < other.remaining
	}
	return w.reset.Before(other.reset)
}

// NewRateLimiter builds a reusable rate limiter middleware helper. A nil store lets
// every request through.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule to the client IP as resolved by gin.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules. Rules without an
// identifier, limit or window are ignored.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var advertised *window

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			w, err := rl.hit(c, rule, identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskIP(identifier)),
					zap.Error(err),
				)
				continue
			}

			if !w.allowed {
				rl.logger.Info("rate limit exceeded",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskIP(identifier)),
					zap.String("request_id", appLogger.RequestIDFromContext(c.Request.Context())),
				)
				setRateLimitHeaders(c, w)
				abortRateLimited(c, w)
				return
			}

			if advertised == nil || w.tighter(*advertised) {
				advertised = &w
			}
		}

		if advertised != nil {
			setRateLimitHeaders(c, *advertised)
		}

		c.Next()
	}
}

func (rl *RateLimiter) hit(c *gin.Context, rule RateLimitRule, identifier string, now time.Time) (window, error) {
	key := rule.Name + ":" + identifier
	decision, err := rl.store.Hit(c.Request.Context(), key, rule.Limit, rule.Window, now)
	if err != nil {
		return window{}, err
	}

	reset := now.Add(rule.Window)
	if !decision.Oldest.IsZero() {
		reset = decision.Oldest.Add(rule.Window)
	}

	return window{
		rule:      rule.Name,
		allowed:   decision.Allowed,
		limit:     rule.Limit,
		remaining: max(rule.Limit-decision.Count, 0),
		reset:     reset,
		now:       now,
	}, nil
}

func setRateLimitHeaders(c *gin.Context, w window) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(w.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(w.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(w.reset.Unix(), 10))
	if !w.allowed {
		h.Set("Retry-After", strconv.Itoa(w.retryAfterSeconds()))
	}
}

func abortRateLimited(c *gin.Context, w window) {
	retry := w.retryAfterSeconds()

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retry),
		Instance:   instance,
		RetryAfter: retry,
		TraceID:    GetTraceID(c),
		Extensions: map[string]any{"rule": w.rule},
	})
}
