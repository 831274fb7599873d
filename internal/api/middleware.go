package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"chefia/internal/apperrors"
	"chefia/internal/observability"
)

const sessionKey = "session_id"

// requireSession authenticates the request by its session token, taken from
// the Authorization header or, for websockets, the token query parameter.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				s.fail(c, apperrors.Unauthorized("use 'Authorization: Bearer <token>'"))
				return
			}
			token = strings.TrimSpace(parts[1])
		} else {
			token = c.Query("token")
		}
		if token == "" {
			s.fail(c, apperrors.Unauthorized("session token required"))
			return
		}

		claims, err := s.issuer.Parse(token)
		if err != nil {
			s.fail(c, apperrors.Unauthorized("invalid session token"))
			return
		}

		c.Set(sessionKey, claims.Subject)
		c.Request = c.Request.WithContext(observability.WithSessionID(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// rateLimit bounds LLM calls per session.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := sessionID(c)
		if !s.limiter.Allow(id) {
			s.logger.Warn("rate limit exceeded", "session_id", id, "path", c.FullPath())
			s.fail(c, apperrors.RateLimited("too many model requests, try again in a minute"))
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := observability.FromContext(c.Request.Context(), s.logger)
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Writer.Status() >= 500 {
			logger.Error("request failed", attrs...)
		} else {
			logger.Debug("request handled", attrs...)
		}
	}
}

// SessionLimiter hands out one token bucket per session.
type SessionLimiter struct {
	limiters map[string]*rate.Limiter
	perMin   int
	mu       sync.Mutex
}

// NewSessionLimiter allows perMinute requests per session per minute. Zero
// or less disables limiting.
func NewSessionLimiter(perMinute int) *SessionLimiter {
	return &SessionLimiter{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMinute,
	}
}

func (l *SessionLimiter) Allow(id string) bool {
	if l.perMin <= 0 {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.limiters[id]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[id] = limiter

		time.AfterFunc(30*time.Minute, func() {
			l.mu.Lock()
			delete(l.limiters, id)
			l.mu.Unlock()
		})
	}
	l.mu.Unlock()

	return limiter.Allow()
}
