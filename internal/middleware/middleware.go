// Package middleware provides HTTP middleware for the routing server.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/civiclens/routing-server/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// SessionClaims is the JWT payload minted by the identity collaborator.
// It carries the principal plus the Google OAuth material the mail
// dispatcher needs.
type SessionClaims struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenExpiry  int64  `json:"tokenExpiry,omitempty"` // unix seconds
	jwt.RegisteredClaims
}

// StructuredLogger returns a middleware that logs HTTP requests with zap
func StructuredLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", r.Header.Get("X-Request-ID")),
			)
		})
	}
}

// RequireAuth validates the session JWT and attaches the authenticated
// Principal to the request context.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error": "Authorization required"}`, http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			var claims SessionClaims
			token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})

			if err != nil || !token.Valid {
				http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			principal := models.Principal{
				ID:           claims.Subject,
				Name:         claims.Name,
				Email:        claims.Email,
				AccessToken:  claims.AccessToken,
				RefreshToken: claims.RefreshToken,
			}
			if principal.ID == "" {
				principal.ID = claims.Email
			}
			if claims.TokenExpiry > 0 {
				principal.TokenExpiry = time.Unix(claims.TokenExpiry, 0)
			}
			if principal.Email == "" {
				http.Error(w, `{"error": "Token missing principal identity"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated principal attached by
// RequireAuth.
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// WithPrincipal attaches a principal to a context (test helper).
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// RateLimit implements a simple in-memory rate limiter using sliding window
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	type client struct {
		count    int
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	// Cleanup stale entries every 5 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.lastSeen) > 2*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Key by remote address so one client cannot starve the rest.
			key := r.RemoteAddr
			if idx := strings.LastIndex(key, ":"); idx > 0 {
				key = key[:idx]
			}

			mu.Lock()
			c, exists := clients[key]
			if !exists {
				clients[key] = &client{count: 1, lastSeen: time.Now()}
				mu.Unlock()
				next.ServeHTTP(w, r)
				return
			}

			if time.Since(c.lastSeen) > time.Minute {
				c.count = 1
				c.lastSeen = time.Now()
			} else {
				c.count++
			}

			if c.count > requestsPerMinute {
				mu.Unlock()
				http.Error(w, `{"error": "Rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
