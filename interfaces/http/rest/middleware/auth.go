package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"scribe/pkg/auth"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// TokenValidator checks bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// AuthConfig wires the authentication middleware
type AuthConfig struct {
	Validator   TokenValidator
	IPLimiter   *auth.IPRateLimiter
	UserLimiter *auth.UserRateLimiter
	Errors      *pkgerrors.ErrorHandler
	Logger      *zap.Logger
	// Limit and Window are reported in 429 responses
	Limit  int
	Window string
}

// Authenticate validates the bearer token, applies the per-IP and per-user
// limits and stores the caller in the request context.
func Authenticate(cfg AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.IPLimiter != nil {
				allowed, _ := cfg.IPLimiter.Allow(r.Context(), getClientIP(r))
				if !allowed {
					cfg.Errors.Handle(w, r, pkgerrors.NewRateLimitError(cfg.Limit, cfg.Window))
					return
				}
			}

			token := extractToken(r)
			if token == "" {
				cfg.Errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing authorization token"))
				return
			}

			claims, err := cfg.Validator.ValidateToken(token)
			if err != nil {
				cfg.Logger.Debug("Token rejected",
					zap.Error(err),
					zap.String("remoteAddr", r.RemoteAddr),
				)
				cfg.Errors.Handle(w, r, pkgerrors.NewUnauthorizedError(tokenErrorMessage(err)))
				return
			}

			if cfg.UserLimiter != nil {
				allowed, _ := cfg.UserLimiter.Allow(r.Context(), claims.UserID)
				if !allowed {
					cfg.Errors.Handle(w, r, pkgerrors.NewRateLimitError(cfg.Limit, cfg.Window))
					return
				}
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
				Roles:  claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitByIP applies the per-IP limit to public routes
func RateLimitByIP(limiter *auth.IPRateLimiter, errs *pkgerrors.ErrorHandler, limit int, window string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed, _ := limiter.Allow(r.Context(), getClientIP(r)); !allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(limit, window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole creates middleware that requires one of the given roles
func RequireRole(errs *pkgerrors.ErrorHandler, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.GetUserFromContext(r.Context())
			if err != nil {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("authentication required"))
				return
			}

			for _, role := range roles {
				if user.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			errs.Handle(w, r, pkgerrors.NewForbiddenError("insufficient permissions"))
		})
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}

// extractToken reads the bearer token. EventSource clients cannot set
// headers, so the progress stream also accepts ?token=.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
