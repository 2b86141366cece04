package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"cms-backend/pkg/auth"
	pkgerrors "cms-backend/pkg/errors"
)

// Headers set by the Lambda entrypoint from the API Gateway authorizer
// context. They are trusted only when the router runs behind the gateway.
const (
	HeaderGatewayAuthorized = "X-API-Gateway-Authorized"
	HeaderUserID            = "X-User-ID"
	HeaderUserEmail         = "X-User-Email"
	HeaderUserRoles         = "X-User-Roles"
	HeaderUserTenants       = "X-User-Tenants"
)

// AuthConfig configures Authenticate.
type AuthConfig struct {
	Validator *auth.JWTValidator
	// TrustGateway accepts the caller identity forwarded by API Gateway
	// instead of a bearer token.
	TrustGateway bool
	Errors       *pkgerrors.ErrorHandler
	Logger       *zap.Logger
}

// Authenticate resolves the caller and stores it with auth.WithPrincipal.
func Authenticate(cfg AuthConfig) func(next http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var principal auth.Principal

			if cfg.TrustGateway && r.Header.Get(HeaderGatewayAuthorized) == "true" {
				p, ok := gatewayPrincipal(r)
				if !ok {
					cfg.Errors.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing user context from API Gateway"))
					return
				}
				principal = p
			} else {
				token := extractToken(r)
				if token == "" {
					cfg.Errors.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing authentication token"))
					return
				}

				claims, err := cfg.Validator.ValidateToken(token)
				if err != nil {
					logger.Debug("Invalid token",
						zap.Error(err),
						zap.String("path", r.URL.Path),
					)
					cfg.Errors.Handle(w, r, pkgerrors.NewUnauthorizedError(tokenMessage(err)))
					return
				}
				principal = claims.Principal()
			}

			logger.Debug("Request authenticated",
				zap.String("user_id", principal.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

func gatewayPrincipal(r *http.Request) (auth.Principal, bool) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return auth.Principal{}, false
	}
	return auth.Principal{
		UserID:  userID,
		Email:   r.Header.Get(HeaderUserEmail),
		Roles:   splitList(r.Header.Get(HeaderUserRoles)),
		Tenants: splitList(r.Header.Get(HeaderUserTenants)),
	}, true
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}

// extractToken reads the bearer token from the Authorization header, falling
// back to the auth_token cookie.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
