package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"canvas-backend/pkg/auth"
	pkgerrors "canvas-backend/pkg/errors"
)

// AuthConfig selects how callers are identified
type AuthConfig struct {
	// Validator checks bearer tokens. Nil disables token checks, which is
	// only allowed outside production.
	Validator *auth.JWTValidator

	// TrustGateway accepts the X-User-ID header set by an API Gateway JWT
	// authorizer. Only enable behind API Gateway.
	TrustGateway bool

	// DevUserID is the identity used when no validator is configured
	DevUserID string
}

// Authenticate resolves the caller and stores an auth.UserContext on the
// request context
func Authenticate(cfg AuthConfig, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(cfg, r)
			if err != nil {
				logger.Debug("Authentication failed",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError(unauthorizedMessage(err)))
				return
			}

			ctx := auth.SetUserInContext(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveUser(cfg AuthConfig, r *http.Request) (*auth.UserContext, error) {
	if cfg.TrustGateway && r.Header.Get("X-API-Gateway-Authorized") == "true" {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			return nil, auth.ErrInvalidClaims
		}
		roles := []string{"authenticated"}
		if raw := r.Header.Get("X-User-Roles"); raw != "" {
			roles = strings.Split(raw, ",")
		}
		return &auth.UserContext{UserID: userID, Email: r.Header.Get("X-User-Email"), Roles: roles}, nil
	}

	if cfg.Validator == nil {
		return &auth.UserContext{UserID: cfg.DevUserID, Roles: []string{"authenticated"}}, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, auth.ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, auth.ErrInvalidToken
	}

	claims, err := cfg.Validator.ValidateToken(parts[1])
	if err != nil {
		return nil, err
	}
	return &auth.UserContext{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

func unauthorizedMessage(err error) string {
	switch {
	case err == auth.ErrMissingToken:
		return "Missing authorization header"
	case err == auth.ErrExpiredToken:
		return "Token has expired"
	case err == auth.ErrInvalidSignature:
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}
