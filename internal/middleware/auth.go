package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"fruition-api/internal/model"
	"fruition-api/internal/service"
	"fruition-api/pkg/apierror"
)

// IdentityKey is the key for storing the caller identity in request context.
const IdentityKey contextKey = "identity"

// Identity headers set by the upstream authentication layer.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderToken     = "X-Token"
	HeaderAdminKey  = "X-Admin-Key"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	TokenService *service.TokenService
	// APIKeys guards every authenticated route. Empty disables the key check.
	APIKeys []string
}

// NewAuthMiddleware resolves the caller identity. A stream token (X-Token
// header, or token query parameter on GET) carries its own identity;
// otherwise the API key is checked and the identity headers are trusted.
// Requests without X-User-ID pass through anonymously; handlers that need
// an identity reject them.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check endpoints
			if r.URL.Path == "/api/v1/health" || r.URL.Path == "/api/v1/ready" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(HeaderToken)
			if token == "" && r.Method == http.MethodGet {
				token = r.URL.Query().Get("token")
			}
			if token != "" && cfg.TokenService != nil {
				ticket, err := cfg.TokenService.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ticket.Identity())))
				return
			}

			if len(cfg.APIKeys) > 0 {
				apiKey := bearerOrHeader(r, "X-API-Key")
				if apiKey == "" {
					writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or X-API-Key header."))
					return
				}
				if !isValidKey(apiKey, cfg.APIKeys) {
					writeError(w, apierror.Unauthorized("Invalid API key"))
					return
				}
			}

			ctx := r.Context()
			if userID := strings.TrimSpace(r.Header.Get(HeaderUserID)); userID != "" {
				ctx = WithIdentity(ctx, model.Identity{
					UserID:      userID,
					Email:       strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
					DisplayName: strings.TrimSpace(r.Header.Get(HeaderUserName)),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminMiddleware guards administrative routes with X-Admin-Key. With
// no keys configured every request is rejected.
func NewAdminMiddleware(adminKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAdminKey)
			if key == "" || !isValidKey(key, adminKeys) {
				writeError(w, apierror.Forbidden("Admin key required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

func bearerOrHeader(r *http.Request, header string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if valid != "" && subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFromContext retrieves the caller identity from request context.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(model.Identity)
	return id, ok && id.UserID != ""
}
