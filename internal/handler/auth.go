package handler

import (
	"net/http"
	"time"

	"fruition-api/internal/middleware"
	"fruition-api/internal/service"
	"fruition-api/pkg/apierror"
	"fruition-api/pkg/response"
)

// AuthHandler issues stream tokens for clients that cannot send identity
// headers on an event stream.
type AuthHandler struct {
	sessionResolver
	tokenService *service.TokenService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions *service.SessionManager, tokenService *service.TokenService) *AuthHandler {
	return &AuthHandler{
		sessionResolver: sessionResolver{sessions: sessions},
		tokenService:    tokenService,
	}
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GenerateToken handles POST /api/v1/session/token
func (h *AuthHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	// Opening the session rejects suspended accounts before a token exists.
	if _, err := h.session(r); err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())

	token, ticket, err := h.tokenService.GenerateToken(r.Context(), id)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		ExpiresIn: int(h.tokenService.TTL().Seconds()),
		ExpiresAt: ticket.ExpiresAt,
	})
}

// RevokeToken handles POST /api/v1/session/token/revoke
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.HeaderToken)
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RevokeToken(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}

// RefreshToken handles POST /api/v1/session/token/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.HeaderToken)
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	ticket, err := h.tokenService.RefreshToken(r.Context(), token)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		ExpiresIn: int(h.tokenService.TTL().Seconds()),
		ExpiresAt: ticket.ExpiresAt,
	})
}
