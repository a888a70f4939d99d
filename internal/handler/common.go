package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"fruition-api/internal/middleware"
	"fruition-api/internal/model"
	"fruition-api/internal/notify"
	"fruition-api/internal/service"
	"fruition-api/pkg/apierror"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns the request validator shared by all handlers.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// sessionResolver opens the live session of the calling identity.
type sessionResolver struct {
	sessions *service.SessionManager
}

func (s sessionResolver) session(r *http.Request) (*service.Session, error) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return nil, service.ErrAnonymous
	}
	return s.sessions.Open(r.Context(), id, clientIP(r))
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, v *validator.Validate, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	if err := v.Struct(dst); err != nil {
		return apierror.FromValidation(err)
	}
	return nil
}

// toAPIError maps domain errors to API errors.
func toAPIError(err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, service.ErrAnonymous), errors.Is(err, service.ErrInvalidToken):
		return apierror.Unauthorized(err.Error())
	case errors.Is(err, service.ErrIdentityDisabled):
		return apierror.Forbidden(err.Error())
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrHouseholdNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, notify.ErrNotificationNotFound),
		errors.Is(err, model.ErrNotFound):
		return apierror.NotFound(err.Error())
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidItem),
		errors.Is(err, service.ErrNotInHousehold),
		errors.Is(err, service.ErrInvalidMemberID),
		errors.Is(err, service.ErrInvalidTimeZone),
		errors.Is(err, notify.ErrInvalidPermission):
		return apierror.BadRequest(err.Error())
	case errors.Is(err, model.ErrConflict):
		return apierror.Conflict("inventory changed, refresh and try again")
	}

	log.Printf("[Handler] Unexpected error: %v", err)
	return apierror.InternalError("")
}

// clientIP returns the first forwarded address or the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
