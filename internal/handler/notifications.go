package handler

import (
	"net/http"

	"fruition-api/internal/cache"
	"fruition-api/internal/model"
	"fruition-api/internal/notify"
	"fruition-api/internal/service"
	"fruition-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// NotificationHandler serves the notification history and alert permission.
type NotificationHandler struct {
	sessionResolver
	history  *notify.History
	kv       cache.Cache
	validate *validator.Validate
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(sessions *service.SessionManager, history *notify.History, kv cache.Cache, validate *validator.Validate) *NotificationHandler {
	return &NotificationHandler{
		sessionResolver: sessionResolver{sessions: sessions},
		history:         history,
		kv:              kv,
		validate:        validate,
	}
}

// NotificationList is the history with its unread count.
type NotificationList struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
	Permission    string               `json:"permission"`
}

// PermissionRequest is the body of PUT /notifications/permission.
type PermissionRequest struct {
	Permission string `json:"permission" validate:"required,oneof=default granted denied"`
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	ctx := r.Context()

	list, err := h.history.List(ctx, s.UserID())
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	perm, err := notify.Permission(ctx, h.kv, s.UserID())
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	response.OK(w, NotificationList{Notifications: list, Unread: unread, Permission: perm})
}

// Check handles POST /api/v1/notifications/check and runs the expiry
// check against the published list.
func (h *NotificationHandler) Check(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	raised, err := s.Watcher().Check(r.Context(), s.Inventory().Items())
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	if raised == nil {
		raised = []model.Notification{}
	}
	response.OK(w, map[string]interface{}{"raised": raised})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	if err := h.history.MarkRead(r.Context(), s.UserID(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.NoContent(w)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	if err := h.history.MarkAllRead(r.Context(), s.UserID()); err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.NoContent(w)
}

// Clear handles DELETE /api/v1/notifications
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	if err := h.history.Clear(r.Context(), s.UserID()); err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.NoContent(w)
}

// SetPermission handles PUT /api/v1/notifications/permission
func (h *NotificationHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	var req PermissionRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	if err := notify.SetPermission(r.Context(), h.kv, s.UserID(), req.Permission); err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, map[string]string{"permission": req.Permission})
}
