package handler

import (
	"errors"
	"log"
	"net/http"
	"runtime"
	"time"

	"fruition-api/internal/cache"
	"fruition-api/internal/model"
	"fruition-api/internal/repository"
	"fruition-api/internal/service"
	"fruition-api/pkg/apierror"
	"fruition-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store      repository.Store
	identity   *service.IdentityService
	sessions   *service.SessionManager
	feedBuffer *cache.RedisFeedBuffer
	reaper     *service.SessionReaper
	validate   *validator.Validate
	dbType     string
	startTime  time.Time
}

// AdminConfig holds the dependencies of the admin handler. FeedBuffer and
// Reaper may be nil.
type AdminConfig struct {
	Store      repository.Store
	Identity   *service.IdentityService
	Sessions   *service.SessionManager
	FeedBuffer *cache.RedisFeedBuffer
	Reaper     *service.SessionReaper
	Validate   *validator.Validate
	DBType     string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		store:      cfg.Store,
		identity:   cfg.Identity,
		sessions:   cfg.Sessions,
		feedBuffer: cfg.FeedBuffer,
		reaper:     cfg.Reaper,
		validate:   cfg.Validate,
		dbType:     cfg.DBType,
		startTime:  time.Now(),
	}
}

// MemberIDRequest is the body of PUT /admin/users/{id}/member-id.
type MemberIDRequest struct {
	MemberID int64 `json:"member_id" validate:"required,min=1"`
}

// DisabledRequest is the body of PUT /admin/users/{id}/disabled.
type DisabledRequest struct {
	Disabled *bool `json:"disabled" validate:"required"`
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["live_sessions"] = h.sessions.Count()

	if total, err := h.identity.TotalUsers(ctx); err == nil {
		stats["total_users"] = total
	}

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Feed buffer stats
	if h.feedBuffer != nil {
		count, err := h.feedBuffer.Count(ctx)
		if err == nil {
			stats["feed_buffer"] = map[string]interface{}{
				"pending_events": count,
				"status":         "connected",
			}
		} else {
			stats["feed_buffer"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["feed_buffer"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Store stats
	if h.store != nil {
		storeStats, err := h.store.GetStats(ctx)
		if err == nil {
			storeStats["status"] = "connected"
			stats["database"] = storeStats
		} else {
			stats["database"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// GetUser handles GET /api/v1/admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	p, err := h.identity.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, adminError(err))
		return
	}
	response.OK(w, p)
}

// SetMemberID handles PUT /api/v1/admin/users/{id}/member-id
func (h *AdminHandler) SetMemberID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req MemberIDRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	if err := h.identity.OverrideMemberID(r.Context(), userID, req.MemberID); err != nil {
		response.Error(w, adminError(err))
		return
	}
	h.reload(r, userID)
	response.OK(w, map[string]interface{}{"user_id": userID, "member_id": req.MemberID})
}

// SetDisabled handles PUT /api/v1/admin/users/{id}/disabled. Disabling
// also closes the live session of the user.
func (h *AdminHandler) SetDisabled(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req DisabledRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	if err := h.identity.SetDisabled(r.Context(), userID, *req.Disabled); err != nil {
		response.Error(w, adminError(err))
		return
	}
	if *req.Disabled {
		h.sessions.Close(userID)
	}
	response.OK(w, map[string]interface{}{"user_id": userID, "disabled": *req.Disabled})
}

// ReapSessions handles POST /api/v1/admin/sessions/reap
func (h *AdminHandler) ReapSessions(w http.ResponseWriter, r *http.Request) {
	if h.reaper == nil {
		response.Error(w, apierror.ServiceUnavailable("session reaper not configured"))
		return
	}
	closed := h.reaper.RunNow()
	response.OK(w, map[string]int{"closed": closed, "live": h.sessions.Count()})
}

// GetHealth handles GET /api/v1/admin/health
func (h *AdminHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *AdminHandler) reload(r *http.Request, userID string) {
	if s, ok := h.sessions.Get(userID); ok {
		if err := s.Reload(r.Context()); err != nil {
			log.Printf("[AdminHandler] Reload of live session %s failed: %v", userID, err)
		}
	}
}

// adminError maps a missing profile to a user-facing 404.
func adminError(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return apierror.NotFound("user not found")
	}
	return toAPIError(err)
}
