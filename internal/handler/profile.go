package handler

import (
	"net/http"

	"fruition-api/internal/model"
	"fruition-api/internal/service"
	"fruition-api/pkg/response"

	"github.com/go-playground/validator/v10"
)

// ProfileHandler handles profile, session and household requests.
type ProfileHandler struct {
	sessionResolver
	households *service.HouseholdService
	validate   *validator.Validate
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(sessions *service.SessionManager, households *service.HouseholdService, validate *validator.Validate) *ProfileHandler {
	return &ProfileHandler{
		sessionResolver: sessionResolver{sessions: sessions},
		households:      households,
		validate:        validate,
	}
}

// SettingsRequest is the body of PUT /profile/settings.
type SettingsRequest struct {
	TimeZone  string `json:"time_zone" validate:"omitempty,max=64"`
	HourCycle string `json:"hour_cycle" validate:"omitempty,oneof=h12 h23"`
}

// CreateHouseholdRequest is the body of POST /household.
type CreateHouseholdRequest struct {
	Name string `json:"name" validate:"max=60"`
}

// JoinHouseholdRequest is the body of POST /household/join.
type JoinHouseholdRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

// ProfileResponse is the caller's profile and live scope.
type ProfileResponse struct {
	Profile model.UserProfile `json:"profile"`
	Scope   string            `json:"scope"`
}

// HouseholdResponse is a household with its members.
type HouseholdResponse struct {
	Household *model.Household `json:"household"`
	Members   []MemberSummary  `json:"members"`
	Scope     string           `json:"scope"`
}

// MemberSummary is the public view of a household member.
type MemberSummary struct {
	MemberID    int64  `json:"member_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, ProfileResponse{Profile: s.Profile(), Scope: s.Path()})
}

// UpdateSettings handles PUT /api/v1/profile/settings
func (h *ProfileHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	var req SettingsRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	p, err := s.UpdateSettings(r.Context(), model.Settings{TimeZone: req.TimeZone, HourCycle: req.HourCycle})
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, ProfileResponse{Profile: p, Scope: s.Path()})
}

// Logout handles POST /api/v1/session/logout
func (h *ProfileHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	h.sessions.Close(s.UserID())
	response.NoContent(w)
}

// GetHousehold handles GET /api/v1/household
func (h *ProfileHandler) GetHousehold(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	p := s.Profile()
	if p.HouseholdID == "" {
		response.Error(w, toAPIError(service.ErrNotInHousehold))
		return
	}
	household, members, err := h.households.Get(r.Context(), p.HouseholdID)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, householdResponse(household, members, s.Path()))
}

// CreateHousehold handles POST /api/v1/household
func (h *ProfileHandler) CreateHousehold(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	var req CreateHouseholdRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	household, err := s.CreateHousehold(r.Context(), req.Name)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.Created(w, householdResponse(household, []model.UserProfile{s.Profile()}, s.Path()))
}

// JoinHousehold handles POST /api/v1/household/join
func (h *ProfileHandler) JoinHousehold(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	var req JoinHouseholdRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	household, err := s.JoinHousehold(r.Context(), req.Code)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	_, members, err := h.households.Get(r.Context(), household.ID)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, householdResponse(household, members, s.Path()))
}

// LeaveHousehold handles POST /api/v1/household/leave
func (h *ProfileHandler) LeaveHousehold(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	if err := s.LeaveHousehold(r.Context()); err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, ProfileResponse{Profile: s.Profile(), Scope: s.Path()})
}

func householdResponse(h *model.Household, members []model.UserProfile, scope string) HouseholdResponse {
	out := make([]MemberSummary, 0, len(members))
	for _, m := range members {
		out = append(out, MemberSummary{MemberID: m.MemberID, DisplayName: m.DisplayName})
	}
	return HouseholdResponse{Household: h, Members: out, Scope: scope}
}
