package handler

import (
	"net/http"
	"strings"
	"time"

	"fruition-api/internal/model"
	"fruition-api/internal/service"
	"fruition-api/pkg/apierror"
	"fruition-api/pkg/response"
	"fruition-api/pkg/uid"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// InventoryHandler handles inventory-related HTTP requests.
type InventoryHandler struct {
	sessionResolver
	validate *validator.Validate
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(sessions *service.SessionManager, validate *validator.Validate) *InventoryHandler {
	return &InventoryHandler{
		sessionResolver: sessionResolver{sessions: sessions},
		validate:        validate,
	}
}

// AddItemRequest is the body of POST /inventory.
type AddItemRequest struct {
	Name     string `json:"name" validate:"required,max=80"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=10000"`
	Unit     string `json:"unit" validate:"max=20"`
	// PurchaseDate is a calendar day in the user's time zone; empty means today.
	PurchaseDate string `json:"purchase_date" validate:"omitempty,datetime=2006-01-02"`
}

// AmountRequest is the body of the consume and waste operations.
type AmountRequest struct {
	Amount int    `json:"amount" validate:"required,min=1"`
	Reason string `json:"reason" validate:"max=80"`
}

// InventoryResponse is the published list of the caller's scope.
type InventoryResponse struct {
	Scope string                `json:"scope"`
	Items []model.InventoryItem `json:"items"`
	Error string                `json:"error,omitempty"`
}

// List handles GET /api/v1/inventory
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	resp := InventoryResponse{Scope: s.Path(), Items: s.Inventory().Items()}
	if err := s.SubscriptionErr(); err != nil {
		resp.Error = err.Error()
	}
	response.OK(w, resp)
}

// Add handles POST /api/v1/inventory
func (h *InventoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	var req AddItemRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	in := model.NewItem{Name: strings.TrimSpace(req.Name), Quantity: req.Quantity, Unit: req.Unit}
	if req.PurchaseDate != "" {
		day, err := time.ParseInLocation("2006-01-02", req.PurchaseDate, s.Location())
		if err != nil {
			response.Error(w, apierror.BadRequest("purchase_date must be YYYY-MM-DD"))
			return
		}
		in.PurchaseDate = day
	}

	item, err := s.AddItem(r.Context(), in)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.Created(w, item)
}

// Remove handles DELETE /api/v1/inventory/{id}
func (h *InventoryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	id, err := itemID(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	if err := s.RemoveItem(r.Context(), id); err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.NoContent(w)
}

// Consume handles POST /api/v1/inventory/{id}/consume
func (h *InventoryHandler) Consume(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	id, err := itemID(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	var req AmountRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	event, err := s.Consume(r.Context(), id, req.Amount)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, event)
}

// Waste handles POST /api/v1/inventory/{id}/waste
func (h *InventoryHandler) Waste(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	id, err := itemID(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	var req AmountRequest
	if err := decode(r, h.validate, &req); err != nil {
		response.Error(w, err)
		return
	}

	event, err := s.Waste(r.Context(), id, req.Amount, req.Reason)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, event)
}

// itemID returns the {id} URL parameter. Item ids are UUIDs; anything else
// cannot name an item.
func itemID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if !uid.IsValid(id) {
		return "", service.ErrItemNotFound
	}
	return id, nil
}
