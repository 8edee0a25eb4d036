package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hidangan/delivery-api/internal/cart"
	"github.com/hidangan/delivery-api/internal/enum"
	"github.com/hidangan/delivery-api/internal/middleware"
	"github.com/hidangan/delivery-api/internal/pricing"
	"go.uber.org/zap"
)

// CartServicer defines the cart operations used by the handlers.
// Satisfied by *cart.Service.
type CartServicer interface {
	Get(ctx context.Context, ownerID string) (cart.View, error)
	AddItem(ctx context.Context, ownerID string, raw map[string]any) (cart.View, error)
	SetQuantity(ctx context.Context, ownerID string, index int, qty int32) (cart.View, error)
	RemoveItem(ctx context.Context, ownerID string, index int) (cart.View, error)
	Clear(ctx context.Context, ownerID string) error
}

// CartHandler serves the signed-in customer's cart.
type CartHandler struct {
	svc    CartServicer
	logger *zap.Logger
}

func NewCartHandler(svc CartServicer, logger *zap.Logger) *CartHandler {
	return &CartHandler{svc: svc, logger: orNop(logger)}
}

// RegisterRoutes registers cart endpoints. Expected to be mounted at /cart
// behind a CUSTOMER/USER role check.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{index}", h.SetQuantity)
	r.Delete("/items/{index}", h.RemoveItem)
}

type setQuantityRequest struct {
	Quantity *int32 `json:"quantity" validate:"required"`
}

type cartResponse struct {
	Items     []pricing.LineItem `json:"items"`
	ItemCount int32              `json:"item_count"`
	Subtotal  string             `json:"subtotal"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}

func toCartResponse(v cart.View) cartResponse {
	resp := cartResponse{
		Items:     v.Items,
		ItemCount: v.ItemCount,
		Subtotal:  v.Subtotal.StringFixed(2),
	}
	if resp.Items == nil {
		resp.Items = []pricing.LineItem{}
	}
	if !v.UpdatedAt.IsZero() {
		resp.UpdatedAt = &v.UpdatedAt
	}
	return resp
}

// Get handles GET /cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Get(r.Context(), owner)
	if err != nil {
		h.writeError(w, "get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// AddItem handles POST /cart/items. The body is a single raw line item in
// any of the accepted field spellings.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil || raw == nil {
		badRequest(w, "invalid request body")
		return
	}
	view, err := h.svc.AddItem(r.Context(), owner, raw)
	if err != nil {
		h.writeError(w, "add cart item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(view))
}

// SetQuantity handles PATCH /cart/items/{index}. Zero removes the line.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	var req setQuantityRequest
	if err := bindJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	view, err := h.svc.SetQuantity(r.Context(), owner, index, *req.Quantity)
	if err != nil {
		h.writeError(w, "set cart quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// RemoveItem handles DELETE /cart/items/{index}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	view, err := h.svc.RemoveItem(r.Context(), owner, index)
	if err != nil {
		h.writeError(w, "remove cart item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(w, r)
	if !ok {
		return
	}
	if err := h.svc.Clear(r.Context(), owner); err != nil {
		h.writeError(w, "clear cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidItem):
		badRequest(w, err.Error())
	case errors.Is(err, cart.ErrItemNotFound):
		middleware.WriteError(w, http.StatusNotFound, enum.ErrCodeNotFound, "cart item not found")
	default:
		h.logger.Error(op, zap.Error(err))
		internalError(w)
	}
}

func cartOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, "not authenticated")
		return "", false
	}
	return actor.UserID.String(), true
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		badRequest(w, "invalid item index")
		return 0, false
	}
	return index, true
}
