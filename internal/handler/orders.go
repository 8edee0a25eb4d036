package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/access"
	"github.com/hidangan/delivery-api/internal/database"
	"github.com/hidangan/delivery-api/internal/enum"
	"github.com/hidangan/delivery-api/internal/middleware"
	"github.com/hidangan/delivery-api/internal/service"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	GetOrder(ctx context.Context, actor access.Actor, id uuid.UUID) (*service.OrderDetail, error)
	ListOrders(ctx context.Context, actor access.Actor, q service.ListQuery) (*service.ListResult, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, req service.UpdateOrderRequest) (*service.OrderDetail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req service.UpdateStatusRequest) (*service.OrderDetail, error)
	AssignCourier(ctx context.Context, actor access.Actor, id, courierID uuid.UUID, version *int32) (*service.OrderDetail, error)
	AcknowledgeAlert(ctx context.Context, actor access.Actor, orderID uuid.UUID) error
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: orNop(logger)}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders behind Authenticate. Role checks for
// writes happen here so that reads stay open to every scoped role.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleRestaurant)).Put("/{id}", h.Update)
	r.With(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleRestaurant, enum.UserRoleCourier)).Patch("/{id}/status", h.UpdateStatus)
	r.With(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleRestaurant)).Patch("/{id}/courier", h.AssignCourier)
}

// RegisterAlertRoutes registers the alert acknowledgement endpoint.
// Expected to be mounted at /alerts.
func (h *OrderHandler) RegisterAlertRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleRestaurant)).Post("/{orderId}/ack", h.AckAlert)
}

// --- Request / Response types ---

type createOrderRequest struct {
	RestaurantID    string `json:"restaurantId" validate:"required,uuid"`
	ClienteNome     string `json:"clienteNome" validate:"required"`
	ClienteTelefone string `json:"clienteTelefone" validate:"required"`
	EnderecoEntrega string `json:"enderecoEntrega" validate:"required"`
	Itens           []any  `json:"itens" validate:"required,min=1"`
	ClienteEmail    string `json:"clienteEmail" validate:"omitempty,email"`
	CustomerID      string `json:"customerId" validate:"omitempty,uuid"`
	NumeroPedido    string `json:"numeroPedido" validate:"omitempty,max=64"`
	TaxaEntrega     any    `json:"taxaEntrega"`
	TaxaServico     any    `json:"taxaServico"`
	Desconto        any    `json:"desconto"`
	Observacoes     string `json:"observacoes"`
	Status          string `json:"status" validate:"omitempty,oneof=pending pending_payment"`
}

// updateOrderRequest: absent fields keep the stored values.
type updateOrderRequest struct {
	ClienteNome     *string `json:"clienteNome"`
	ClienteTelefone *string `json:"clienteTelefone"`
	EnderecoEntrega *string `json:"enderecoEntrega"`
	Observacoes     *string `json:"observacoes"`
	Itens           []any   `json:"itens"`
	TaxaEntrega     any     `json:"taxaEntrega"`
	TaxaServico     any     `json:"taxaServico"`
	Desconto        any     `json:"desconto"`
	Status          string  `json:"status"`
	Note            string  `json:"note"`
	Version         *int32  `json:"version"`
}

func (r updateOrderRequest) statusOnly() bool {
	return r.Status != "" &&
		r.ClienteNome == nil && r.ClienteTelefone == nil && r.EnderecoEntrega == nil &&
		r.Observacoes == nil && r.Itens == nil &&
		r.TaxaEntrega == nil && r.TaxaServico == nil && r.Desconto == nil
}

type updateStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Note    string `json:"note"`
	Version *int32 `json:"version"`
}

type assignCourierRequest struct {
	CourierID string `json:"courierId" validate:"required,uuid"`
	Version   *int32 `json:"version"`
}

type orderResponse struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"order_number"`
	RestaurantID    uuid.UUID         `json:"restaurant_id"`
	CustomerID      *uuid.UUID        `json:"customer_id"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	DeliveryAddress string            `json:"delivery_address"`
	CourierID       *uuid.UUID        `json:"courier_id"`
	Notes           *string           `json:"notes"`
	Items           json.RawMessage   `json:"items"`
	Subtotal        string            `json:"subtotal"`
	DeliveryFee     string            `json:"delivery_fee"`
	ServiceFee      string            `json:"service_fee"`
	Discount        string            `json:"discount"`
	Total           string            `json:"total"`
	Status          string            `json:"status"`
	Version         int32             `json:"version"`
	CreatedBy       *uuid.UUID        `json:"created_by"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	History         []historyResponse `json:"history,omitempty"`
}

type historyResponse struct {
	Status    string     `json:"status"`
	Note      *string    `json:"note"`
	ChangedBy *uuid.UUID `json:"changed_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// --- Handlers ---

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, "not authenticated")
		return
	}

	q, err := parseListQuery(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.svc.ListOrders(r.Context(), actor, q)
	if err != nil {
		h.writeServiceError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(result.Orders))
	for i, o := range result.Orders {
		resp[i] = toOrderResponse(o)
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	w.Header().Set("X-Page", strconv.Itoa(result.Page))
	w.Header().Set("X-Per-Page", strconv.Itoa(result.Limit))
	w.Header().Set("X-Total-Pages", strconv.Itoa(result.TotalPages()))
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := bindJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	svcReq := service.CreateOrderRequest{
		Actor:           actor,
		RestaurantID:    uuid.MustParse(req.RestaurantID),
		CustomerEmail:   req.ClienteEmail,
		CustomerName:    req.ClienteNome,
		CustomerPhone:   req.ClienteTelefone,
		DeliveryAddress: req.EnderecoEntrega,
		OrderNumber:     req.NumeroPedido,
		Notes:           req.Observacoes,
		Status:          req.Status,
		Items:           req.Itens,
		DeliveryFee:     req.TaxaEntrega,
		ServiceFee:      req.TaxaServico,
		Discount:        req.Desconto,
	}
	if req.CustomerID != "" {
		svcReq.CustomerID = uuid.MustParse(req.CustomerID)
	}

	detail, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		h.writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderDetailResponse(detail))
}

// Update handles PUT /orders/{id}. A body carrying only status (plus
// optional note and version) is a pure transition and never touches totals.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}

	var req updateOrderRequest
	if err := bindJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	var (
		detail *service.OrderDetail
		err    error
	)
	if req.statusOnly() {
		detail, err = h.svc.UpdateStatus(r.Context(), id, service.UpdateStatusRequest{
			Actor:   actor,
			Status:  req.Status,
			Note:    req.Note,
			Version: req.Version,
		})
	} else {
		detail, err = h.svc.UpdateOrder(r.Context(), id, service.UpdateOrderRequest{
			Actor:           actor,
			CustomerName:    req.ClienteNome,
			CustomerPhone:   req.ClienteTelefone,
			DeliveryAddress: req.EnderecoEntrega,
			Notes:           req.Observacoes,
			Items:           req.Itens,
			DeliveryFee:     req.TaxaEntrega,
			ServiceFee:      req.TaxaServico,
			Discount:        req.Desconto,
			Status:          req.Status,
			Note:            req.Note,
			Version:         req.Version,
		})
	}
	if err != nil {
		h.writeServiceError(w, "update order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := bindJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	detail, err := h.svc.UpdateStatus(r.Context(), id, service.UpdateStatusRequest{
		Actor:   actor,
		Status:  req.Status,
		Note:    req.Note,
		Version: req.Version,
	})
	if err != nil {
		h.writeServiceError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// AssignCourier handles PATCH /orders/{id}/courier.
func (h *OrderHandler) AssignCourier(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}

	var req assignCourierRequest
	if err := bindJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	detail, err := h.svc.AssignCourier(r.Context(), actor, id, uuid.MustParse(req.CourierID), req.Version)
	if err != nil {
		h.writeServiceError(w, "assign courier", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// AckAlert handles POST /alerts/{orderId}/ack.
func (h *OrderHandler) AckAlert(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r, "orderId")
	if !ok {
		return
	}

	if err := h.svc.AcknowledgeAlert(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, "acknowledge alert", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *OrderHandler) actorAndID(w http.ResponseWriter, r *http.Request, param string) (access.Actor, uuid.UUID, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, "not authenticated")
		return access.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		badRequest(w, "invalid order ID")
		return access.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// writeServiceError maps service errors onto the API error codes.
func (h *OrderHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	writeServiceError(w, h.logger, op, err)
}

func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		badRequest(w, err.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		middleware.WriteError(w, http.StatusNotFound, enum.ErrCodeOrderNotFound, "order not found")
	case errors.Is(err, service.ErrForbidden):
		forbidden(w)
	case errors.Is(err, service.ErrInvalidTransition):
		middleware.WriteError(w, http.StatusConflict, enum.ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, service.ErrVersionConflict), errors.Is(err, service.ErrDuplicateOrderNumber):
		middleware.WriteError(w, http.StatusConflict, enum.ErrCodeConflict, err.Error())
	default:
		logger.Error(op, zap.Error(err))
		internalError(w)
	}
}

func parseListQuery(r *http.Request) (service.ListQuery, error) {
	v := r.URL.Query()
	var (
		q   service.ListQuery
		err error
	)
	q.Status = v.Get("status")
	if q.RestaurantID, err = parseOptionalUUID(v.Get("restaurantId"), "restaurantId"); err != nil {
		return q, err
	}
	if q.CustomerID, err = parseOptionalUUID(v.Get("customerId"), "customerId"); err != nil {
		return q, err
	}
	if q.CourierID, err = parseOptionalUUID(v.Get("entregadorId"), "entregadorId"); err != nil {
		return q, err
	}
	if s := v.Get("dateFrom"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return q, errors.New("invalid dateFrom, use YYYY-MM-DD or RFC3339")
		}
		q.DateFrom = t
	}
	if s := v.Get("dateTo"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return q, errors.New("invalid dateTo, use YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			// Whole day is included.
			t = t.AddDate(0, 0, 1)
		}
		q.DateTo = t
	}
	if s := v.Get("page"); s != "" {
		if q.Page, err = strconv.Atoi(s); err != nil || q.Page < 1 {
			return q, errors.New("page must be a positive integer")
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 1 {
			return q, errors.New("limit must be a positive integer")
		}
	}
	return q, nil
}

func parseOptionalUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("invalid " + field)
	}
	return id, nil
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or RFC3339.
func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func toOrderResponse(o database.Order) orderResponse {
	items := json.RawMessage(o.Items)
	if len(items) == 0 {
		items = json.RawMessage("[]")
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		RestaurantID:    o.RestaurantID,
		CustomerID:      uuidPtr(o.CustomerID),
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		CourierID:       uuidPtr(o.CourierID),
		Notes:           textPtr(o.Notes),
		Items:           items,
		Subtotal:        numericToString(o.Subtotal),
		DeliveryFee:     numericToString(o.DeliveryFee),
		ServiceFee:      numericToString(o.ServiceFee),
		Discount:        numericToString(o.Discount),
		Total:           numericToString(o.Total),
		Status:          o.Status,
		Version:         o.Version,
		CreatedBy:       uuidPtr(o.CreatedBy),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderDetailResponse(d *service.OrderDetail) orderResponse {
	resp := toOrderResponse(d.Order)
	if len(d.History) > 0 {
		resp.History = make([]historyResponse, len(d.History))
		for i, h := range d.History {
			resp.History[i] = historyResponse{
				Status:    h.Status,
				Note:      textPtr(h.Note),
				ChangedBy: uuidPtr(h.ChangedBy),
				CreatedAt: h.CreatedAt,
			}
		}
	}
	return resp
}

var errDateRange = errors.New("dateTo must be after dateFrom")
