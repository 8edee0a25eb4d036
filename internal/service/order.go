package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/access"
	"github.com/hidangan/delivery-api/internal/database"
	"github.com/hidangan/delivery-api/internal/enum"
	"github.com/hidangan/delivery-api/internal/events"
	"github.com/hidangan/delivery-api/internal/orderstatus"
	"github.com/hidangan/delivery-api/internal/pricing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxOrderNumberRetries   = 3
	orderNumberConstraint   = "orders_order_number_key"
	orderNumberSuffixLength = 4
)

// Errors returned by the order service.
var (
	ErrValidation           = errors.New("validation failed")
	ErrOrderNotFound        = errors.New("order not found")
	ErrForbidden            = access.ErrForbidden
	ErrVersionConflict      = errors.New("order was modified by another request")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrInvalidTransition    = orderstatus.ErrInvalidTransition
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error)
	AssignCourier(ctx context.Context, arg database.AssignCourierParams) (database.Order, error)
	CreateOrderStatusHistory(ctx context.Context, arg database.CreateOrderStatusHistoryParams) (database.OrderStatusHistory, error)
	ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
	GetOrderStatusReport(ctx context.Context, arg database.GetOrderStatusReportParams) ([]database.GetOrderStatusReportRow, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// AlertTracker decides when a restaurant should be alerted about a new
// order. Satisfied by *notify.Tracker.
type AlertTracker interface {
	Observe(ctx context.Context, restaurantID, orderID uuid.UUID, status orderstatus.Status) (bool, error)
	Acknowledge(ctx context.Context, restaurantID, orderID uuid.UUID) (uuid.UUID, error)
}

// OrderServiceConfig carries optional collaborators. Nil Tracker disables
// alerts; nil Publisher discards events.
type OrderServiceConfig struct {
	StrictPricing bool
	Tracker       AlertTracker
	Publisher     events.Publisher
	Logger        *zap.Logger
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore

	strict    bool
	tracker   AlertTracker
	publisher events.Publisher
	logger    *zap.Logger

	now         func() time.Time
	orderNumber func(time.Time) string
}

// NewOrderService creates a new OrderService. store serves reads outside a
// transaction; newStore binds writes to one.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, cfg OrderServiceConfig) *OrderService {
	s := &OrderService{
		pool:        pool,
		store:       store,
		newStore:    newStore,
		strict:      cfg.StrictPricing,
		tracker:     cfg.Tracker,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
		now:         time.Now,
		orderNumber: generateOrderNumber,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// OrderDetail is an order with its decoded items and status history.
type OrderDetail struct {
	Order   database.Order
	Items   []pricing.LineItem
	History []database.OrderStatusHistory
}

// CreateOrderRequest is the input for creating an order. Items and the money
// fields are raw client values; totals are always recomputed.
type CreateOrderRequest struct {
	Actor           access.Actor
	RestaurantID    uuid.UUID
	CustomerID      uuid.UUID
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	OrderNumber     string
	Notes           string
	Status          string
	Items           []any
	DeliveryFee     any
	ServiceFee      any
	Discount        any
}

// CreateOrder validates the request, recomputes totals and stores the order
// with its first history row in one transaction. Generated order numbers are
// retried on unique constraint conflicts.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	if err := s.authorizeCreate(req); err != nil {
		return nil, err
	}
	status, err := initialStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	email := orderEmail(req)

	totals := pricing.RecalculateTotals(req.Items, req.DeliveryFee, req.ServiceFee, req.Discount)
	if err := checkTotalsFit(totals); err != nil {
		return nil, err
	}
	items := pricing.NormalizeItems(req.Items)
	itemsJSON, err := encodeItems(items)
	if err != nil {
		return nil, err
	}

	params := database.CreateOrderParams{
		RestaurantID:    req.RestaurantID,
		CustomerID:      nullUUID(req.CustomerID),
		CustomerEmail:   email,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		Notes:           nullText(req.Notes),
		Items:           itemsJSON,
		Subtotal:        decimalToNumeric(totals.Subtotal),
		DeliveryFee:     decimalToNumeric(totals.DeliveryFee),
		ServiceFee:      decimalToNumeric(totals.ServiceFee),
		Discount:        decimalToNumeric(totals.Discount),
		Total:           decimalToNumeric(totals.Total),
		Status:          string(status),
		CreatedBy:       nullUUID(req.Actor.UserID),
	}

	clientNumber := strings.TrimSpace(req.OrderNumber)
	var (
		detail  *OrderDetail
		lastErr error
	)
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		params.OrderNumber = clientNumber
		if params.OrderNumber == "" {
			params.OrderNumber = s.orderNumber(s.now())
		}
		detail, err = s.createOrderTx(ctx, params, req.Actor.UserID)
		if err == nil {
			break
		}
		if !isOrderNumberConflict(err) {
			return nil, err
		}
		if clientNumber != "" {
			return nil, ErrDuplicateOrderNumber
		}
		lastErr = err
	}
	if detail == nil {
		return nil, fmt.Errorf("create order: %w", lastErr)
	}
	detail.Items = items

	s.publish(ctx, enum.EventOrderCreated, detail.Order, orderPayload(detail.Order, ""))
	s.observeAlert(ctx, detail.Order)
	return detail, nil
}

func (s *OrderService) createOrderTx(ctx context.Context, params database.CreateOrderParams, actorID uuid.UUID) (*OrderDetail, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.CreateOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	entry, err := store.CreateOrderStatusHistory(ctx, database.CreateOrderStatusHistoryParams{
		OrderID:   order.ID,
		Status:    order.Status,
		Note:      pgtype.Text{String: "order created", Valid: true},
		ChangedBy: nullUUID(actorID),
	})
	if err != nil {
		return nil, fmt.Errorf("insert status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderDetail{Order: order, History: []database.OrderStatusHistory{entry}}, nil
}

func (s *OrderService) authorizeCreate(req CreateOrderRequest) error {
	switch req.Actor.Role {
	case enum.UserRoleAdmin, enum.UserRoleCustomer, enum.UserRoleUser:
		return nil
	case enum.UserRoleRestaurant:
		if req.Actor.RestaurantID == uuid.Nil || req.Actor.RestaurantID != req.RestaurantID {
			return ErrForbidden
		}
		return nil
	}
	return ErrForbidden
}

func (s *OrderService) validateCreate(req CreateOrderRequest) error {
	if req.RestaurantID == uuid.Nil {
		return validationError("restaurantId is required")
	}
	if len(req.Items) == 0 {
		return validationError("itens must not be empty")
	}
	return s.validateMoney(req.Items, req.DeliveryFee, req.ServiceFee, req.Discount)
}

// validateMoney applies strict boundary checks when enabled. Items may be
// nil when an update keeps the stored ones.
func (s *OrderService) validateMoney(items []any, deliveryFee, serviceFee, discount any) error {
	if !s.strict {
		return nil
	}
	if items != nil {
		if err := pricing.ValidateItems(items); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	for field, v := range map[string]any{"taxaEntrega": deliveryFee, "taxaServico": serviceFee, "desconto": discount} {
		if err := pricing.ValidateAmount(field, v); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return nil
}

// orderEmail picks the email an order is filed under. Customers always
// file under their own address since it decides who can see the order.
func orderEmail(req CreateOrderRequest) string {
	switch req.Actor.Role {
	case enum.UserRoleCustomer, enum.UserRoleUser:
		return access.NormalizeEmail(req.Actor.Email)
	}
	if email := access.NormalizeEmail(req.CustomerEmail); email != "" {
		return email
	}
	return access.NormalizeEmail(req.Actor.Email)
}

// checkTotalsFit rejects totals the money columns cannot store.
func checkTotalsFit(t pricing.Totals) error {
	for _, d := range []decimal.Decimal{t.Subtotal, t.Total} {
		if d.GreaterThan(pricing.MaxAmount) {
			return validationError("order total exceeds %s", pricing.MaxAmount.StringFixed(2))
		}
	}
	return nil
}

func initialStatus(s string) (orderstatus.Status, error) {
	if s == "" {
		return orderstatus.Initial, nil
	}
	status, err := orderstatus.Parse(s)
	if err != nil || (status != orderstatus.Pending && status != orderstatus.PendingPayment) {
		return "", validationError("status must be pending or pending_payment")
	}
	return status, nil
}

// GetOrder returns a single order if the actor may see it.
func (s *OrderService) GetOrder(ctx context.Context, actor access.Actor, id uuid.UUID) (*OrderDetail, error) {
	order, err := s.loadVisible(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListOrderStatusHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	items, err := decodeItems(order.Items)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Items: items, History: history}, nil
}

// loadVisible fetches an order and checks it against the actor's scope. A
// missing order is reported before a forbidden one.
func (s *OrderService) loadVisible(ctx context.Context, store OrderStore, actor access.Actor, id uuid.UUID) (database.Order, error) {
	order, err := store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if !access.CanViewOrder(actor, orderRef(order)) {
		return database.Order{}, ErrForbidden
	}
	return order, nil
}

// UpdateOrderRequest edits an order's details. Nil fields keep the stored
// value. A non-empty Status additionally transitions the order in the same
// transaction.
type UpdateOrderRequest struct {
	Actor           access.Actor
	CustomerName    *string
	CustomerPhone   *string
	DeliveryAddress *string
	Notes           *string
	Items           []any
	DeliveryFee     any
	ServiceFee      any
	Discount        any
	Status          string
	Note            string
	Version         *int32
}

// UpdateOrder recomputes totals from the new (or stored) items and fees.
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, req UpdateOrderRequest) (*OrderDetail, error) {
	if req.Items != nil && len(req.Items) == 0 {
		return nil, validationError("itens must not be empty")
	}
	if err := s.validateMoney(req.Items, req.DeliveryFee, req.ServiceFee, req.Discount); err != nil {
		return nil, err
	}
	var target orderstatus.Status
	if req.Status != "" {
		st, err := orderstatus.Parse(req.Status)
		if err != nil {
			return nil, validationError("invalid status %q", req.Status)
		}
		target = st
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := s.loadVisible(ctx, store, req.Actor, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != current.Version {
		return nil, ErrVersionConflict
	}
	from := orderstatus.Status(current.Status)
	if orderstatus.IsTerminal(from) {
		return nil, &orderstatus.TransitionError{From: from, To: from}
	}

	var rawItems any = req.Items
	items := pricing.NormalizeItems(req.Items)
	if req.Items == nil {
		items, err = decodeItems(current.Items)
		if err != nil {
			return nil, err
		}
		rawItems = items
	}
	totals := pricing.RecalculateTotals(
		rawItems,
		orDefault(req.DeliveryFee, numericToDecimal(current.DeliveryFee)),
		orDefault(req.ServiceFee, numericToDecimal(current.ServiceFee)),
		orDefault(req.Discount, numericToDecimal(current.Discount)),
	)
	if err := checkTotalsFit(totals); err != nil {
		return nil, err
	}
	itemsJSON, err := encodeItems(items)
	if err != nil {
		return nil, err
	}

	notes := current.Notes
	if req.Notes != nil {
		notes = nullText(*req.Notes)
	}

	updated, err := store.UpdateOrderDetails(ctx, database.UpdateOrderDetailsParams{
		ID:              id,
		CustomerName:    stringOr(req.CustomerName, current.CustomerName),
		CustomerPhone:   stringOr(req.CustomerPhone, current.CustomerPhone),
		DeliveryAddress: stringOr(req.DeliveryAddress, current.DeliveryAddress),
		Notes:           notes,
		Items:           itemsJSON,
		Subtotal:        decimalToNumeric(totals.Subtotal),
		DeliveryFee:     decimalToNumeric(totals.DeliveryFee),
		ServiceFee:      decimalToNumeric(totals.ServiceFee),
		Discount:        decimalToNumeric(totals.Discount),
		Total:           decimalToNumeric(totals.Total),
		Version:         current.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("update order: %w", err)
	}

	var entry *database.OrderStatusHistory
	if target != "" && target != from {
		updated, entry, err = s.transitionTx(ctx, store, req.Actor, updated, target, req.Note)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, enum.EventOrderUpdated, updated, orderPayload(updated, ""))
	if entry != nil {
		s.afterTransition(ctx, updated, from)
	}
	return &OrderDetail{Order: updated, Items: items}, nil
}

// UpdateStatusRequest moves an order to Status. Version, when set, must match
// the stored version.
type UpdateStatusRequest struct {
	Actor   access.Actor
	Status  string
	Note    string
	Version *int32
}

// UpdateStatus validates the transition against the lifecycle table and the
// actor's role, then writes it with an optimistic version check and a
// history row in one transaction. Totals are never touched.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) (*OrderDetail, error) {
	if req.Status == "" {
		return nil, validationError("status is required")
	}
	target, err := orderstatus.Parse(req.Status)
	if err != nil {
		return nil, validationError("invalid status %q", req.Status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := s.loadVisible(ctx, store, req.Actor, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != current.Version {
		return nil, ErrVersionConflict
	}
	from := orderstatus.Status(current.Status)

	updated, _, err := s.transitionTx(ctx, store, req.Actor, current, target, req.Note)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.afterTransition(ctx, updated, from)
	return &OrderDetail{Order: updated}, nil
}

func (s *OrderService) transitionTx(ctx context.Context, store OrderStore, actor access.Actor, current database.Order, target orderstatus.Status, note string) (database.Order, *database.OrderStatusHistory, error) {
	from := orderstatus.Status(current.Status)
	if err := orderstatus.Validate(from, target); err != nil {
		return database.Order{}, nil, err
	}
	if !canSetStatus(actor, from, target) {
		return database.Order{}, nil, ErrForbidden
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:      current.ID,
		Status:  string(target),
		Version: current.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, nil, ErrVersionConflict
		}
		return database.Order{}, nil, fmt.Errorf("update order status: %w", err)
	}

	entry, err := store.CreateOrderStatusHistory(ctx, database.CreateOrderStatusHistoryParams{
		OrderID:   current.ID,
		Status:    string(target),
		Note:      nullText(note),
		ChangedBy: nullUUID(actor.UserID),
	})
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("insert status history: %w", err)
	}
	return updated, &entry, nil
}

// canSetStatus applies role gating on top of the transition table. Admins
// may make any allowed move. Restaurants act until the order leaves their
// kitchen; couriers only report delivery progress.
func canSetStatus(actor access.Actor, from, to orderstatus.Status) bool {
	switch actor.Role {
	case enum.UserRoleAdmin:
		return true
	case enum.UserRoleRestaurant:
		return orderstatus.RestaurantActionable(from) || from == orderstatus.PendingPayment
	case enum.UserRoleCourier:
		return orderstatus.CourierSettable(to)
	}
	return false
}

func (s *OrderService) afterTransition(ctx context.Context, order database.Order, from orderstatus.Status) {
	s.publish(ctx, enum.EventOrderStatusChanged, order, orderPayload(order, string(from)))

	to := orderstatus.Status(order.Status)
	switch {
	case from == orderstatus.Pending && to != orderstatus.Pending:
		// Acting on an order counts as seeing it.
		s.acknowledge(ctx, order.RestaurantID, order.ID)
	case from == orderstatus.PendingPayment && to == orderstatus.Pending:
		s.observeAlert(ctx, order)
	}
}

// AssignCourier sets the courier delivering an order.
func (s *OrderService) AssignCourier(ctx context.Context, actor access.Actor, id, courierID uuid.UUID, version *int32) (*OrderDetail, error) {
	if courierID == uuid.Nil {
		return nil, validationError("courierId is required")
	}
	if actor.Role != enum.UserRoleAdmin && actor.Role != enum.UserRoleRestaurant {
		return nil, ErrForbidden
	}

	courier, err := s.store.GetUserByID(ctx, courierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, validationError("courier not found")
		}
		return nil, fmt.Errorf("get courier: %w", err)
	}
	if courier.Role != enum.UserRoleCourier {
		return nil, validationError("user %s is not a courier", courierID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := s.loadVisible(ctx, store, actor, id)
	if err != nil {
		return nil, err
	}
	if version != nil && *version != current.Version {
		return nil, ErrVersionConflict
	}
	from := orderstatus.Status(current.Status)
	if orderstatus.IsTerminal(from) {
		return nil, &orderstatus.TransitionError{From: from, To: from}
	}

	updated, err := store.AssignCourier(ctx, database.AssignCourierParams{
		ID:        id,
		CourierID: nullUUID(courierID),
		Version:   current.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("assign courier: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, enum.EventOrderCourier, updated, orderPayload(updated, ""))
	return &OrderDetail{Order: updated}, nil
}

// AcknowledgeAlert clears a restaurant's outstanding new-order alert and
// raises the next queued one that is still pending.
func (s *OrderService) AcknowledgeAlert(ctx context.Context, actor access.Actor, orderID uuid.UUID) error {
	if actor.Role != enum.UserRoleAdmin && actor.Role != enum.UserRoleRestaurant {
		return ErrForbidden
	}
	order, err := s.loadVisible(ctx, s.store, actor, orderID)
	if err != nil {
		return err
	}
	if s.tracker == nil {
		return nil
	}
	return s.advanceAlerts(ctx, order.RestaurantID, orderID)
}

func (s *OrderService) acknowledge(ctx context.Context, restaurantID, orderID uuid.UUID) {
	if s.tracker == nil {
		return
	}
	if err := s.advanceAlerts(ctx, restaurantID, orderID); err != nil {
		s.logger.Warn("failed to clear order alert",
			zap.Stringer("restaurant_id", restaurantID),
			zap.Stringer("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (s *OrderService) advanceAlerts(ctx context.Context, restaurantID, orderID uuid.UUID) error {
	next, err := s.tracker.Acknowledge(ctx, restaurantID, orderID)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	for next != uuid.Nil {
		order, err := s.store.GetOrder(ctx, next)
		if err == nil && order.Status == string(orderstatus.Pending) {
			s.publish(ctx, enum.EventOrderAlert, order, orderPayload(order, ""))
			return nil
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get queued order: %w", err)
		}
		// Already handled while queued; skip it.
		next, err = s.tracker.Acknowledge(ctx, restaurantID, next)
		if err != nil {
			return fmt.Errorf("acknowledge alert: %w", err)
		}
	}
	return nil
}

func (s *OrderService) observeAlert(ctx context.Context, order database.Order) {
	if s.tracker == nil {
		return
	}
	fire, err := s.tracker.Observe(ctx, order.RestaurantID, order.ID, orderstatus.Status(order.Status))
	if err != nil {
		s.logger.Warn("failed to record order alert",
			zap.Stringer("order_id", order.ID),
			zap.Error(err),
		)
		return
	}
	if fire {
		s.publish(ctx, enum.EventOrderAlert, order, orderPayload(order, ""))
	}
}

// orderEvent is the payload of every order event.
type orderEvent struct {
	OrderNumber    string     `json:"order_number"`
	Status         string     `json:"status"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	Total          string     `json:"total"`
	Version        int32      `json:"version"`
	CourierID      *uuid.UUID `json:"courier_id,omitempty"`
	CustomerName   string     `json:"customer_name"`
	CreatedAt      time.Time  `json:"created_at"`
}

func orderPayload(o database.Order, previous string) orderEvent {
	ev := orderEvent{
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PreviousStatus: previous,
		Total:          numericToDecimal(o.Total).StringFixed(2),
		Version:        o.Version,
		CustomerName:   o.CustomerName,
		CreatedAt:      o.CreatedAt,
	}
	if o.CourierID.Valid {
		id := uuid.UUID(o.CourierID.Bytes)
		ev.CourierID = &id
	}
	return ev
}

// publish never fails the caller; the order is already committed.
func (s *OrderService) publish(ctx context.Context, eventType string, order database.Order, payload any) {
	ev, err := events.New(eventType, order.RestaurantID, order.ID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("type", eventType),
			zap.Stringer("order_id", order.ID),
			zap.Error(err),
		)
	}
}

// --- Helpers ---

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == orderNumberConstraint
	}
	return false
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateOrderNumber returns ORD-<unix millis>-<4 base36 chars>.
func generateOrderNumber(now time.Time) string {
	suffix := make([]byte, orderNumberSuffixLength)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return "ORD-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + strings.ToUpper(string(suffix))
}

func orderRef(o database.Order) access.OrderRef {
	ref := access.OrderRef{RestaurantID: o.RestaurantID, CustomerEmail: o.CustomerEmail}
	if o.CourierID.Valid {
		ref.CourierID = uuid.UUID(o.CourierID.Bytes)
	}
	return ref
}

func encodeItems(items []pricing.LineItem) ([]byte, error) {
	if items == nil {
		items = []pricing.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return b, nil
}

func decodeItems(b []byte) ([]pricing.LineItem, error) {
	items := []pricing.LineItem{}
	if len(b) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func orDefault(v any, def decimal.Decimal) any {
	if v == nil {
		return def
	}
	return v
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return strings.TrimSpace(*p)
}

func nullUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func nullText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
