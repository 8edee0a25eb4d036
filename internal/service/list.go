package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/access"
	"github.com/hidangan/delivery-api/internal/database"
	"github.com/hidangan/delivery-api/internal/orderstatus"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery narrows an order listing. Zero values mean "no narrowing".
// DateTo is exclusive.
type ListQuery struct {
	Status       string
	RestaurantID uuid.UUID
	CustomerID   uuid.UUID
	CourierID    uuid.UUID
	DateFrom     time.Time
	DateTo       time.Time
	Page         int
	Limit        int
}

// ListResult is one page of orders.
type ListResult struct {
	Orders []database.Order
	Total  int64
	Page   int
	Limit  int
}

// TotalPages is the number of pages at the current limit.
func (r ListResult) TotalPages() int {
	if r.Limit <= 0 || r.Total == 0 {
		return 0
	}
	return int((r.Total + int64(r.Limit) - 1) / int64(r.Limit))
}

// scope is the access filter merged with client narrowing, ready for SQL.
type scope struct {
	restaurantID pgtype.UUID
	courierID    pgtype.UUID
	email        pgtype.Text
	empty        bool
}

// mergeScope ANDs the actor's filter with the requested narrowing. A request
// outside the actor's scope yields an empty scope rather than an error.
func mergeScope(f access.Filter, restaurantID, courierID uuid.UUID) scope {
	var sc scope
	switch {
	case f.RestaurantID != uuid.Nil:
		if restaurantID != uuid.Nil && restaurantID != f.RestaurantID {
			sc.empty = true
		}
		sc.restaurantID = nullUUID(f.RestaurantID)
	default:
		sc.restaurantID = nullUUID(restaurantID)
	}
	switch {
	case f.CourierID != uuid.Nil:
		if courierID != uuid.Nil && courierID != f.CourierID {
			sc.empty = true
		}
		sc.courierID = nullUUID(f.CourierID)
	default:
		sc.courierID = nullUUID(courierID)
	}
	if f.CustomerEmail != "" {
		sc.email = pgtype.Text{String: f.CustomerEmail, Valid: true}
	}
	return sc
}

// ListOrders returns the page of orders visible to actor. An actor without a
// scoping identity is refused; it never sees an unfiltered list.
func (s *OrderService) ListOrders(ctx context.Context, actor access.Actor, q ListQuery) (*ListResult, error) {
	filter, err := access.BuildFilter(actor)
	if err != nil {
		return nil, ErrForbidden
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if int64(q.Page-1) > math.MaxInt32/int64(q.Limit) {
		return nil, validationError("page %d is out of range", q.Page)
	}
	offset := int32((q.Page - 1) * q.Limit)
	result := &ListResult{Orders: []database.Order{}, Page: q.Page, Limit: q.Limit}

	var status pgtype.Text
	if q.Status != "" {
		st, err := orderstatus.Parse(q.Status)
		if err != nil {
			return nil, validationError("invalid status %q", q.Status)
		}
		status = pgtype.Text{String: string(st), Valid: true}
	}
	if !q.DateFrom.IsZero() && !q.DateTo.IsZero() && !q.DateTo.After(q.DateFrom) {
		return nil, validationError("dateTo must be after dateFrom")
	}

	sc := mergeScope(filter, q.RestaurantID, q.CourierID)
	if sc.empty {
		return result, nil
	}

	count := database.CountOrdersParams{
		RestaurantID:  sc.restaurantID,
		CourierID:     sc.courierID,
		CustomerID:    nullUUID(q.CustomerID),
		CustomerEmail: sc.email,
		Status:        status,
		StartDate:     timestamptz(q.DateFrom),
		EndDate:       timestamptz(q.DateTo),
	}
	total, err := s.store.CountOrders(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	result.Total = total
	if total == 0 {
		return result, nil
	}

	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{
		RestaurantID:  count.RestaurantID,
		CourierID:     count.CourierID,
		CustomerID:    count.CustomerID,
		CustomerEmail: count.CustomerEmail,
		Status:        count.Status,
		StartDate:     count.StartDate,
		EndDate:       count.EndDate,
		Limit:         int32(q.Limit),
		Offset:        offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders != nil {
		result.Orders = orders
	}
	return result, nil
}

// StatusCount is one row of the order report.
type StatusCount struct {
	Status  orderstatus.Status
	Count   int64
	Revenue decimal.Decimal
}

// OrderReport summarizes orders by lifecycle outcome.
type OrderReport struct {
	InProgress       int64
	Completed        int64
	Failed           int64
	DeliveredRevenue decimal.Decimal
	ByStatus         []StatusCount
}

// Report aggregates the orders visible to actor in [from, to).
func (s *OrderService) Report(ctx context.Context, actor access.Actor, restaurantID uuid.UUID, from, to time.Time) (*OrderReport, error) {
	filter, err := access.BuildFilter(actor)
	if err != nil {
		return nil, ErrForbidden
	}
	report := &OrderReport{DeliveredRevenue: decimal.Zero, ByStatus: []StatusCount{}}

	sc := mergeScope(filter, restaurantID, uuid.Nil)
	if sc.empty {
		return report, nil
	}

	rows, err := s.store.GetOrderStatusReport(ctx, database.GetOrderStatusReportParams{
		RestaurantID:  sc.restaurantID,
		CourierID:     sc.courierID,
		CustomerEmail: sc.email,
		StartDate:     timestamptz(from),
		EndDate:       timestamptz(to),
	})
	if err != nil {
		return nil, fmt.Errorf("order status report: %w", err)
	}

	for _, row := range rows {
		st := orderstatus.Status(row.Status)
		revenue := numericToDecimal(row.Revenue)
		report.ByStatus = append(report.ByStatus, StatusCount{Status: st, Count: row.OrderCount, Revenue: revenue})
		switch {
		case st == orderstatus.Delivered:
			report.Completed += row.OrderCount
			report.DeliveredRevenue = report.DeliveredRevenue.Add(revenue)
		case st == orderstatus.Cancelled || st == orderstatus.Rejected:
			report.Failed += row.OrderCount
		case orderstatus.InProgress(st):
			report.InProgress += row.OrderCount
		}
	}
	statuses := make([]orderstatus.Status, len(report.ByStatus))
	byStatus := make(map[orderstatus.Status]StatusCount, len(report.ByStatus))
	for i, c := range report.ByStatus {
		statuses[i] = c.Status
		byStatus[c.Status] = c
	}
	orderstatus.Sort(statuses)
	for i, st := range statuses {
		report.ByStatus[i] = byStatus[st]
	}
	return report, nil
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
