package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, restaurant_id, customer_id, customer_email, customer_name,
    customer_phone, delivery_address, courier_id, notes, items, subtotal, delivery_fee,
    service_fee, discount, total, status, version, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.RestaurantID,
		&i.CustomerID,
		&i.CustomerEmail,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.DeliveryAddress,
		&i.CourierID,
		&i.Notes,
		&i.Items,
		&i.Subtotal,
		&i.DeliveryFee,
		&i.ServiceFee,
		&i.Discount,
		&i.Total,
		&i.Status,
		&i.Version,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, restaurant_id, customer_id, customer_email, customer_name,
    customer_phone, delivery_address, notes, items, subtotal, delivery_fee,
    service_fee, discount, total, status, created_by
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber     string
	RestaurantID    uuid.UUID
	CustomerID      pgtype.UUID
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Notes           pgtype.Text
	Items           []byte
	Subtotal        pgtype.Numeric
	DeliveryFee     pgtype.Numeric
	ServiceFee      pgtype.Numeric
	Discount        pgtype.Numeric
	Total           pgtype.Numeric
	Status          string
	CreatedBy       pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.RestaurantID,
		arg.CustomerID,
		arg.CustomerEmail,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.DeliveryAddress,
		arg.Notes,
		arg.Items,
		arg.Subtotal,
		arg.DeliveryFee,
		arg.ServiceFee,
		arg.Discount,
		arg.Total,
		arg.Status,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

// Nullable filter params are ignored when not Valid.
const orderFilter = `
WHERE ($1::uuid IS NULL OR restaurant_id = $1)
  AND ($2::uuid IS NULL OR courier_id = $2)
  AND ($3::uuid IS NULL OR customer_id = $3)
  AND ($4::text IS NULL OR lower(customer_email) = $4)
  AND ($5::text IS NULL OR status = $5)
  AND ($6::timestamptz IS NULL OR created_at >= $6)
  AND ($7::timestamptz IS NULL OR created_at < $7)`

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders` + orderFilter + `
ORDER BY created_at DESC, id
LIMIT $8 OFFSET $9`

type ListOrdersParams struct {
	RestaurantID  pgtype.UUID
	CourierID     pgtype.UUID
	CustomerID    pgtype.UUID
	CustomerEmail pgtype.Text
	Status        pgtype.Text
	StartDate     pgtype.Timestamptz
	EndDate       pgtype.Timestamptz
	Limit         int32
	Offset        int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.RestaurantID,
		arg.CourierID,
		arg.CustomerID,
		arg.CustomerEmail,
		arg.Status,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countOrders = `-- name: CountOrders :one
SELECT count(*) FROM orders` + orderFilter

type CountOrdersParams struct {
	RestaurantID  pgtype.UUID
	CourierID     pgtype.UUID
	CustomerID    pgtype.UUID
	CustomerEmail pgtype.Text
	Status        pgtype.Text
	StartDate     pgtype.Timestamptz
	EndDate       pgtype.Timestamptz
}

func (q *Queries) CountOrders(ctx context.Context, arg CountOrdersParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOrders,
		arg.RestaurantID,
		arg.CourierID,
		arg.CustomerID,
		arg.CustomerEmail,
		arg.Status,
		arg.StartDate,
		arg.EndDate,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID      uuid.UUID
	Status  string
	Version int32
}

// UpdateOrderStatus returns pgx.ErrNoRows when the order's version no longer
// matches.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.Version)
	return scanOrder(row)
}

const updateOrderDetails = `-- name: UpdateOrderDetails :one
UPDATE orders
SET customer_name = $2, customer_phone = $3, delivery_address = $4, notes = $5,
    items = $6, subtotal = $7, delivery_fee = $8, service_fee = $9, discount = $10,
    total = $11, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $12
RETURNING ` + orderColumns

type UpdateOrderDetailsParams struct {
	ID              uuid.UUID
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Notes           pgtype.Text
	Items           []byte
	Subtotal        pgtype.Numeric
	DeliveryFee     pgtype.Numeric
	ServiceFee      pgtype.Numeric
	Discount        pgtype.Numeric
	Total           pgtype.Numeric
	Version         int32
}

func (q *Queries) UpdateOrderDetails(ctx context.Context, arg UpdateOrderDetailsParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderDetails,
		arg.ID,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.DeliveryAddress,
		arg.Notes,
		arg.Items,
		arg.Subtotal,
		arg.DeliveryFee,
		arg.ServiceFee,
		arg.Discount,
		arg.Total,
		arg.Version,
	)
	return scanOrder(row)
}

const assignCourier = `-- name: AssignCourier :one
UPDATE orders
SET courier_id = $2, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $3
RETURNING ` + orderColumns

type AssignCourierParams struct {
	ID        uuid.UUID
	CourierID pgtype.UUID
	Version   int32
}

func (q *Queries) AssignCourier(ctx context.Context, arg AssignCourierParams) (Order, error) {
	row := q.db.QueryRow(ctx, assignCourier, arg.ID, arg.CourierID, arg.Version)
	return scanOrder(row)
}

const createOrderStatusHistory = `-- name: CreateOrderStatusHistory :one
INSERT INTO order_status_history (order_id, status, note, changed_by)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, status, note, changed_by, created_at`

type CreateOrderStatusHistoryParams struct {
	OrderID   uuid.UUID
	Status    string
	Note      pgtype.Text
	ChangedBy pgtype.UUID
}

func (q *Queries) CreateOrderStatusHistory(ctx context.Context, arg CreateOrderStatusHistoryParams) (OrderStatusHistory, error) {
	row := q.db.QueryRow(ctx, createOrderStatusHistory,
		arg.OrderID,
		arg.Status,
		arg.Note,
		arg.ChangedBy,
	)
	var i OrderStatusHistory
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Status,
		&i.Note,
		&i.ChangedBy,
		&i.CreatedAt,
	)
	return i, err
}

const listOrderStatusHistory = `-- name: ListOrderStatusHistory :many
SELECT id, order_id, status, note, changed_by, created_at FROM order_status_history
WHERE order_id = $1
ORDER BY created_at, id`

func (q *Queries) ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error) {
	rows, err := q.db.Query(ctx, listOrderStatusHistory, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderStatusHistory
	for rows.Next() {
		var i OrderStatusHistory
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Status,
			&i.Note,
			&i.ChangedBy,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getOrderStatusReport = `-- name: GetOrderStatusReport :many
SELECT status, count(*)::bigint AS order_count, coalesce(sum(total), 0)::numeric AS revenue
FROM orders
WHERE ($1::uuid IS NULL OR restaurant_id = $1)
  AND ($2::uuid IS NULL OR courier_id = $2)
  AND ($3::text IS NULL OR lower(customer_email) = $3)
  AND ($4::timestamptz IS NULL OR created_at >= $4)
  AND ($5::timestamptz IS NULL OR created_at < $5)
GROUP BY status
ORDER BY status`

type GetOrderStatusReportParams struct {
	RestaurantID  pgtype.UUID
	CourierID     pgtype.UUID
	CustomerEmail pgtype.Text
	StartDate     pgtype.Timestamptz
	EndDate       pgtype.Timestamptz
}

type GetOrderStatusReportRow struct {
	Status     string
	OrderCount int64
	Revenue    pgtype.Numeric
}

func (q *Queries) GetOrderStatusReport(ctx context.Context, arg GetOrderStatusReportParams) ([]GetOrderStatusReportRow, error) {
	rows, err := q.db.Query(ctx, getOrderStatusReport,
		arg.RestaurantID,
		arg.CourierID,
		arg.CustomerEmail,
		arg.StartDate,
		arg.EndDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetOrderStatusReportRow
	for rows.Next() {
		var i GetOrderStatusReportRow
		if err := rows.Scan(&i.Status, &i.OrderCount, &i.Revenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
