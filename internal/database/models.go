package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	RestaurantID    uuid.UUID
	CustomerID      pgtype.UUID
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	CourierID       pgtype.UUID
	Notes           pgtype.Text
	Items           []byte
	Subtotal        pgtype.Numeric
	DeliveryFee     pgtype.Numeric
	ServiceFee      pgtype.Numeric
	Discount        pgtype.Numeric
	Total           pgtype.Numeric
	Status          string
	Version         int32
	CreatedBy       pgtype.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderStatusHistory struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Status    string
	Note      pgtype.Text
	ChangedBy pgtype.UUID
	CreatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	RestaurantID   pgtype.UUID
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
