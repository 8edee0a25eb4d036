package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, hashed_password, full_name, role, restaurant_id, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.RestaurantID,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND is_active = true`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = true`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + ` FROM users
WHERE is_active = true
  AND ($1::text IS NULL OR role = $1)
ORDER BY created_at`

func (q *Queries) ListUsers(ctx context.Context, role pgtype.Text) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		i, err := scanUser(rows)
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

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, hashed_password, full_name, role, restaurant_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	RestaurantID   pgtype.UUID
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
		arg.Role,
		arg.RestaurantID,
	))
}

const updateUser = `-- name: UpdateUser :one
UPDATE users
SET email = $2, full_name = $3, role = $4, restaurant_id = $5, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING ` + userColumns

type UpdateUserParams struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	Role         string
	RestaurantID pgtype.UUID
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUser,
		arg.ID,
		arg.Email,
		arg.FullName,
		arg.Role,
		arg.RestaurantID,
	))
}

const softDeleteUser = `-- name: SoftDeleteUser :one
UPDATE users SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id`

func (q *Queries) SoftDeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteUser, id)
	var out uuid.UUID
	err := row.Scan(&out)
	return out, err
}
