package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/access"
	"github.com/hidangan/delivery-api/internal/database"
	"github.com/hidangan/delivery-api/internal/enum"
	"github.com/hidangan/delivery-api/internal/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore defines the database methods needed by user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsers(ctx context.Context, role pgtype.Text) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	SoftDeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// UserHandler handles user CRUD endpoints.
type UserHandler struct {
	store  UserStore
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore, logger *zap.Logger) *UserHandler {
	return &UserHandler{store: store, logger: orNop(logger)}
}

// RegisterRoutes registers user CRUD endpoints on the given Chi router.
// Expected to be mounted at /users behind an ADMIN role check.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

const roleList = "ADMIN RESTAURANT COURIER CUSTOMER USER"

type createUserRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"full_name" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=ADMIN RESTAURANT COURIER CUSTOMER USER"`
	RestaurantID string `json:"restaurant_id" validate:"required_if=Role RESTAURANT,omitempty,uuid"`
}

type updateUserRequest struct {
	Email        string `json:"email" validate:"required,email"`
	FullName     string `json:"full_name" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=ADMIN RESTAURANT COURIER CUSTOMER USER"`
	RestaurantID string `json:"restaurant_id" validate:"required_if=Role RESTAURANT,omitempty,uuid"`
}

type userDetailResponse struct {
	ID           uuid.UUID  `json:"id"`
	RestaurantID *uuid.UUID `json:"restaurant_id,omitempty"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toUserDetailResponse(u database.User) userDetailResponse {
	return userDetailResponse{
		ID:           u.ID,
		RestaurantID: uuidPtr(u.RestaurantID),
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// --- Handlers ---

// List returns active users, optionally filtered by ?role=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	var role pgtype.Text
	if v := r.URL.Query().Get("role"); v != "" {
		if !enum.IsValidRole(v) {
			badRequest(w, "role must be one of ["+roleList+"]")
			return
		}
		role = pgtype.Text{String: v, Valid: true}
	}

	users, err := h.store.ListUsers(r.Context(), role)
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		internalError(w)
		return
	}

	resp := make([]userDetailResponse, len(users))
	for i, u := range users {
		resp[i] = toUserDetailResponse(u)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a new user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := bindJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("create user: hash password", zap.Error(err))
		internalError(w)
		return
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Email:          access.NormalizeEmail(req.Email),
		HashedPassword: string(hashed),
		FullName:       strings.TrimSpace(req.FullName),
		Role:           req.Role,
		RestaurantID:   restaurantParam(req.Role, req.RestaurantID),
	})
	if err != nil {
		h.writeStoreError(w, "create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserDetailResponse(user))
}

// Update modifies an existing user.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid user ID")
		return
	}

	var req updateUserRequest
	if err := bindJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.store.UpdateUser(r.Context(), database.UpdateUserParams{
		ID:           userID,
		Email:        access.NormalizeEmail(req.Email),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		RestaurantID: restaurantParam(req.Role, req.RestaurantID),
	})
	if err != nil {
		h.writeStoreError(w, "update user", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserDetailResponse(user))
}

// Delete soft-deletes a user by setting is_active=false. Admins cannot
// deactivate themselves.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid user ID")
		return
	}

	if actor, ok := middleware.ActorFromContext(r.Context()); ok && actor.UserID == userID {
		badRequest(w, "cannot deactivate your own account")
		return
	}

	if _, err := h.store.SoftDeleteUser(r.Context(), userID); err != nil {
		h.writeStoreError(w, "delete user", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *UserHandler) writeStoreError(w http.ResponseWriter, op string, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		middleware.WriteError(w, http.StatusNotFound, enum.ErrCodeNotFound, "user not found")
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		middleware.WriteError(w, http.StatusConflict, enum.ErrCodeConflict, "email already exists")
	case errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "23514"):
		badRequest(w, "user violates a data constraint")
	default:
		h.logger.Error(op, zap.Error(err))
		internalError(w)
	}
}

// restaurantParam binds a restaurant only to RESTAURANT users.
func restaurantParam(role, raw string) pgtype.UUID {
	if role != enum.UserRoleRestaurant || raw == "" {
		return pgtype.UUID{}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
