package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/auth"
	"github.com/hidangan/delivery-api/internal/database"
	"github.com/hidangan/delivery-api/internal/enum"
	"github.com/hidangan/delivery-api/internal/handler"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	userByID    map[uuid.UUID]database.User
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail: make(map[string]database.User),
		userByID:    make(map[uuid.UUID]database.User),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[strings.ToLower(u.Email)] = u
	m.userByID[u.ID] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[strings.ToLower(email)]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		RestaurantID:   pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Email:          "kitchen@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Kitchen",
		Role:           enum.UserRoleRestaurant,
		IsActive:       true,
	}
}

func newAuthRouter(store handler.AuthStore) http.Handler {
	h := handler.NewAuthHandler(store, testSecret, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, status, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["code"] != code {
		t.Errorf("code: got %v, want %s", resp["code"], code)
	}
	if msg, _ := resp["message"].(string); msg == "" {
		t.Error("expected non-empty message")
	}
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "Kitchen@Test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["email"] != "kitchen@test.com" {
		t.Errorf("user email: got %v, want kitchen@test.com", userResp["email"])
	}
	if userResp["role"] != "RESTAURANT" {
		t.Errorf("user role: got %v, want RESTAURANT", userResp["role"])
	}
	if userResp["restaurant_id"] != uuid.UUID(user.RestaurantID.Bytes).String() {
		t.Errorf("restaurant_id: got %v", userResp["restaurant_id"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestUser(t))

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "kitchen@test.com",
		"password": "wrong-password",
	})

	assertErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestLogin_UserNotFound(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/login", map[string]string{
		"email":    "nobody@test.com",
		"password": "password",
	})

	assertErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestLogin_MissingFields(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/login", map[string]string{
		"email": "kitchen@test.com",
	})

	assertErrorCode(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")
}

// --- Refresh tests ---

func TestRefresh_ValidToken(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	refreshToken, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := postJSON(t, newAuthRouter(store), "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/refresh", map[string]string{
		"refresh_token": "not-a-valid-token",
	})

	assertErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	accessToken, err := auth.GenerateToken(testSecret, user.ID, uuid.UUID(user.RestaurantID.Bytes), user.Email, user.Role)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	rr := postJSON(t, newAuthRouter(store), "/auth/refresh", map[string]string{
		"refresh_token": accessToken,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_UserDeleted(t *testing.T) {
	refreshToken, err := auth.GenerateRefreshToken(testSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_InactiveUser(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	user.IsActive = false
	store.addUser(user)

	refreshToken, _ := auth.GenerateRefreshToken(testSecret, user.ID)
	rr := postJSON(t, newAuthRouter(store), "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_MissingField(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/refresh", map[string]string{})

	assertErrorCode(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")
}

// --- Access token validation ---

func TestLogin_ReturnsValidAccessToken(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "kitchen@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rr)
	accessToken, ok := resp["access_token"].(string)
	if !ok || accessToken == "" {
		t.Fatal("expected non-empty access_token string")
	}

	claims, err := auth.ValidateToken(testSecret, accessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims user ID: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.RestaurantID != uuid.UUID(user.RestaurantID.Bytes) {
		t.Errorf("claims restaurant ID: got %v, want %v", claims.RestaurantID, user.RestaurantID)
	}
	if claims.Email != user.Email {
		t.Errorf("claims email: got %v, want %v", claims.Email, user.Email)
	}
	if claims.Role != user.Role {
		t.Errorf("claims role: got %v, want %v", claims.Role, user.Role)
	}
}
