package enum

// ── Group A: Roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin      = "ADMIN"
	UserRoleRestaurant = "RESTAURANT"
	UserRoleCourier    = "COURIER"
	UserRoleCustomer   = "CUSTOMER"
	UserRoleUser       = "USER"
)

// ── Group B: Error codes returned in API error payloads ──

const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeOrderNotFound     = "ORDER_NOT_FOUND"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ── Group C: Event types (ws + kafka) ──

const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCourier       = "order.courier_assigned"
	EventOrderAlert         = "order.alert"
	EventOrderAck           = "order.ack"
)

// IsValidRole reports whether role is one of the known user roles.
func IsValidRole(role string) bool {
	switch role {
	case UserRoleAdmin, UserRoleRestaurant, UserRoleCourier, UserRoleCustomer, UserRoleUser:
		return true
	}
	return false
}
