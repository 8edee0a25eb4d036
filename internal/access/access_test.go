package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilter(t *testing.T) {
	restaurantID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name    string
		actor   Actor
		want    Filter
		wantErr bool
	}{
		{"admin sees all", Actor{Role: enum.UserRoleAdmin}, Filter{All: true}, false},
		{"restaurant", Actor{Role: enum.UserRoleRestaurant, UserID: userID, RestaurantID: restaurantID}, Filter{RestaurantID: restaurantID}, false},
		{"restaurant without id", Actor{Role: enum.UserRoleRestaurant, UserID: userID}, Filter{}, true},
		{"courier", Actor{Role: enum.UserRoleCourier, UserID: userID}, Filter{CourierID: userID}, false},
		{"courier without id", Actor{Role: enum.UserRoleCourier}, Filter{}, true},
		{"customer", Actor{Role: enum.UserRoleCustomer, Email: " Ana@Example.com "}, Filter{CustomerEmail: "ana@example.com"}, false},
		{"generic user", Actor{Role: enum.UserRoleUser, Email: "bo@example.com"}, Filter{CustomerEmail: "bo@example.com"}, false},
		{"customer without email", Actor{Role: enum.UserRoleCustomer, UserID: userID}, Filter{}, true},
		{"unknown role", Actor{Role: "KITCHEN", UserID: userID, RestaurantID: restaurantID, Email: "x@y.z"}, Filter{}, true},
		{"empty role", Actor{}, Filter{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildFilter(tc.actor)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrForbidden)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRestaurantNeverSeesOtherRestaurants(t *testing.T) {
	r1 := uuid.New()
	actor := Actor{Role: enum.UserRoleRestaurant, UserID: uuid.New(), RestaurantID: r1}

	orders := []OrderRef{
		{RestaurantID: r1},
		{RestaurantID: uuid.New()},
		{RestaurantID: uuid.Nil, CustomerEmail: "a@b.c"},
		{RestaurantID: r1, CourierID: uuid.New()},
	}
	for _, o := range orders {
		assert.Equal(t, o.RestaurantID == r1, CanViewOrder(actor, o))
	}
}

func TestCanViewOrder(t *testing.T) {
	restaurantID := uuid.New()
	courierID := uuid.New()
	order := OrderRef{RestaurantID: restaurantID, CourierID: courierID, CustomerEmail: "Ana@Example.com"}

	assert.True(t, CanViewOrder(Actor{Role: enum.UserRoleAdmin}, order))
	assert.True(t, CanViewOrder(Actor{Role: enum.UserRoleRestaurant, RestaurantID: restaurantID}, order))
	assert.False(t, CanViewOrder(Actor{Role: enum.UserRoleRestaurant, RestaurantID: uuid.New()}, order))
	assert.True(t, CanViewOrder(Actor{Role: enum.UserRoleCourier, UserID: courierID}, order))
	assert.False(t, CanViewOrder(Actor{Role: enum.UserRoleCourier, UserID: uuid.New()}, order))
	assert.True(t, CanViewOrder(Actor{Role: enum.UserRoleCustomer, Email: "ana@example.COM"}, order))
	assert.False(t, CanViewOrder(Actor{Role: enum.UserRoleCustomer, Email: "bo@example.com"}, order))
	assert.False(t, CanViewOrder(Actor{Role: enum.UserRoleCustomer}, order))
}

func TestCourierCannotSeeUnassignedOrders(t *testing.T) {
	courier := Actor{Role: enum.UserRoleCourier, UserID: uuid.New()}
	assert.False(t, CanViewOrder(courier, OrderRef{RestaurantID: uuid.New()}))
}

func TestZeroFilterMatchesNothing(t *testing.T) {
	assert.False(t, Filter{}.Matches(OrderRef{RestaurantID: uuid.New(), CustomerEmail: "a@b.c"}))
}
