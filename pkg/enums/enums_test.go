package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.Cancellable())
	assert.True(t, OrderStatusProcessing.Cancellable())
	assert.False(t, OrderStatusShipped.Cancellable())
	assert.False(t, OrderStatusCancelled.Cancellable())

	assert.True(t, OrderStatusPending.CanAdvanceTo(OrderStatusProcessing))
	assert.True(t, OrderStatusShipped.CanAdvanceTo(OrderStatusDelivered))
	assert.False(t, OrderStatusProcessing.CanAdvanceTo(OrderStatusCancelled))
	assert.False(t, OrderStatusDelivered.CanAdvanceTo(OrderStatusShipped))
}

func TestParseHelpers(t *testing.T) {
	status, err := ParseOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, status)

	_, err = ParseOrderStatus("lost")
	assert.Error(t, err)

	method, err := ParsePaymentMethod("apple_pay")
	require.NoError(t, err)
	assert.True(t, method.RequiresToken())
	assert.False(t, PaymentMethodCreditCard.RequiresToken())

	sort, err := ParseProductSort("")
	require.NoError(t, err)
	assert.Equal(t, ProductSortNewest, sort)
	assert.Equal(t, "new_price ASC", ProductSortPriceAsc.OrderClause())

	_, err = ParseProductSort("random")
	assert.Error(t, err)
}

func TestCheckoutStateTerminal(t *testing.T) {
	for _, state := range ResumableCheckoutStates() {
		assert.False(t, state.Terminal(), state)
	}
	assert.True(t, CheckoutStateDone.Terminal())
	assert.True(t, CheckoutStateNeedsAttention.Terminal())
}
