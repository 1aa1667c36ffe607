package cart_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkit/conditional-cart-go/cart"
	"github.com/shopkit/conditional-cart-go/cart/memoryengine"
)

const priceDelta = 1e-9

func newTestCart(t *testing.T, options ...cart.Option) *cart.Cart {
	t.Helper()

	c, err := cart.New(memoryengine.NewStorage(), cart.NopDispatcher{}, "cart", "session-1", options...)
	require.NoError(t, err)

	return c
}

func fillCart(t *testing.T, c *cart.Cart) {
	t.Helper()

	ctx := context.Background()

	_, err := c.AddBatch(ctx,
		cart.ItemSpec{ID: "456", Name: "Sample Item 1", Price: 67.99, Quantity: 1},
		cart.ItemSpec{ID: "568", Name: "Sample Item 2", Price: 69.25, Quantity: 1},
		cart.ItemSpec{ID: "856", Name: "Sample Item 3", Price: 50.25, Quantity: 1},
	)
	require.NoError(t, err)
}

func Test_New_ErrorCases(t *testing.T) {
	storage := memoryengine.NewStorage()

	t.Run("nil storage", func(t *testing.T) {
		_, err := cart.New(nil, cart.NopDispatcher{}, "cart", "session-1")
		assert.ErrorIs(t, err, cart.ErrNilStorage)
	})

	t.Run("nil dispatcher", func(t *testing.T) {
		_, err := cart.New(storage, nil, "cart", "session-1")
		assert.ErrorIs(t, err, cart.ErrNilDispatcher)
	})

	t.Run("empty session key", func(t *testing.T) {
		_, err := cart.New(storage, cart.NopDispatcher{}, "cart", "")
		assert.ErrorIs(t, err, cart.ErrMissingSessionKey)
	})

	t.Run("nil validator option", func(t *testing.T) {
		_, err := cart.New(storage, cart.NopDispatcher{}, "cart", "session-1", cart.WithItemValidator(nil))
		assert.ErrorIs(t, err, cart.ErrNilValidator)
	})
}

func Test_New_DefaultsInstanceName(t *testing.T) {
	c, err := cart.New(memoryengine.NewStorage(), cart.NopDispatcher{}, "", "session-1")
	require.NoError(t, err)

	assert.Equal(t, "cart", c.InstanceName())
}

func Test_New_FiresCreatedEvent(t *testing.T) {
	var seen []string
	dispatcher := cart.DispatcherFunc(func(_ context.Context, event cart.Event) cart.DispatchResult {
		seen = append(seen, event.Name)
		return cart.Proceed
	})

	_, err := cart.New(memoryengine.NewStorage(), dispatcher, "wishlist", "session-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"wishlist.created"}, seen)
}

func Test_Cart_Add_ValidationFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name            string
		spec            cart.ItemSpec
		expectedMessage string
	}{
		{
			name:            "missing id",
			spec:            cart.ItemSpec{Name: "Sample Item", Price: 67.99, Quantity: 1},
			expectedMessage: "the id field is required",
		},
		{
			name:            "missing name",
			spec:            cart.ItemSpec{ID: "456", Price: 67.99, Quantity: 1},
			expectedMessage: "the name field is required",
		},
		{
			name:            "negative price",
			spec:            cart.ItemSpec{ID: "456", Name: "Sample Item", Price: -1, Quantity: 1},
			expectedMessage: "the price field must be at least 0",
		},
		{
			name:            "zero quantity",
			spec:            cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 0},
			expectedMessage: "the quantity field must be at least 0.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCart(t)

			_, err := c.Add(ctx, tc.spec)
			require.ErrorIs(t, err, cart.ErrInvalidItem)
			assert.Contains(t, err.Error(), tc.expectedMessage)

			empty, isEmptyErr := c.IsEmpty(ctx)
			require.NoError(t, isEmptyErr)
			assert.True(t, empty)
		})
	}
}

func Test_Cart_Add_ReturnsItemID(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	id, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "456", id)

	found, err := c.Has(ctx, "456")
	require.NoError(t, err)
	assert.True(t, found)
}

func Test_Cart_Add_ExistingID_IncrementsQuantityAndReplacesRest(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	_, err := c.Add(ctx, cart.ItemSpec{
		ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 2,
		Attributes: cart.Attributes{"color": "red"},
	})
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{
		ID: "456", Name: "Renamed Item", Price: 70, Quantity: 3,
		Attributes: cart.Attributes{"color": "blue"},
	})
	require.NoError(t, err)

	item, found, err := c.Get(ctx, "456")
	require.NoError(t, err)
	require.True(t, found)

	assert.InDelta(t, 5.0, item.Quantity(), priceDelta)
	assert.Equal(t, "Renamed Item", item.Name())
	assert.InDelta(t, 70.0, item.Price(), priceDelta)
	assert.Equal(t, "blue", item.Attributes()["color"])

	content, err := c.Content(ctx)
	require.NoError(t, err)
	assert.Len(t, content, 1)
}

func Test_Cart_Add_ExistingID_ReplacesConditionsWholesale(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	oldCondition, err := cart.NewCondition(cart.ConditionSpec{Name: "old sale", Type: "sale", Value: "-5%"})
	require.NoError(t, err)

	newCondition, err := cart.NewCondition(cart.ConditionSpec{Name: "new sale", Type: "sale", Value: "-10%"})
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 100, Quantity: 1, Conditions: []cart.Condition{oldCondition}})
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 100, Quantity: 1, Conditions: []cart.Condition{newCondition}})
	require.NoError(t, err)

	item, found, err := c.Get(ctx, "456")
	require.NoError(t, err)
	require.True(t, found)

	require.Len(t, item.Conditions(), 1)
	assert.Equal(t, "new sale", item.Conditions()[0].Name())
}

func Test_Cart_Update_QuantityModes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		initial  float64
		change   cart.QuantityChange
		expected float64
	}{
		{name: "relative increment", initial: 3, change: cart.QuantityDelta("+2"), expected: 5},
		{name: "relative increment without sign", initial: 3, change: cart.QuantityDelta("2"), expected: 5},
		{name: "relative decrement", initial: 3, change: cart.QuantityDelta("-1"), expected: 2},
		{name: "decrement to zero is ignored", initial: 2, change: cart.QuantityDelta("-2"), expected: 2},
		{name: "decrement through zero is ignored", initial: 2, change: cart.QuantityDelta("-5"), expected: 2},
		{name: "fractional delta is truncated", initial: 3, change: cart.QuantityDelta("+2.9"), expected: 5},
		{name: "unparseable delta counts as zero", initial: 3, change: cart.QuantityDelta("+many"), expected: 3},
		{name: "absolute replacement", initial: 3, change: cart.QuantitySet(7), expected: 7},
		{name: "absolute replacement to zero", initial: 3, change: cart.QuantitySet(0), expected: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCart(t)

			_, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: tc.initial})
			require.NoError(t, err)

			applied, err := c.Update(ctx, "456", cart.ItemUpdate{Quantity: &tc.change})
			require.NoError(t, err)
			assert.True(t, applied)

			item, found, err := c.Get(ctx, "456")
			require.NoError(t, err)
			require.True(t, found)
			assert.InDelta(t, tc.expected, item.Quantity(), priceDelta)
		})
	}
}

func Test_Cart_Update_AbsoluteQuantityZeroKeepsTheItem(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	_, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 2})
	require.NoError(t, err)

	quantity := cart.QuantitySet(0)
	applied, err := c.Update(ctx, "456", cart.ItemUpdate{Quantity: &quantity})
	require.NoError(t, err)
	assert.True(t, applied)

	// the item stays in the cart at quantity 0; it contributes nothing to
	// the totals but must not vanish on the next read
	found, err := c.Has(ctx, "456")
	require.NoError(t, err)
	assert.True(t, found)

	item, found, err := c.Get(ctx, "456")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0.0, item.Quantity())

	subTotal, err := c.SubTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, subTotal)
}

func Test_Cart_Update_MissingItemReturnsFalse(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	name := "whatever"
	applied, err := c.Update(ctx, "nope", cart.ItemUpdate{Name: &name})
	require.NoError(t, err)
	assert.False(t, applied)
}

func Test_Cart_Remove(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)
	fillCart(t, c)

	removed, err := c.Remove(ctx, "568")
	require.NoError(t, err)
	assert.True(t, removed)

	found, err := c.Has(ctx, "568")
	require.NoError(t, err)
	assert.False(t, found)

	quantity, err := c.TotalQuantity(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, quantity, priceDelta)
}

func Test_Cart_Clear_LeavesCartConditionsInPlace(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)
	fillCart(t, c)

	vat, err := cart.NewCondition(cart.ConditionSpec{Name: "VAT", Type: "tax", Target: cart.TargetTotal, Value: "12.5%"})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, vat))

	cleared, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, cleared)

	empty, err := c.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	conditions, err := c.Conditions(ctx)
	require.NoError(t, err)
	assert.True(t, conditions.Has("VAT"))
}

func Test_Cart_Vetoes(t *testing.T) {
	ctx := context.Background()

	vetoPhase := func(phase string) cart.Dispatcher {
		return cart.DispatcherFunc(func(_ context.Context, event cart.Event) cart.DispatchResult {
			if strings.HasSuffix(event.Name, "."+phase) {
				return cart.Cancel
			}

			return cart.Proceed
		})
	}

	t.Run("vetoed add leaves the cart empty and returns an empty ID", func(t *testing.T) {
		c, err := cart.New(memoryengine.NewStorage(), vetoPhase(cart.EventAdding), "cart", "session-1")
		require.NoError(t, err)

		id, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
		require.NoError(t, err)
		assert.Empty(t, id)

		empty, err := c.IsEmpty(ctx)
		require.NoError(t, err)
		assert.True(t, empty)
	})

	t.Run("vetoed update keeps the stored item unchanged", func(t *testing.T) {
		c, err := cart.New(memoryengine.NewStorage(), vetoPhase(cart.EventUpdating), "cart", "session-1")
		require.NoError(t, err)

		_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
		require.NoError(t, err)

		name := "Renamed Item"
		applied, err := c.Update(ctx, "456", cart.ItemUpdate{Name: &name})
		require.NoError(t, err)
		assert.False(t, applied)

		item, found, err := c.Get(ctx, "456")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Sample Item", item.Name())
	})

	t.Run("vetoed remove keeps the item", func(t *testing.T) {
		c, err := cart.New(memoryengine.NewStorage(), vetoPhase(cart.EventRemoving), "cart", "session-1")
		require.NoError(t, err)

		_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
		require.NoError(t, err)

		removed, err := c.Remove(ctx, "456")
		require.NoError(t, err)
		assert.False(t, removed)

		found, err := c.Has(ctx, "456")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("vetoed clear keeps the content", func(t *testing.T) {
		c, err := cart.New(memoryengine.NewStorage(), vetoPhase(cart.EventClearing), "cart", "session-1")
		require.NoError(t, err)
		fillCart(t, c)

		cleared, err := c.Clear(ctx)
		require.NoError(t, err)
		assert.False(t, cleared)

		empty, err := c.IsEmpty(ctx)
		require.NoError(t, err)
		assert.False(t, empty)
	})
}

func Test_Cart_EventSequenceForAdd(t *testing.T) {
	ctx := context.Background()

	var seen []string
	dispatcher := cart.DispatcherFunc(func(_ context.Context, event cart.Event) cart.DispatchResult {
		seen = append(seen, event.Name)
		return cart.Proceed
	})

	c, err := cart.New(memoryengine.NewStorage(), dispatcher, "cart", "session-1")
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"cart.created", "cart.adding", "cart.added"}, seen)
}

func Test_Cart_UpdatingEvent_CarriesItemID(t *testing.T) {
	ctx := context.Background()

	var payloads []any
	dispatcher := cart.DispatcherFunc(func(_ context.Context, event cart.Event) cart.DispatchResult {
		if strings.HasSuffix(event.Name, "."+cart.EventUpdating) {
			payloads = append(payloads, event.Payload)
		}

		return cart.Proceed
	})

	c, err := cart.New(memoryengine.NewStorage(), dispatcher, "cart", "session-1")
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
	require.NoError(t, err)

	name := "Renamed Item"
	applied, err := c.Update(ctx, "456", cart.ItemUpdate{Name: &name})
	require.NoError(t, err)
	assert.True(t, applied)

	require.Len(t, payloads, 1)
	payload, ok := payloads[0].(cart.UpdatePayload)
	require.True(t, ok)
	assert.Equal(t, "456", payload.ID)
	require.NotNil(t, payload.Changes.Name)
	assert.Equal(t, "Renamed Item", *payload.Changes.Name)
}

func Test_Cart_UpdatingEvent_NotFiredForMissingItem(t *testing.T) {
	ctx := context.Background()

	var seen []string
	dispatcher := cart.DispatcherFunc(func(_ context.Context, event cart.Event) cart.DispatchResult {
		seen = append(seen, event.Name)
		return cart.Proceed
	})

	c, err := cart.New(memoryengine.NewStorage(), dispatcher, "cart", "session-1")
	require.NoError(t, err)

	name := "whatever"
	applied, err := c.Update(ctx, "nope", cart.ItemUpdate{Name: &name})
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, []string{"cart.created"}, seen)
}

func Test_Cart_SubTotal(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)
	fillCart(t, c)

	subTotal, err := c.SubTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 187.49, subTotal, priceDelta)

	withoutConditions, err := c.SubTotalWithoutConditions(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 187.49, withoutConditions, priceDelta)
}

func Test_Cart_SubTotal_WithSubtotalScopedCondition(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)
	fillCart(t, c)

	discount, err := cart.NewCondition(cart.ConditionSpec{
		Name:   "subtotal discount",
		Type:   "promo",
		Target: cart.TargetSubtotal,
		Value:  "-5",
	})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, discount))

	subTotal, err := c.SubTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 182.49, subTotal, priceDelta)

	// with no total-scoped conditions the total equals the subtotal
	total, err := c.Total(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 182.49, total, priceDelta)

	// the raw item sum is unaffected
	withoutConditions, err := c.SubTotalWithoutConditions(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 187.49, withoutConditions, priceDelta)
}

func Test_Cart_Total_WithTotalScopedPercentage(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)
	fillCart(t, c)

	vat, err := cart.NewCondition(cart.ConditionSpec{
		Name:   "VAT 12.5%",
		Type:   "tax",
		Target: cart.TargetTotal,
		Value:  "12.5%",
	})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, vat))

	total, err := c.Total(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 210.92625, total, priceDelta)

	subTotal, err := c.SubTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 187.49, subTotal, priceDelta)
}

func Test_Cart_Total_ChainsMultipleTotalConditions(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)
	fillCart(t, c)

	vat, err := cart.NewCondition(cart.ConditionSpec{
		Name:   "VAT 12.5%",
		Type:   "tax",
		Target: cart.TargetTotal,
		Value:  "12.5%",
		Order:  1,
	})
	require.NoError(t, err)

	shipping, err := cart.NewCondition(cart.ConditionSpec{
		Name:   "Express Shipping $15",
		Type:   "shipping",
		Target: cart.TargetTotal,
		Value:  "+15",
		Order:  2,
	})
	require.NoError(t, err)

	require.NoError(t, c.AddCondition(ctx, vat, shipping))

	total, err := c.Total(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 225.92625, total, priceDelta)
}

func Test_Cart_Total_NeverDropsBelowZero(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	_, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Cheap Item", Price: 20, Quantity: 1})
	require.NoError(t, err)

	discount, err := cart.NewCondition(cart.ConditionSpec{
		Name:   "monster voucher",
		Type:   "promo",
		Target: cart.TargetTotal,
		Value:  "-25",
	})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, discount))

	total, err := c.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func Test_Cart_ItemConditionsFeedTheSubtotal(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	itemSale, err := cart.NewCondition(cart.ConditionSpec{Name: "item sale", Type: "sale", Value: "-10%"})
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 100, Quantity: 2, Conditions: []cart.Condition{itemSale}})
	require.NoError(t, err)

	subTotal, err := c.SubTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 180.0, subTotal, priceDelta)

	withoutConditions, err := c.SubTotalWithoutConditions(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, withoutConditions, priceDelta)
}

func Test_Cart_AddCondition_RejectsZeroCondition(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	err := c.AddCondition(ctx, cart.Condition{})
	assert.ErrorIs(t, err, cart.ErrInvalidCondition)

	conditions, err := c.Conditions(ctx)
	require.NoError(t, err)
	assert.True(t, conditions.IsEmpty())
}

func Test_Cart_ConditionLookups(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	vat, err := cart.NewCondition(cart.ConditionSpec{Name: "VAT", Type: "tax", Target: cart.TargetTotal, Value: "12.5%"})
	require.NoError(t, err)

	sale, err := cart.NewCondition(cart.ConditionSpec{Name: "sale", Type: "promo", Target: cart.TargetSubtotal, Value: "-5"})
	require.NoError(t, err)

	require.NoError(t, c.AddCondition(ctx, vat, sale))

	condition, found, err := c.Condition(ctx, "VAT")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "12.5%", condition.Value())

	_, found, err = c.Condition(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)

	byType, err := c.ConditionsByType(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, []string{"sale"}, byType.Names())
}

func Test_Cart_RemoveCartCondition(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	vat, err := cart.NewCondition(cart.ConditionSpec{Name: "VAT", Type: "tax", Target: cart.TargetTotal, Value: "12.5%"})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, vat))

	removed, err := c.RemoveCartCondition(ctx, "VAT")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.RemoveCartCondition(ctx, "VAT")
	require.NoError(t, err)
	assert.False(t, removed)
}

func Test_Cart_RemoveConditionsByType_TouchesCartScopeOnly(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	itemPromo, err := cart.NewCondition(cart.ConditionSpec{Name: "item promo", Type: "promo", Value: "-5%"})
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 100, Quantity: 1, Conditions: []cart.Condition{itemPromo}})
	require.NoError(t, err)

	cartPromo, err := cart.NewCondition(cart.ConditionSpec{Name: "cart promo", Type: "promo", Target: cart.TargetSubtotal, Value: "-10"})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, cartPromo))

	removed, err := c.RemoveConditionsByType(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	item, found, err := c.Get(ctx, "456")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, item.HasConditions())
}

func Test_Cart_ClearCartConditions_LeavesItemConditionsAttached(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	itemSale, err := cart.NewCondition(cart.ConditionSpec{Name: "item sale", Type: "sale", Value: "-5%"})
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 100, Quantity: 1, Conditions: []cart.Condition{itemSale}})
	require.NoError(t, err)

	vat, err := cart.NewCondition(cart.ConditionSpec{Name: "VAT", Type: "tax", Target: cart.TargetTotal, Value: "12.5%"})
	require.NoError(t, err)
	require.NoError(t, c.AddCondition(ctx, vat))

	require.NoError(t, c.ClearCartConditions(ctx))

	conditions, err := c.Conditions(ctx)
	require.NoError(t, err)
	assert.True(t, conditions.IsEmpty())

	item, found, err := c.Get(ctx, "456")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, item.HasConditions())
}

func Test_Cart_ItemConditionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	_, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 100, Quantity: 1})
	require.NoError(t, err)

	sale, err := cart.NewCondition(cart.ConditionSpec{Name: "sale", Type: "promo", Value: "-5%"})
	require.NoError(t, err)

	attached, err := c.AddItemCondition(ctx, "456", sale)
	require.NoError(t, err)
	assert.True(t, attached)

	subTotal, err := c.SubTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 95.0, subTotal, priceDelta)

	removed, err := c.RemoveItemCondition(ctx, "456", "sale")
	require.NoError(t, err)
	assert.True(t, removed)

	item, found, err := c.Get(ctx, "456")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, item.HasConditions())
}

func Test_Cart_ItemConditionOps_MissingItemReturnsFalse(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	sale, err := cart.NewCondition(cart.ConditionSpec{Name: "sale", Type: "promo", Value: "-5%"})
	require.NoError(t, err)

	attached, err := c.AddItemCondition(ctx, "nope", sale)
	require.NoError(t, err)
	assert.False(t, attached)

	removed, err := c.RemoveItemCondition(ctx, "nope", "sale")
	require.NoError(t, err)
	assert.False(t, removed)

	cleared, err := c.ClearItemConditions(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, cleared)
}

func Test_Cart_ClearItemConditions(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	first, err := cart.NewCondition(cart.ConditionSpec{Name: "first", Type: "promo", Value: "-5%"})
	require.NoError(t, err)

	second, err := cart.NewCondition(cart.ConditionSpec{Name: "second", Type: "promo", Value: "-1"})
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 100, Quantity: 1, Conditions: []cart.Condition{first, second}})
	require.NoError(t, err)

	cleared, err := c.ClearItemConditions(ctx, "456")
	require.NoError(t, err)
	assert.True(t, cleared)

	item, found, err := c.Get(ctx, "456")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, item.HasConditions())
}

func Test_Cart_TotalQuantity_EmptyCartIsZero(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	quantity, err := c.TotalQuantity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, quantity)
}

func Test_Cart_FormattedTotals(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t, cart.WithFormat(cart.Format{Decimals: 2, DecimalPoint: ",", ThousandsSep: "."}))

	_, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Big Ticket", Price: 1187.49, Quantity: 1})
	require.NoError(t, err)

	formattedSubTotal, err := c.FormattedSubTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.187,49", formattedSubTotal)

	formattedTotal, err := c.FormattedTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.187,49", formattedTotal)
}

func Test_Cart_Associate(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t, cart.WithAssociatedModels("Product"))

	id, err := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
	require.NoError(t, err)

	associated, err := c.Associate(ctx, id, "Product")
	require.NoError(t, err)
	assert.True(t, associated)

	item, found, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Product", item.AssociatedModel())
}

func Test_Cart_Associate_UnknownModelFails(t *testing.T) {
	ctx := context.Background()
	c := newTestCart(t)

	_, err := c.Associate(ctx, "456", "Ghost")
	assert.ErrorIs(t, err, cart.ErrUnknownModel)
}

func Test_Cart_Session_SwitchesToSeparateState(t *testing.T) {
	ctx := context.Background()
	storage := memoryengine.NewStorage()

	c, err := cart.New(storage, cart.NopDispatcher{}, "cart", "user-1")
	require.NoError(t, err)

	_, err = c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, c.Session("user-2"))

	empty, err := c.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, c.Session("user-1"))

	found, err := c.Has(ctx, "456")
	require.NoError(t, err)
	assert.True(t, found)

	assert.ErrorIs(t, c.Session(""), cart.ErrMissingSessionKey)
}

func Test_Cart_StorageErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("backend down")

	t.Run("load failure", func(t *testing.T) {
		c, err := cart.New(failingStorage{getErr: cause}, cart.NopDispatcher{}, "cart", "session-1")
		require.NoError(t, err)

		_, loadErr := c.Content(ctx)
		assert.ErrorIs(t, loadErr, cart.ErrLoadingSnapshotFailed)
		assert.ErrorIs(t, loadErr, cause)
	})

	t.Run("save failure", func(t *testing.T) {
		c, err := cart.New(failingStorage{putErr: cause}, cart.NopDispatcher{}, "cart", "session-1")
		require.NoError(t, err)

		_, saveErr := c.Add(ctx, cart.ItemSpec{ID: "456", Name: "Sample Item", Price: 67.99, Quantity: 1})
		assert.ErrorIs(t, saveErr, cart.ErrSavingSnapshotFailed)
		assert.ErrorIs(t, saveErr, cause)
	})
}

type failingStorage struct {
	getErr error
	putErr error
}

func (s failingStorage) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, s.getErr
}

func (s failingStorage) Put(_ context.Context, _ string, _ []byte) error {
	return s.putErr
}

func Test_ObserverChain_ShortCircuitsOnFirstCancel(t *testing.T) {
	ctx := context.Background()

	var calls []string
	observer := func(name string, result cart.DispatchResult) cart.Dispatcher {
		return cart.DispatcherFunc(func(_ context.Context, _ cart.Event) cart.DispatchResult {
			calls = append(calls, name)
			return result
		})
	}

	chain := cart.NewObserverChain(
		observer("first", cart.Proceed),
		observer("second", cart.Cancel),
	)
	chain.Register(observer("third", cart.Proceed))

	result := chain.Dispatch(ctx, cart.Event{Name: "cart.adding"})

	assert.Equal(t, cart.Cancel, result)
	assert.Equal(t, []string{"first", "second"}, calls)
}
