// Package cart provides an in-process shopping cart with a deterministic,
// ordered, chained price-condition engine.
//
// A Cart owns an insertion-ordered set of line items and a rank-ordered set
// of cart-scoped conditions (taxes, discounts, fees, shipping). Conditions
// carry a signed fixed or percentage value and are applied in stages:
// item-level conditions first, then subtotal-scoped, then total-scoped.
// Within a stage, conditions chain sequentially in rank order — each
// condition's output is the next condition's input — and a condition can
// reduce a value to zero but never below it.
//
// The cart holds no authoritative state itself. Item and condition
// collections are reloaded from a Storage on every call and written back
// wholesale after each mutation, so a single logical writer always observes
// its own writes. Lifecycle transitions are announced through a synchronous
// Dispatcher whose observers may veto a mutation before anything is stored.
//
// Common usage pattern:
//
//	storage := memoryengine.NewStorage()
//	c, err := cart.New(storage, cart.NopDispatcher{}, "shopping", "session-4711")
//	if err != nil {
//		// handle error
//	}
//
//	id, err := c.Add(ctx, cart.ItemSpec{ID: "sku-1", Name: "Sample", Price: 67.99, Quantity: 1})
//
//	vat, _ := cart.NewCondition(cart.ConditionSpec{
//		Name:   "VAT 12.5%",
//		Type:   "tax",
//		Target: cart.TargetTotal,
//		Value:  "12.5%",
//	})
//	err = c.AddCondition(ctx, vat)
//
//	total, err := c.Total(ctx)
package cart
