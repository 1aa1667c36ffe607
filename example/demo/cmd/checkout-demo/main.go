// Command checkout-demo walks a cart session end to end: items go in, a
// sale condition lands on one of them, cart-wide tax and shipping
// conditions are applied, and every lifecycle event is fanned out to a
// Watermill topic while a consumer prints what it sees.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/shopkit/conditional-cart-go/cart"
	"github.com/shopkit/conditional-cart-go/cart/memoryengine"
	"github.com/shopkit/conditional-cart-go/cart/oteladapters"
	"github.com/shopkit/conditional-cart-go/cart/watermilladapter"
)

const eventsTopic = "cart.events"

func main() {
	ctx := context.Background()

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := oteladapters.NewSlogLoggerWithHandler(handler)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	messages, err := pubSub.Subscribe(ctx, eventsTopic)
	if err != nil {
		log.Fatalf("failed to subscribe to %s: %v", eventsTopic, err)
	}

	go func() {
		for msg := range messages {
			fmt.Printf("event published: %s\n", msg.Metadata.Get("event_name"))
			msg.Ack()
		}
	}()

	publisher, err := watermilladapter.NewPublisher(pubSub, eventsTopic, logger)
	if err != nil {
		log.Fatalf("failed to create event publisher: %v", err)
	}

	shoppingCart, err := cart.New(
		memoryengine.NewStorage(),
		publisher,
		"cart",
		"demo-session",
		cart.WithContextualLogger(logger),
		cart.WithAssociatedModels("Product"),
	)
	if err != nil {
		log.Fatalf("failed to create cart: %v", err)
	}

	itemSale, err := cart.NewCondition(cart.ConditionSpec{
		Name:  "weekend sale",
		Type:  "sale",
		Value: "-10%",
	})
	if err != nil {
		log.Fatalf("failed to build item condition: %v", err)
	}

	ids, err := shoppingCart.AddBatch(ctx,
		cart.ItemSpec{ID: "456", Name: "Wool Sweater", Price: 67.99, Quantity: 1, Conditions: []cart.Condition{itemSale}},
		cart.ItemSpec{ID: "568", Name: "Leather Belt", Price: 69.25, Quantity: 1},
		cart.ItemSpec{ID: "856", Name: "Canvas Tote", Price: 50.25, Quantity: 2},
	)
	if err != nil {
		log.Fatalf("failed to add items: %v", err)
	}

	if _, err = shoppingCart.Associate(ctx, ids[0], "Product"); err != nil {
		log.Fatalf("failed to associate item: %v", err)
	}

	vat, err := cart.NewCondition(cart.ConditionSpec{
		Name:   "VAT 12.5%",
		Type:   "tax",
		Target: cart.TargetTotal,
		Value:  "12.5%",
		Order:  1,
	})
	if err != nil {
		log.Fatalf("failed to build tax condition: %v", err)
	}

	shipping, err := cart.NewCondition(cart.ConditionSpec{
		Name:   "express shipping",
		Type:   "shipping",
		Target: cart.TargetTotal,
		Value:  "+15",
		Order:  2,
	})
	if err != nil {
		log.Fatalf("failed to build shipping condition: %v", err)
	}

	if err = shoppingCart.AddCondition(ctx, vat, shipping); err != nil {
		log.Fatalf("failed to add cart conditions: %v", err)
	}

	printTotals(ctx, shoppingCart)

	// Drop one tote, the totals follow.
	if _, err = shoppingCart.Update(ctx, "856", cart.ItemUpdate{Quantity: quantityDelta("-1")}); err != nil {
		log.Fatalf("failed to update quantity: %v", err)
	}

	fmt.Println("after returning one tote:")
	printTotals(ctx, shoppingCart)
}

func quantityDelta(value string) *cart.QuantityChange {
	change := cart.QuantityDelta(value)
	return &change
}

func printTotals(ctx context.Context, shoppingCart *cart.Cart) {
	subTotal, err := shoppingCart.FormattedSubTotal(ctx)
	if err != nil {
		log.Fatalf("failed to compute subtotal: %v", err)
	}

	total, err := shoppingCart.FormattedTotal(ctx)
	if err != nil {
		log.Fatalf("failed to compute total: %v", err)
	}

	quantity, err := shoppingCart.TotalQuantity(ctx)
	if err != nil {
		log.Fatalf("failed to compute quantity: %v", err)
	}

	fmt.Printf("items: %.0f  subtotal: %s  total: %s\n", quantity, subTotal, total)
}
