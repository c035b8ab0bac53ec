package tools

import (
	"context"
	"fmt"
)

func (e *Executor) addToCart(ctx context.Context, s Session, args AddToCartArgs) (Result, error) {
	product, err := e.products.MatchByName(ctx, s.ShopID, args.ProductName)
	if err != nil {
		return Result{}, err
	}
	c, err := e.cart.Add(ctx, s.ShopID, s.CustomerID, *product, args.Variant, args.Quantity)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Added %d x %s to the cart.", args.Quantity, product.Name), newCartView(c)), nil
}

func (e *Executor) removeFromCart(ctx context.Context, s Session, args RemoveFromCartArgs) (Result, error) {
	product, err := e.products.MatchByName(ctx, s.ShopID, args.ProductName)
	if err != nil {
		return Result{}, err
	}
	qty := 0
	if args.Quantity != nil {
		qty = *args.Quantity
	}

	c, err := e.cart.Remove(ctx, s.ShopID, s.CustomerID, product.ID, args.Variant, qty)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Removed %s from the cart.", product.Name), newCartView(c)), nil
}

func (e *Executor) viewCart(ctx context.Context, s Session) (Result, error) {
	c, err := e.cart.Get(ctx, s.ShopID, s.CustomerID)
	if err != nil {
		return Result{}, err
	}
	if len(c.Items) == 0 {
		return ok("The cart is empty.", newCartView(c)), nil
	}
	return ok(fmt.Sprintf("The cart has %d item(s).", len(c.Items)), newCartView(c)), nil
}
