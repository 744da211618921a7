// Package handler содержит HTTP обработчики Settlement API.
package handler

import (
	"context"

	"example.com/settlement/services/settlement/internal/checkout"
	"example.com/settlement/services/settlement/internal/reconcile"
)

// CheckoutService — оформление заказа (*checkout.Service).
type CheckoutService interface {
	Checkout(ctx context.Context, customer checkout.Customer, req checkout.Request) (*checkout.Result, error)
}

// PaymentService — сверка оплаты (*reconcile.Reconciler).
type PaymentService interface {
	// Verify сверяет заказ текущего пользователя.
	Verify(ctx context.Context, userID, orderID string) (*reconcile.Result, error)

	// Reconcile сверяет заказ по уведомлению шлюза.
	Reconcile(ctx context.Context, orderID string) (*reconcile.Result, error)
}
