// Package events содержит общие типы событий заказа, которые Settlement Service
// публикует через outbox, а Notifier Service читает из Kafka.
// Единый источник правды для формата сообщений между сервисами.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType — тип события заказа.
type EventType string

const (
	// EventOrderConfirmed — заказ подтверждён (COD принят или онлайн-оплата прошла).
	EventOrderConfirmed EventType = "order.confirmed"
)

// AggregateOrder — тип агрегата для записей outbox.
const AggregateOrder = "order"

// OrderItem — позиция заказа в событии.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// OrderNotification — снимок заказа для писем покупателю.
// Содержит всё нужное для рендеринга, чтобы Notifier не ходил в БД.
type OrderNotification struct {
	Type          EventType       `json:"type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Items         []OrderItem     `json:"items"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ToJSON сериализует событие в JSON.
func (n *OrderNotification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// OrderNotificationFromJSON десериализует событие и проверяет обязательные поля.
func OrderNotificationFromJSON(data []byte) (*OrderNotification, error) {
	var n OrderNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("ошибка разбора события: %w", err)
	}
	if n.OrderID == "" {
		return nil, fmt.Errorf("в событии отсутствует order_id")
	}
	return &n, nil
}
