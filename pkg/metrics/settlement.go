package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutTotal — оформления заказов по способу оплаты и результату.
	CheckoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_checkout_total",
			Help: "Количество оформлений заказа по способу оплаты и результату",
		},
		[]string{"method", "result"},
	)

	// PaymentTransitions — переходы статуса оплаты.
	PaymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_payment_transitions_total",
			Help: "Переходы статуса оплаты заказа",
		},
		[]string{"from", "to"},
	)

	// SideEffectFailures — ошибки побочных эффектов после подтверждения оплаты.
	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_side_effect_failures_total",
			Help: "Ошибки побочных эффектов подтверждения (coupon, notify, commission)",
		},
		[]string{"effect"},
	)

	// CommissionsTotal — результаты начисления комиссий.
	CommissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_commissions_total",
			Help: "Результаты начисления партнёрских комиссий",
		},
		[]string{"outcome"},
	)

	// OutboxMessagesTotal — результаты публикации записей outbox.
	OutboxMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_messages_total",
			Help: "Публикация записей outbox по воркеру и результату",
		},
		[]string{"worker", "result"},
	)

	// NotificationsSent — письма, отправленные сервисом уведомлений.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Отправленные уведомления по результату",
		},
		[]string{"result"},
	)
)
