package domain

import "errors"

// Доменные ошибки Settlement Service.
var (
	// ErrOrderNotFound — заказ не найден.
	ErrOrderNotFound = errors.New("заказ не найден")

	// ErrOrderForbidden — заказ принадлежит другому пользователю.
	ErrOrderForbidden = errors.New("нет доступа к заказу")

	// ErrEmptyCart — корзина пуста.
	ErrEmptyCart = errors.New("корзина пуста")

	// ErrNoResolvableItems — ни один товар корзины не найден в каталоге.
	ErrNoResolvableItems = errors.New("в корзине нет доступных товаров")

	// ErrInvalidQuantity — количество товара меньше или равно нулю.
	ErrInvalidQuantity = errors.New("количество должно быть больше нуля")

	// ErrInvalidPaymentMethod — неизвестный способ оплаты.
	ErrInvalidPaymentMethod = errors.New("неизвестный способ оплаты")

	// ErrZeroOnlineTotal — онлайн-оплата заказа с нулевой суммой.
	ErrZeroOnlineTotal = errors.New("заказ с нулевой суммой нельзя оплатить онлайн")

	// ErrCouponNotFound — купон не найден.
	ErrCouponNotFound = errors.New("купон не найден")

	// ErrAffiliateNotFound — партнёр для купона не найден.
	ErrAffiliateNotFound = errors.New("партнёр не найден")

	// ErrCommissionExists — комиссия по заказу уже начислена.
	ErrCommissionExists = errors.New("комиссия по заказу уже начислена")

	// ErrPaymentAlreadySettled — статус оплаты уже изменён другим обработчиком.
	ErrPaymentAlreadySettled = errors.New("оплата заказа уже завершена")

	// ErrGatewayUnavailable — платёжный шлюз недоступен.
	ErrGatewayUnavailable = errors.New("платёжный шлюз недоступен")

	// ErrCheckoutInProgress — запрос с тем же ключом идемпотентности ещё обрабатывается.
	ErrCheckoutInProgress = errors.New("заказ с этим ключом уже оформляется")
)

// ErrCouponExhausted — лимит использований купона исчерпан к моменту списания.
var ErrCouponExhausted = errors.New("лимит использований купона исчерпан")
