package order

import "errors"

// Доменные ошибки Order Orchestrator (§3, §4.1, §7).
var (
	ErrOrderNotFound      = errors.New("order: заказ не найден")
	ErrEmptyOrderItems    = errors.New("order: заказ должен содержать хотя бы одну позицию")
	ErrInvalidCustomerID  = errors.New("order: некорректный идентификатор клиента")
	ErrInvalidProductID   = errors.New("order: некорректный идентификатор товара")
	ErrInvalidProductName = errors.New("order: название товара не может быть пустым")
	ErrInvalidQuantity    = errors.New("order: количество должно быть больше нуля")
	ErrInvalidPrice       = errors.New("order: цена должна быть больше нуля")
	ErrOrderCannotCancel  = errors.New("order: заказ нельзя отменить в текущем статусе")
	ErrOrderCannotDeliver = errors.New("order: заказ нельзя пометить как доставленный в текущем статусе")
	ErrOrderCannotFail    = errors.New("order: заказ нельзя пометить как неуспешный в текущем статусе")
	ErrDuplicateOrder     = errors.New("order: заказ с таким idempotency_key уже существует")
	ErrSignatureMismatch  = errors.New("order: пересчитанная подпись totals не совпадает с сохранённой")
)
