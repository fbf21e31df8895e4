package registry

import "errors"

var (
	ErrInvalidOfferAmount        = errors.New("offer amount must be greater than zero")
	ErrInvalidWantAmount         = errors.New("want amount must be greater than zero")
	ErrInsufficientAuthorization = errors.New("insufficient authorization")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrUnauthorized              = errors.New("caller not authorized")
	ErrOrderNotFound             = errors.New("order not found")
	ErrOrderNotApproved          = errors.New("order not approved")
	ErrOrderCanceled             = errors.New("order canceled")
	ErrOrderAlreadyFulfilled     = errors.New("order already fulfilled")
	ErrSettlementBudgetExceeded  = errors.New("settlement budget exceeded")
)
