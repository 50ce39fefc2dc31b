package services

import "errors"

var (
	ErrMissingAccessToken = errors.New("gateway access token not configured")

	ErrNoItems             = errors.New("missing items")
	ErrInvalidItemTitle    = errors.New("invalid item: title")
	ErrInvalidItemPrice    = errors.New("invalid item: unit_price")
	ErrInvalidItemQuantity = errors.New("invalid item: quantity")
	ErrNoCheckoutURL       = errors.New("gateway returned no checkout url")

	ErrBadSignature = errors.New("invalid webhook signature")

	ErrMissingOrderID = errors.New("missing order id")
	ErrInvalidName    = errors.New("missing full name")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderNotPaid   = errors.New("order not paid")
)
