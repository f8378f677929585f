package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidOrder      = errors.New("invalid order parameters")
	ErrSigningFailed     = errors.New("signing failed")
	ErrLockHeld          = errors.New("lock already held")
	ErrNoWallet          = errors.New("no wallet configured")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoLiquidity       = errors.New("no liquidity")
	ErrPriceMoved        = errors.New("price moved beyond limit")
)
