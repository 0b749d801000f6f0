package errors

import "errors"

var (
	ErrUnauthorized          = errors.New("caller is not the ledger owner")
	ErrInsufficientBalance   = errors.New("account balance is insufficient")
	ErrInsufficientAllowance = errors.New("spender allowance is insufficient")
	ErrOverflow              = errors.New("ledger amount arithmetic overflows")
	ErrInvalidAddress        = errors.New("ledger address is invalid")
	ErrAlreadyInitialized    = errors.New("ledger genesis already initialized")
)
