package errors

import "errors"

var (
	ErrInvalidAmount           = errors.New("amount must be a positive number")
	ErrInvalidTransactionType  = errors.New("invalid transaction type")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrNilTransaction          = errors.New("transaction is nil")
	ErrUserNotFound            = errors.New("user not found")
	ErrEmailExists             = errors.New("email already registered")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUnauthenticated         = errors.New("user not authenticated")
	ErrPlanNotFound            = errors.New("subscription plan not found")
	ErrRequestAlreadyProcessed = errors.New("request already processed")
	ErrBalanceLocked           = errors.New("wallet is locked by another operation")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInternal                = errors.New("internal error")
)
