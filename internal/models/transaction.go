package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger entry. Amount is always the positive
// magnitude; Type decides the sign of the balance effect.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ReferenceID *uuid.UUID      `json:"reference_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TransactionType string

const (
	TypeEarn       TransactionType = "earn"
	TypeSpend      TransactionType = "spend"
	TypeWithdraw   TransactionType = "withdraw"
	TypeCommission TransactionType = "commission"
)

// Valid reports whether t is one of the four ledger types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeEarn, TypeSpend, TypeWithdraw, TypeCommission:
		return true
	}
	return false
}

// IsCredit reports whether the type increases the balance.
// commission is earn-like by convention.
func (t TransactionType) IsCredit() bool {
	return t == TypeEarn || t == TypeCommission
}
