package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

type WalletTransactionType string

const (
	WalletDeposit    WalletTransactionType = "deposit"
	WalletPurchase   WalletTransactionType = "purchase"
	WalletWithdrawal WalletTransactionType = "withdrawal"
)

// IsDebit reports whether the line reduces the balance.
func (t WalletTransactionType) IsDebit() bool {
	return t == WalletPurchase || t == WalletWithdrawal
}

// WalletTransaction is a wallet scoped ledger line. BalanceBefore and
// BalanceAfter are the snapshot taken at write time and never recomputed.
type WalletTransaction struct {
	ID              uuid.UUID             `json:"id" db:"id"`
	WalletID        uuid.UUID             `json:"wallet_id" db:"wallet_id"`
	TransactionType WalletTransactionType `json:"transaction_type" db:"transaction_type"`
	Amount          decimal.Decimal       `json:"amount" db:"amount"`
	BalanceBefore   decimal.Decimal       `json:"balance_before" db:"balance_before"`
	BalanceAfter    decimal.Decimal       `json:"balance_after" db:"balance_after"`
	Description     string                `json:"description,omitempty" db:"description"`
	Category        string                `json:"category,omitempty" db:"category"`
	ItemDetails     types.JSONText        `json:"item_details,omitempty" db:"item_details"`
	TransactionID   uuid.UUID             `json:"transaction_id" db:"transaction_id"`
	TransactionDate time.Time             `json:"transaction_date" db:"transaction_date"`
}

// SignedAmount is the effect of the line on the wallet balance.
func (wt WalletTransaction) SignedAmount() decimal.Decimal {
	if wt.TransactionType.IsDebit() {
		return wt.Amount.Neg()
	}
	return wt.Amount
}
