package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

const (
	TransactionStatusCompleted = "completed"

	CategoryWalletTopUp      = "wallet_topup"
	CategoryWalletPurchase   = "wallet_purchase"
	CategoryWalletWithdrawal = "wallet_withdrawal"

	PaymentMethodWallet = "wallet"
	PaymentMethodCash   = "cash"
)

// Transaction is an immutable school-wide ledger entry for one monetary event.
type Transaction struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	TransactionNumber   string          `json:"transaction_number" db:"transaction_number"`
	TransactionType     TransactionType `json:"transaction_type" db:"transaction_type"`
	TransactionCategory string          `json:"transaction_category" db:"transaction_category"`
	Amount              decimal.Decimal `json:"amount" db:"amount"`
	Currency            string          `json:"currency" db:"currency"`
	PaymentMethod       string          `json:"payment_method" db:"payment_method"`
	TransactionDate     time.Time       `json:"transaction_date" db:"transaction_date"`
	Status              string          `json:"status" db:"status"`
	PayerName           string          `json:"payer_name,omitempty" db:"payer_name"`
	PayerContact        string          `json:"payer_contact,omitempty" db:"payer_contact"`
	ReferenceNumber     string          `json:"reference_number,omitempty" db:"reference_number"`
	Notes               string          `json:"notes,omitempty" db:"notes"`
}
